package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/config"
	"github.com/schemagen/usrgen/targets"
	"github.com/schemagen/usrgen/usr"
)

const userYAML = `
schema: User
description: User schema for the application
fields:
  - {name: id, type: int, primary_key: true, auto_increment: true}
  - {name: username, type: str, min_length: 3, max_length: 30}
  - {name: email, type: str, format: email}
  - {name: age, type: Optional[int]}
  - {name: created_at, type: datetime, auto_now_add: true}
  - {name: password_hash, type: str, exclude_from: [public_response]}
variants:
  create_request: [username, email, age]
  public_response: [id, username, password_hash]
`

const postYAML = `
schema: Post
fields:
  - {name: id, type: int, primary_key: true}
  - {name: title, type: str}
---
schema: Comment
fields:
  - {name: id, type: int, primary_key: true}
  - {name: body, type: str}
`

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newEngine(t *testing.T, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return t0 })}, opts...)
	e, err := New(cfg, targets.NewRegistry(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func testConfig(in, out string, targetNames ...string) *config.Config {
	cfg := config.Default()
	cfg.InputDir = in
	cfg.OutputDir = out
	if len(targetNames) > 0 {
		cfg.Targets = targetNames
	}
	return cfg
}

func TestStates(t *testing.T) {
	is := is.New(t)
	is.Equal(Idle.String(), "idle")
	is.Equal(Failed.String(), "failed")
	is.True(CanTransition(Idle, Loading))
	is.True(CanTransition(Done, Loading))
	is.True(!CanTransition(Loading, Generating))
	is.True(!CanTransition(Generating, Generating))
	is.True(!CanTransition(Idle, Done))
}

func TestOverlappingCallsAreRejected(t *testing.T) {
	is := is.New(t)
	root := writeFiles(t, map[string]string{"user.yaml": userYAML})
	e := newEngine(t, testConfig(root, t.TempDir()))
	reg, err := e.LoadSchemas(context.Background(), root)
	is.NoErr(err)

	// Another generation is in flight.
	e.mu.Lock()
	e.state = Generating
	e.mu.Unlock()

	var se *StateError
	_, err = e.GenerateAll(context.Background(), reg.All())
	is.True(errors.As(err, &se))
	is.Equal(se.From, Generating)
	is.Equal(se.To, Generating)

	_, err = e.LoadSchemas(context.Background(), root)
	is.True(errors.As(err, &se))
	is.Equal(se.To, Loading)
	is.Equal(e.State(), Generating)
}

func TestLoadSchemas(t *testing.T) {
	is := is.New(t)
	root := writeFiles(t, map[string]string{
		"user.yaml":          userYAML,
		"blog/posts.yml":     postYAML,
		".drafts/draft.yaml": "schema: [",
		"README.md":          "not a schema",
	})
	e := newEngine(t, testConfig(root, t.TempDir()))
	is.Equal(e.State(), Idle)

	reg, err := e.LoadSchemas(context.Background(), root)
	is.NoErr(err)
	is.Equal(reg.Names(), []string{"Comment", "Post", "User"})
	is.True(reg.Sealed())
	is.Equal(e.State(), Parsed)

	u, ok := reg.Get("User")
	is.True(ok)
	is.Equal(u.Source, filepath.Join(root, "user.yaml"))
}

func TestLoadSchemasReportsEveryBadFile(t *testing.T) {
	is := is.New(t)
	root := writeFiles(t, map[string]string{
		"good.yaml": postYAML,
		"dup.yaml": `
schema: Dup
fields:
  - {name: id, type: int}
  - {name: id, type: str}
`,
		"phone.yaml": `
schema: Contact
fields:
  - {name: id, type: int}
variants:
  card: [id, phone]
`,
	})
	e := newEngine(t, testConfig(root, t.TempDir()))

	reg, err := e.LoadSchemas(context.Background(), root)
	is.True(err != nil)
	is.Equal(e.State(), Failed)
	is.Equal(reg.Names(), []string{"Comment", "Post"})

	var merr *multierror.Error
	is.True(errors.As(err, &merr))
	is.Equal(len(merr.Errors), 2)

	var pe *ParseError
	is.True(errors.As(merr.Errors[0], &pe))
	is.Equal(pe.Path, filepath.Join(root, "dup.yaml"))
	is.True(errors.As(merr.Errors[1], &pe))
	is.Equal(pe.Path, filepath.Join(root, "phone.yaml"))

	var ve *usr.ValidationError
	is.True(errors.As(pe, &ve))
	is.Equal(ve.Schema, "Contact")
	is.Equal(ve.Variant, "card")
	is.Equal(ve.Field, "phone")
}

func TestLoadSchemasRejectsDuplicateNamesAcrossFiles(t *testing.T) {
	is := is.New(t)
	root := writeFiles(t, map[string]string{
		"a.yaml": postYAML,
		"b.yaml": "schema: Post\nfields:\n  - {name: id, type: int}\n",
	})
	e := newEngine(t, testConfig(root, t.TempDir()))

	_, err := e.LoadSchemas(context.Background(), root)
	var pe *ParseError
	is.True(errors.As(err, &pe))
	is.Equal(pe.Path, filepath.Join(root, "b.yaml"))
	is.True(strings.Contains(pe.Error(), "a.yaml"))
}

func TestLoadSchemasMissingRoot(t *testing.T) {
	is := is.New(t)
	root := filepath.Join(t.TempDir(), "absent")
	e := newEngine(t, testConfig(root, t.TempDir()))
	_, err := e.LoadSchemas(context.Background(), root)
	is.True(err != nil)
	is.Equal(e.State(), Failed)
}

func TestNewRejectsUnknownTarget(t *testing.T) {
	is := is.New(t)
	cfg := testConfig("in", "out", "pydantic", "protobuf")
	_, err := New(cfg, targets.NewRegistry())
	var ute *usrgen.UnknownTargetError
	is.True(errors.As(err, &ute))
	is.Equal(ute.Target, "protobuf")
}

func TestGenerateAllIsNotFailFast(t *testing.T) {
	is := is.New(t)
	root := writeFiles(t, map[string]string{
		"user.yaml": userYAML,
		"odd.yaml": `
schema: Odd
fields:
  - {name: id, type: int, primary_key: true}
  - {name: things, type: "List[int]", relationship: one_to_many}
`,
	})
	e := newEngine(t, testConfig(root, t.TempDir(), "pydantic", "sqlalchemy"))
	ctx := context.Background()
	reg, err := e.LoadSchemas(ctx, root)
	is.NoErr(err)

	rep, err := e.GenerateAll(ctx, reg.All())
	is.NoErr(err)
	is.Equal(e.State(), Failed)
	is.Equal(len(rep.Failed), 1)
	ge := rep.Failed[0]
	is.Equal(ge.Target, "sqlalchemy")
	is.Equal(ge.Schema, "Odd")
	is.Equal(ge.Variant, "")

	var got []string
	for _, a := range rep.Succeeded {
		got = append(got, a.Target+":"+a.Schema+":"+a.Variant)
	}
	is.Equal(got, []string{
		"pydantic:Odd:",
		"pydantic:User:",
		"pydantic:User:create_request",
		"pydantic:User:public_response",
		"sqlalchemy:User:",
		"sqlalchemy:User:create_request",
		"sqlalchemy:User:public_response",
	})

	_, ok := rep.FS.Get("sqlalchemy/odd.py")
	is.True(!ok)
	_, ok = rep.FS.Get("sqlalchemy/user.py")
	is.True(ok)
	_, ok = rep.FS.Get("sqlalchemy/base.py")
	is.True(ok)
	is.True(rep.Err() != nil)
}

func TestEmptyVariantPolicy(t *testing.T) {
	const hollow = `
schema: Hollow
fields:
  - {name: id, type: int}
  - {name: secret, type: str, exclude_from: [nothing]}
variants:
  nothing: [secret]
`
	for _, tt := range []struct {
		policy config.EmptyVariantPolicy
		fails  bool
	}{
		{config.EmptyWarn, false},
		{config.EmptyAllow, false},
		{config.EmptyError, true},
	} {
		t.Run(string(tt.policy), func(t *testing.T) {
			is := is.New(t)
			root := writeFiles(t, map[string]string{"hollow.yaml": hollow})
			cfg := testConfig(root, t.TempDir(), "zod")
			cfg.EmptyVariant = tt.policy
			e := newEngine(t, cfg)
			reg, err := e.LoadSchemas(context.Background(), root)
			is.NoErr(err)

			rep, err := e.GenerateAll(context.Background(), reg.All())
			is.NoErr(err)
			is.Equal(!rep.OK(), tt.fails)
			if tt.fails {
				var eve *usrgen.EmptyVariantError
				is.True(errors.As(rep.Failed[0], &eve))
				is.Equal(eve.Variant, "nothing")
			}
		})
	}
}

func TestGenerateTarget(t *testing.T) {
	is := is.New(t)
	root := writeFiles(t, map[string]string{"user.yaml": userYAML})
	e := newEngine(t, testConfig(root, t.TempDir(), "pydantic", "zod"))
	reg, err := e.LoadSchemas(context.Background(), root)
	is.NoErr(err)

	rep, err := e.GenerateTarget(context.Background(), reg.All(), "zod")
	is.NoErr(err)
	is.Equal(e.State(), Done)
	for _, a := range rep.Succeeded {
		is.Equal(a.Target, "zod")
	}
	is.Equal(rep.FS.Len(), 2) // user.ts and index.ts

	_, err = e.GenerateTarget(context.Background(), reg.All(), "sqlalchemy")
	var ute *usrgen.UnknownTargetError
	is.True(errors.As(err, &ute))
}

func TestRunTwiceThenValidate(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	root := writeFiles(t, map[string]string{"user.yaml": userYAML, "blog/posts.yaml": postYAML})
	cfg := testConfig(root, t.TempDir(), "pydantic", "sqlalchemy", "zod", "jsonschema")

	_, err := newEngine(t, cfg).Run(ctx)
	is.NoErr(err)

	later := func() time.Time { return t0.Add(36 * time.Hour) }
	e := newEngine(t, cfg, WithClock(later))
	rep, err := e.Run(ctx)
	is.NoErr(err)
	is.Equal(e.State(), Done)
	is.True(len(rep.Succeeded) > 0)

	b, err := os.ReadFile(filepath.Join(cfg.OutputDir, "pydantic", "user_models.py"))
	is.NoErr(err)
	is.True(strings.Contains(string(b), "Generated at: 2026-01-03T15:04:05Z"))

	e = newEngine(t, cfg)
	reg, err := e.LoadSchemas(ctx, root)
	is.NoErr(err)
	vr, err := e.Validate(ctx, reg.All())
	is.NoErr(err)
	is.True(vr.UpToDate)
	is.Equal(len(vr.Stale), 0)
}

func TestCRLFLineEndings(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	root := writeFiles(t, map[string]string{"user.yaml": userYAML})
	cfg := testConfig(root, t.TempDir(), "zod", "jsonschema")
	cfg.LineEndings = "crlf"

	_, err := newEngine(t, cfg).Run(ctx)
	is.NoErr(err)

	for _, name := range []string{"zod/user.ts", "zod/index.ts", "jsonschema/User.schema.json"} {
		b, err := os.ReadFile(filepath.Join(cfg.OutputDir, filepath.FromSlash(name)))
		is.NoErr(err)
		is.True(strings.Count(string(b), "\r\n") > 0)
		is.Equal(strings.Count(string(b), "\n"), strings.Count(string(b), "\r\n")) // no bare line feeds
	}

	e := newEngine(t, cfg, WithClock(func() time.Time { return t0.Add(time.Hour) }))
	reg, err := e.LoadSchemas(ctx, root)
	is.NoErr(err)
	vr, err := e.Validate(ctx, reg.All())
	is.NoErr(err)
	is.True(vr.UpToDate)
}

func TestValidateReportsStaleFiles(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	root := writeFiles(t, map[string]string{"user.yaml": userYAML, "posts.yaml": postYAML})
	cfg := testConfig(root, t.TempDir(), "pydantic")

	_, err := newEngine(t, cfg).Run(ctx)
	is.NoErr(err)

	userFile := filepath.Join(cfg.OutputDir, "pydantic", "user_models.py")
	b, err := os.ReadFile(userFile)
	is.NoErr(err)
	is.NoErr(os.WriteFile(userFile, []byte(strings.Replace(string(b), "max_length=30", "max_length=40", 1)), 0o644))
	is.NoErr(os.Remove(filepath.Join(cfg.OutputDir, "pydantic", "post_models.py")))

	reg := prometheus.NewRegistry()
	e := newEngine(t, cfg, WithRegisterer(reg))
	schemas, err := e.LoadSchemas(ctx, root)
	is.NoErr(err)
	vr, err := e.Validate(ctx, schemas.All())
	is.NoErr(err)
	is.True(!vr.UpToDate)
	is.Equal(vr.Paths(), []string{"pydantic/post_models.py", "pydantic/user_models.py"})
	is.Equal(vr.Stale[0].Reason, ReasonMissing)
	is.Equal(vr.Stale[1].Reason, ReasonChanged)
	is.True(strings.Contains(vr.Stale[1].Diff, "max_length=30"))

	// validation never writes
	_, err = os.Stat(filepath.Join(cfg.OutputDir, "pydantic", "post_models.py"))
	is.True(os.IsNotExist(err))

	families, err := reg.Gather()
	is.NoErr(err)
	found := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				found[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				found[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	is.Equal(found["usrgen_stale_files"], 2.0)
	is.Equal(found["usrgen_schemas_loaded"], 3.0)
	is.Equal(found["usrgen_artifacts_total"], 5.0) // User base + 2 variants, Post, Comment
}
