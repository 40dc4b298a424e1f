package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemagen/usrgen/usr"
)

const userYAML = `
schema: User
description: A registered account
fields:
  - name: id
    type: int
    primary_key: true
    auto_increment: true
  - name: username
    type: str
    min_length: 3
    max_length: 30
  - name: email
    type: str
    format: email
  - name: age
    type: Optional[int]
  - name: created_at
    type: datetime
    auto_now_add: true
    exclude_from: [create_request]
variants:
  create_request: [username, email, age]
  full: __all__
meta:
  pydantic:
    imports: ["from typing import ClassVar"]
    methods: |
      def display(self) -> str:
          return self.username
    extra: forbid
`

func decodeOne(t *testing.T, src string) Declaration {
	t.Helper()
	decls, err := Decode(strings.NewReader(src), "test.yaml")
	require.NoError(t, err)
	require.Len(t, decls, 1)
	return decls[0]
}

func parseOne(t *testing.T, src string) (*usr.Schema, []usr.Issue, error) {
	t.Helper()
	return Parse(decodeOne(t, src))
}

func requireValidation(t *testing.T, err error) *usr.ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *usr.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %T: %v", err, err)
	return ve
}

func TestParseUser(t *testing.T) {
	s, issues, err := parseOne(t, userYAML)
	require.NoError(t, err)
	assert.Empty(t, issues)

	assert.Equal(t, "User", s.Name)
	assert.Equal(t, "test.yaml", s.Source)
	require.Len(t, s.Fields, 5)

	id := s.Field("id")
	require.NotNil(t, id)
	assert.Equal(t, usr.KindInteger, id.Type.Kind)
	assert.True(t, id.DB.PrimaryKey)
	assert.True(t, id.DB.AutoIncrement)

	username := s.Field("username")
	n, ok := username.Constraints.Int(usr.MinLength)
	assert.True(t, ok)
	assert.EqualValues(t, 3, n)
	n, _ = username.Constraints.Int(usr.MaxLength)
	assert.EqualValues(t, 30, n)

	email := s.Field("email")
	format, _ := email.Constraints.String(usr.Format)
	assert.Equal(t, "email", format)

	age := s.Field("age")
	assert.True(t, age.Optional)
	assert.Equal(t, "OPTIONAL<INTEGER>", age.Type.String())
	assert.False(t, age.Required())

	created := s.Field("created_at")
	assert.True(t, created.DB.AutoNowAdd)
	assert.True(t, created.ExcludeFrom.Contains("create_request"))

	assert.Equal(t, []string{"create_request", "full"}, s.VariantNames())
	v, ok := s.Variant("create_request")
	require.True(t, ok)
	assert.Equal(t, []string{"username", "email", "age"}, v.Fields)
	full, _ := s.Variant("full")
	assert.True(t, full.All)

	cb, ok := s.Code("pydantic")
	require.True(t, ok)
	assert.Equal(t, []string{"from typing import ClassVar"}, cb.Imports)
	assert.Contains(t, cb.Methods, "def display")
	assert.Equal(t, map[string]any{"extra": "forbid"}, s.Overrides("pydantic"))
	_, ok = s.Code("zod")
	assert.False(t, ok)
}

func TestParseRejectsDefaultWithFactory(t *testing.T) {
	_, _, err := parseOne(t, `
schema: Tags
fields:
  - name: tags
    type: List[str]
    default: null
    default_factory: list
`)
	ve := requireValidation(t, err)
	assert.Equal(t, "Tags", ve.Schema)
	assert.Equal(t, "tags", ve.Field)
	assert.Contains(t, ve.Reason, "mutually exclusive")
}

func TestParseDeclarationBuiltInCode(t *testing.T) {
	_, _, err := Parse(Declaration{
		Name: "Tags",
		Fields: []FieldDecl{
			{Name: "tags", Type: "List[str]", Default: []any{"a"}, DefaultFactory: "list"},
		},
	})
	ve := requireValidation(t, err)
	assert.Equal(t, "tags", ve.Field)
	assert.Contains(t, ve.Reason, "mutually exclusive")

	s, _, err := Parse(Declaration{
		Name:   "Tags",
		Fields: []FieldDecl{{Name: "tags", Type: "List[str]", Default: []any{"a"}}},
	})
	require.NoError(t, err)
	f := s.Fields[0]
	assert.True(t, f.HasDefault)
	assert.Equal(t, []any{"a"}, f.Default)
}

func TestParseRejectsUnknownVariantField(t *testing.T) {
	_, _, err := parseOne(t, `
schema: User
fields:
  - name: id
    type: int
  - name: email
    type: str
variants:
  contact: [email, phone]
`)
	ve := requireValidation(t, err)
	assert.Equal(t, "User", ve.Schema)
	assert.Equal(t, "contact", ve.Variant)
	assert.Equal(t, "phone", ve.Field)
	assert.Contains(t, err.Error(), "User")
	assert.Contains(t, err.Error(), "contact")
	assert.Contains(t, err.Error(), "phone")
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		field  string
		reason string
	}{
		{
			name: "duplicate field",
			src: `
schema: A
fields:
  - {name: x, type: int}
  - {name: x, type: str}
`,
			field:  "x",
			reason: "duplicate field name",
		},
		{
			name: "min above max",
			src: `
schema: A
fields:
  - {name: x, type: str, min_length: 10, max_length: 2}
`,
			field:  "x",
			reason: "greater than",
		},
		{
			name: "bad regex",
			src: `
schema: A
fields:
  - {name: x, type: str, regex: "([a-z"}
`,
			field:  "x",
			reason: "invalid regex",
		},
		{
			name: "negative count",
			src: `
schema: A
fields:
  - {name: x, type: "List[int]", min_items: -1}
`,
			field:  "x",
			reason: "must not be negative",
		},
		{
			name: "decimal places above digits",
			src: `
schema: A
fields:
  - {name: x, type: Decimal, max_digits: 4, decimal_places: 6}
`,
			field:  "x",
			reason: "exceeds max_digits",
		},
		{
			name: "unsupported type",
			src: `
schema: A
fields:
  - {name: x, type: "Set[int]"}
`,
			field:  "x",
			reason: "unsupported type",
		},
		{
			name: "literal default outside values",
			src: `
schema: A
fields:
  - {name: x, type: "Literal['a', 'b']", default: c}
`,
			field:  "x",
			reason: "not one of the literal values",
		},
		{
			name: "bad uuid default",
			src: `
schema: A
fields:
  - {name: x, type: UUID, default: nope}
`,
			field:  "x",
			reason: "not a valid UUID",
		},
		{
			name: "through table without many_to_many",
			src: `
schema: A
fields:
  - {name: x, type: "List[Ref[B]]", relationship: one_to_many, through_table: a_b}
`,
			field:  "x",
			reason: "requires a many_to_many",
		},
		{
			name: "cascade without relationship",
			src: `
schema: A
fields:
  - {name: x, type: int, cascade: all}
`,
			field:  "x",
			reason: "require relationship",
		},
		{
			name: "unknown factory",
			src: `
schema: A
fields:
  - {name: x, type: int, default_factory: random}
`,
			field:  "x",
			reason: "unknown default_factory",
		},
		{
			name: "no fields",
			src: `
schema: A
fields: []
`,
			reason: "at least one field",
		},
		{
			name: "bad schema name",
			src: `
schema: 1abc
fields:
  - {name: x, type: int}
`,
			reason: "not a valid identifier",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseOne(t, tt.src)
			ve := requireValidation(t, err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, ve.Reason, tt.reason)
		})
	}
}

func TestParseWarnings(t *testing.T) {
	s, issues, err := parseOne(t, `
schema: Odd
fields:
  - {name: id, type: "Optional[int]", primary_key: true}
  - {name: label, type: str, min_value: 1}
  - {name: stamp, type: str, auto_now: true}
  - {name: site, type: str, format: zipcode}
  - {name: secret, type: str, exclude_from: [nowhere]}
variants:
  empty: []
`)
	require.NoError(t, err)
	require.NotNil(t, s)

	var msgs []string
	for _, iss := range issues {
		assert.Equal(t, usr.SeverityWarning, iss.Severity)
		assert.Equal(t, "Odd", iss.Schema)
		msgs = append(msgs, iss.String())
	}
	joined := strings.Join(msgs, "\n")
	assert.Contains(t, joined, "Odd.id: primary_key field is also optional")
	assert.Contains(t, joined, "Odd.label: min_value/max_value have no effect on STRING")
	assert.Contains(t, joined, "Odd.stamp: auto_now/auto_now_add have no effect on STRING")
	assert.Contains(t, joined, `unknown format "zipcode"`)
	assert.Contains(t, joined, `undeclared variant "nowhere"`)
	assert.Contains(t, joined, "variant empty lists no fields")
}

func TestParseNotesExclusionOverIncludeOnly(t *testing.T) {
	_, issues, err := parseOne(t, `
schema: Card
fields:
  - {name: id, type: int}
  - {name: pin, type: str, exclude_from: [public], include_only: [public, admin]}
variants:
  public: [id, pin]
  admin: [id, pin]
`)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, usr.SeverityInfo, issues[0].Severity)
	assert.Equal(t, "pin", issues[0].Field)
	assert.Contains(t, issues[0].String(), `info: Card.pin: variant "public" is in both`)
}

func TestParseExplicitNullDefault(t *testing.T) {
	s, issues, err := parseOne(t, `
schema: A
fields:
  - {name: nickname, type: "Optional[str]", default: null}
  - {name: count, type: int, default: 0}
`)
	require.NoError(t, err)
	assert.Empty(t, issues)

	nick := s.Field("nickname")
	assert.True(t, nick.HasDefault)
	assert.Nil(t, nick.Default)

	count := s.Field("count")
	assert.True(t, count.HasDefault)
	assert.Equal(t, int64(0), count.Default)
	assert.False(t, count.Required())
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader(`
schema: A
fields:
  - {name: x, type: int, colour: red}
`), "bad.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field attribute "colour"`)

	_, err = Decode(strings.NewReader(`
schema: A
version: 2
fields:
  - {name: x, type: int}
`), "bad.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown schema attribute "version"`)

	_, err = Decode(strings.NewReader(`
schema: A
fields:
  - {name: x, type: int}
variants:
  v: everything
`), "bad.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant v must be a list")
}

func TestDecodeMultiDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	src := `
schema: A
fields:
  - {name: x, type: int}
---
---
schema: B
fields:
  - {name: a, type: "Ref[A]"}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	schemas, issues, err := ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, schemas, 2)
	assert.Equal(t, "A", schemas[0].Name)
	assert.Equal(t, "B", schemas[1].Name)
	assert.Equal(t, path, schemas[1].Source)
	assert.Equal(t, "FORWARD_REF<A>", schemas[1].Field("a").Type.String())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"Post", "User", "Comment"} {
		require.NoError(t, r.Add(&usr.Schema{Name: name, Source: name + ".yaml"}))
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"Comment", "Post", "User"}, r.Names())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "Comment", all[0].Name)

	err := r.Add(&usr.Schema{Name: "User", Source: "other.yaml"})
	ve := requireValidation(t, err)
	assert.Contains(t, ve.Reason, "User.yaml")

	s, ok := r.Get("Post")
	require.True(t, ok)
	assert.Equal(t, "Post.yaml", s.Source)

	r.Seal()
	assert.True(t, r.Sealed())
	assert.ErrorIs(t, r.Add(&usr.Schema{Name: "Tag"}), ErrSealed)
}
