package zod

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/parser"
	"github.com/schemagen/usrgen/usr"
)

const userYAML = `
schema: UserProfile
description: Public profile
fields:
  - name: id
    type: UUID
  - name: handle
    type: str
    min_length: 3
    max_length: 30
    regex: "^[a-z0-9_]+$"
  - name: email
    type: str
    format: email
  - name: age
    type: Optional[int]
    min_value: 13
  - name: balance
    type: Decimal
  - name: role
    type: "Literal['admin', 'member']"
    default: member
  - name: tags
    type: List[str]
    default_factory: list
    max_items: 10
  - name: posts
    type: "List[Ref[BlogPost]]"
  - name: note
    type: "int | str"
    description: Free-form note
variants:
  create: [handle, email, age]
meta:
  zod:
    imports: ['import { slugify } from "./util";']
    raw_code: |
      export const slug = (p: UserProfile) => slugify(p.handle);
`

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func parse(t *testing.T, src string) *usr.Schema {
	t.Helper()
	decls, err := parser.Decode(strings.NewReader(src), "user_profile.yaml")
	require.NoError(t, err)
	s, _, err := parser.Parse(decls[0])
	require.NoError(t, err)
	return s
}

func newGen(t *testing.T, cfg map[string]any) *Generator {
	t.Helper()
	g, err := New(usrgen.Options{Config: cfg, Now: func() time.Time { return t0 }})
	require.NoError(t, err)
	return g.(*Generator)
}

func TestEmitBase(t *testing.T) {
	s := parse(t, userYAML)
	g := newGen(t, nil)
	assert.Equal(t, "user-profile.ts", g.FileName(s))

	out, err := g.Emit(s, "")
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, "// AUTO-GENERATED FILE - DO NOT EDIT MANUALLY\n"))
	assert.Contains(t, text, "import { z } from \"zod\";\n")
	assert.Contains(t, text, "import { BlogPostSchema } from \"./blog-post\";\n")
	assert.Contains(t, text, "import { slugify } from \"./util\";\n")
	assert.Contains(t, text, "/**\n * Public profile\n */\nexport const UserProfileSchema = z.object({\n")
	assert.Contains(t, text, "  id: z.string().uuid(),\n")
	assert.Contains(t, text, `  handle: z.string().min(3).max(30).regex(new RegExp("^[a-z0-9_]+$")),`)
	assert.Contains(t, text, "  email: z.string().email(),\n")
	assert.Contains(t, text, "  age: z.number().int().gte(13).optional(),\n")
	assert.Contains(t, text, "  balance: z.number(),\n")
	assert.Contains(t, text, `  role: z.union([z.literal("admin"), z.literal("member")]).default("member"),`)
	assert.Contains(t, text, "  tags: z.array(z.string()).max(10).default([]),\n")
	assert.Contains(t, text, "  posts: z.array(z.lazy(() => BlogPostSchema)),\n")
	assert.Contains(t, text, `  note: z.union([z.number().int(), z.string()]).describe("Free-form note"),`)
	assert.Contains(t, text, "export type UserProfile = z.infer<typeof UserProfileSchema>;\n")
	assert.Contains(t, text, "export const slug = (p: UserProfile) => slugify(p.handle);\n")
}

func TestVariantOmitsCustomCode(t *testing.T) {
	s := parse(t, userYAML)
	out, err := newGen(t, nil).Emit(s, "create")
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, "export const UserProfileCreateSchema = z.object({\n  handle:")
	assert.NotContains(t, text, "slugify")
	assert.NotContains(t, text, "BlogPostSchema")
	assert.True(t, strings.Index(text, "  handle:") < strings.Index(text, "  email:"))
	assert.True(t, strings.Index(text, "  email:") < strings.Index(text, "  age:"))
}

func TestAssembleHoistsImports(t *testing.T) {
	s := parse(t, userYAML)
	out, err := newGen(t, map[string]any{"import_path": "zod/v4", "export_types": false}).Assemble(s, []string{"", "create"})
	require.NoError(t, err)
	text := string(out)

	assert.Equal(t, 1, strings.Count(text, "import { z } from \"zod/v4\";"))
	assert.Equal(t, 2, strings.Count(text, usrgen.AutoGenerated))
	assert.NotContains(t, text, "export type")
}

func TestDeterministic(t *testing.T) {
	s := parse(t, userYAML)
	a, err := newGen(t, nil).Emit(s, "")
	require.NoError(t, err)
	b, err := newGen(t, nil).Emit(s, "")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTypeTableIsTotal(t *testing.T) {
	require.NoError(t, Types.Check())
	assert.Contains(t, Types.Fallbacks(), usr.KindDecimal)
}

func TestLiteralsAreJavaScript(t *testing.T) {
	expr, _, err := Types.Render(usr.LiteralOf("a\u0007<b>", int64(2), true))
	require.NoError(t, err)
	assert.Equal(t, `z.union([z.literal("a\u0007<b>"), z.literal(2), z.literal(true)])`, expr)
}

func TestIndex(t *testing.T) {
	s := parse(t, userYAML)
	f, err := newGen(t, nil).Index([]*usr.Schema{s})
	require.NoError(t, err)
	assert.Equal(t, "index.ts", f.RelativePath)
	assert.Contains(t, string(f.Data), "export * from \"./user-profile\";\n")
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	_, err := New(usrgen.Options{Config: map[string]any{"strict": true}})
	assert.Error(t, err)
}
