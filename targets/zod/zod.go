// Package zod generates TypeScript Zod schemas with inferred types.
package zod

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/internal/naming"
	"github.com/schemagen/usrgen/usr"
	"github.com/schemagen/usrgen/variant"
)

// Target is the registered name of the generator.
const Target = "zod"

// Config is the target configuration.
type Config struct {
	// ExportTypes adds an inferred TypeScript type next to each schema.
	ExportTypes *bool `yaml:"export_types"`

	// ImportPath is the module z is imported from.
	ImportPath string `yaml:"import_path"`
}

// SchemaConfig is read from a schema's zod meta block.
type SchemaConfig struct {
	ExportTypes *bool `yaml:"export_types"`
}

// Types documents the Zod expression of each canonical type. Optional
// wraps the field's inner expression after its validations are chained.
var Types = &usrgen.TypeTable{
	Target: Target,
	Quote:  literal,
	Rules: map[usr.Kind]usrgen.TypeRule{
		usr.KindString:   {Expr: "z.string()"},
		usr.KindInteger:  {Expr: "z.number().int()"},
		usr.KindFloat:    {Expr: "z.number()"},
		usr.KindBoolean:  {Expr: "z.boolean()"},
		usr.KindBytes:    {Expr: "z.string().base64()", Fallback: true, Note: "bytes travel as base64 text"},
		usr.KindDatetime: {Expr: "z.string().datetime()"},
		usr.KindDate:     {Expr: "z.string().date()"},
		usr.KindTime:     {Expr: "z.string().time()"},
		usr.KindUUID:     {Expr: "z.string().uuid()"},
		usr.KindDecimal: {Expr: "z.number()", Fallback: true,
			Note: "JavaScript has no fixed-point type; decimals are double-precision numbers"},
		usr.KindDict:       {Expr: "z.record(z.string(), z.unknown())"},
		usr.KindList:       {Expr: "z.array(%s)"},
		usr.KindOptional:   {Expr: "%s.optional()"},
		usr.KindUnion:      {Expr: "z.union([%s])", Single: "%s"},
		usr.KindLiteral:    {Expr: "z.union([%s])", Item: "z.literal(%s)", Single: "%s"},
		usr.KindForwardRef: {Expr: "z.lazy(() => %sSchema)"},
	},
}

// literal renders v as a JavaScript literal.
func literal(v any) string {
	b, err := json.MarshalWithOption(v, json.DisableHTMLEscape())
	if err != nil {
		return usr.FormatLiteral(v)
	}
	return string(b)
}

var factoryDefaults = map[usr.DefaultFactory]string{
	usr.FactoryList: "[]",
	usr.FactoryDict: "{}",
	usr.FactorySet:  "[]",
	usr.FactoryNow:  "() => new Date().toISOString()",
	usr.FactoryUUID: "() => crypto.randomUUID()",
}

// Generator renders Zod schemas.
type Generator struct {
	cfg  Config
	opts usrgen.Options
}

// New is the usrgen.Factory of the target.
func New(opts usrgen.Options) (usrgen.Generator, error) {
	cfg := Config{ImportPath: "zod"}
	if err := opts.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.ExportTypes == nil {
		yes := true
		cfg.ExportTypes = &yes
	}
	return &Generator{cfg: cfg, opts: opts}, nil
}

func (g *Generator) Target() string               { return Target }
func (g *Generator) TypeTable() *usrgen.TypeTable { return Types }

func (g *Generator) FileName(s *usr.Schema) string {
	return naming.Kebab(s.Name) + ".ts"
}

var layout = usrgen.Layout{Style: usrgen.SlashComment}

func (g *Generator) Emit(s *usr.Schema, v string) ([]byte, error) {
	u, err := g.unit(s, v)
	if err != nil {
		return nil, err
	}
	return layout.Assemble(u), nil
}

func (g *Generator) Assemble(s *usr.Schema, variants []string) ([]byte, error) {
	units := make([]usrgen.Unit, 0, len(variants))
	for _, v := range variants {
		u, err := g.unit(s, v)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return layout.Assemble(units...), nil
}

// TypeName returns the inferred type name of a variant of s. The schema
// constant is the type name followed by "Schema".
func TypeName(s *usr.Schema, v string) string {
	if v == variant.Base {
		return s.Name
	}
	return s.Name + naming.Pascal(v)
}

func (g *Generator) unit(s *usr.Schema, v string) (usrgen.Unit, error) {
	res, err := variant.Resolve(s, v)
	if err != nil {
		return usrgen.Unit{}, err
	}
	sc := SchemaConfig{ExportTypes: g.cfg.ExportTypes}
	if err := usrgen.DecodeStrict(s.Overrides(Target), &sc); err != nil {
		return usrgen.Unit{}, fmt.Errorf("meta overrides: %w", err)
	}

	imports := []string{fmt.Sprintf("import { z } from %q;", g.cfg.ImportPath)}
	name := TypeName(s, v)

	var body []string
	if s.Description != "" {
		body = append(body, "/**", " * "+s.Description, " */")
	}
	body = append(body, fmt.Sprintf("export const %sSchema = z.object({", name))
	refs := make(map[string]bool)
	for _, f := range res.Fields {
		expr, err := field(f)
		if err != nil {
			return usrgen.Unit{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		body = append(body, fmt.Sprintf("  %s: %s,", f.Name, expr))
		f.Type.Walk(func(t usr.Type) {
			if t.Kind == usr.KindForwardRef && t.Ref != s.Name {
				refs[t.Ref] = true
			}
		})
	}
	body = append(body, "});")
	if *sc.ExportTypes {
		body = append(body, "", fmt.Sprintf("export type %s = z.infer<typeof %sSchema>;", name, name))
	}

	for _, ref := range sortedKeys(refs) {
		imports = append(imports, fmt.Sprintf("import { %sSchema } from \"./%s\";", ref, naming.Kebab(ref)))
	}

	if v == variant.Base {
		if cb, ok := s.Code(Target); ok {
			imports = append(imports, cb.Imports...)
			if raw := strings.Trim(cb.RawCode, "\n"); strings.TrimSpace(raw) != "" {
				body = append(body, "", raw)
			}
			if methods := strings.Trim(cb.Methods, "\n"); strings.TrimSpace(methods) != "" {
				body = append(body, "", methods)
			}
		}
	}

	return usrgen.Unit{
		Header: usrgen.Header{
			Target:  Target,
			Schema:  s.Name,
			Variant: v,
			Source:  s.Source,
			Time:    g.opts.Time(),
		},
		Imports: imports,
		Body:    strings.Join(body, "\n"),
	}, nil
}

func field(f *usr.Field) (string, error) {
	inner := f.Type.Unwrap()
	expr, _, err := Types.Render(inner)
	if err != nil {
		return "", err
	}
	expr += validations(inner.Kind, f.Constraints)

	if f.Type.IsOptional() {
		rule, err := Types.Rule(usr.KindOptional)
		if err != nil {
			return "", err
		}
		expr = fmt.Sprintf(rule.Expr, expr)
	}

	switch {
	case f.DefaultFactory != "":
		expr += ".default(" + factoryDefaults[f.DefaultFactory] + ")"
	case f.HasDefault && f.Default != nil:
		b, err := json.Marshal(f.Default)
		if err != nil {
			return "", fmt.Errorf("default: %w", err)
		}
		expr += ".default(" + string(b) + ")"
	}

	if f.Description != "" {
		b, _ := json.Marshal(f.Description)
		expr += ".describe(" + string(b) + ")"
	}
	return expr, nil
}

var formatMethods = map[string]string{
	"email":     ".email()",
	"url":       ".url()",
	"uri":       ".url()",
	"uuid":      ".uuid()",
	"ipv4":      ".ip({ version: \"v4\" })",
	"ipv6":      ".ip({ version: \"v6\" })",
	"date-time": ".datetime()",
}

func validations(k usr.Kind, c usr.Constraints) string {
	var sb strings.Builder
	num := func(key, method string) {
		if v, ok := c.Float(key); ok {
			fmt.Fprintf(&sb, ".%s(%s)", method, formatNumber(v))
		}
	}
	switch k {
	case usr.KindString:
		num(usr.MinLength, "min")
		num(usr.MaxLength, "max")
		if re, ok := c.String(usr.Regex); ok {
			b, _ := json.Marshal(re)
			fmt.Fprintf(&sb, ".regex(new RegExp(%s))", b)
		}
		if format, ok := c.String(usr.Format); ok && formatMethods[format] != "" {
			sb.WriteString(formatMethods[format])
		}
	case usr.KindInteger, usr.KindFloat, usr.KindDecimal:
		num(usr.MinValue, "gte")
		num(usr.MaxValue, "lte")
	case usr.KindList:
		num(usr.MinItems, "min")
		num(usr.MaxItems, "max")
	}
	return sb.String()
}

func formatNumber(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// Index renders index.ts re-exporting every generated module.
func (g *Generator) Index(schemas []*usr.Schema) (*usrgen.File, error) {
	var sb strings.Builder
	sb.WriteString(usrgen.SlashComment.Line + usrgen.AutoGenerated + "\n")
	sb.WriteString(usrgen.SlashComment.Line + "Generator: usrgen zod generator\n\n")
	for _, s := range schemas {
		fmt.Fprintf(&sb, "export * from \"./%s\";\n", strings.TrimSuffix(g.FileName(s), ".ts"))
	}
	return &usrgen.File{RelativePath: "index.ts", Data: []byte(sb.String())}, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
