// Package jsonschema generates JSON Schema (draft 2020-12) documents.
//
// Each schema becomes one document whose $defs hold the base model and
// every variant. JSON has no comments, so each definition carries its
// provenance header as an "x-provenance" array, one header line per
// element; the timestamp therefore sits on a line of its own once the
// document is indented.
package jsonschema

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/internal/naming"
	"github.com/schemagen/usrgen/usr"
	"github.com/schemagen/usrgen/variant"
)

// Target is the registered name of the generator.
const Target = "jsonschema"

// Draft is the $schema of every generated document.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// Config is the target configuration.
type Config struct {
	// IDBase is prefixed to the file name to form each document's $id.
	IDBase string `yaml:"id_base"`

	// Strict closes every object with additionalProperties: false.
	Strict bool `yaml:"strict"`
}

// SchemaConfig is read from a schema's jsonschema meta block.
type SchemaConfig struct {
	Strict *bool  `yaml:"strict"`
	Title  string `yaml:"title"`
}

// Types maps each canonical type to the members of a JSON Schema object.
var Types = &usrgen.TypeTable{
	Target: Target,
	Quote:  quote,
	Rules: map[usr.Kind]usrgen.TypeRule{
		usr.KindString:   {Expr: `"type": "string"`},
		usr.KindInteger:  {Expr: `"type": "integer"`},
		usr.KindFloat:    {Expr: `"type": "number"`},
		usr.KindBoolean:  {Expr: `"type": "boolean"`},
		usr.KindBytes:    {Expr: `"type": "string", "contentEncoding": "base64"`},
		usr.KindDatetime: {Expr: `"type": "string", "format": "date-time"`},
		usr.KindDate:     {Expr: `"type": "string", "format": "date"`},
		usr.KindTime:     {Expr: `"type": "string", "format": "time"`},
		usr.KindUUID:     {Expr: `"type": "string", "format": "uuid"`},
		usr.KindDecimal: {Expr: `"type": "number"`, Fallback: true,
			Note: "JSON numbers are binary floating point; precision is not preserved"},
		usr.KindDict:       {Expr: `"type": "object"`},
		usr.KindList:       {Expr: `"type": "array", "items": {%s}`},
		usr.KindOptional:   {Expr: `"anyOf": [{%s}, {"type": "null"}]`},
		usr.KindUnion:      {Expr: `"anyOf": [%s]`, Item: "{%s}", Single: "%s"},
		usr.KindLiteral:    {Expr: `"enum": [%s]`, Single: `"const": %s`},
		usr.KindForwardRef: {Expr: `"$ref": "%s.schema.json"`},
	},
}

func quote(v any) string {
	b, err := json.MarshalNoEscape(v)
	if err != nil {
		return usr.FormatLiteral(v)
	}
	return string(b)
}

// Generator renders JSON Schema documents.
type Generator struct {
	cfg  Config
	opts usrgen.Options
}

// New is the usrgen.Factory of the target.
func New(opts usrgen.Options) (usrgen.Generator, error) {
	var cfg Config
	if err := opts.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.IDBase != "" && !strings.HasSuffix(cfg.IDBase, "/") {
		cfg.IDBase += "/"
	}
	return &Generator{cfg: cfg, opts: opts}, nil
}

func (g *Generator) Target() string               { return Target }
func (g *Generator) TypeTable() *usrgen.TypeTable { return Types }

func (g *Generator) FileName(s *usr.Schema) string {
	return s.Name + ".schema.json"
}

// DefName returns the $defs key of a variant of s.
func DefName(s *usr.Schema, v string) string {
	if v == variant.Base {
		return s.Name
	}
	return s.Name + naming.Pascal(v)
}

// Emit renders a standalone document for one model.
func (g *Generator) Emit(s *usr.Schema, v string) ([]byte, error) {
	def, err := g.definition(s, v)
	if err != nil {
		return nil, err
	}
	doc := object{{key: "$schema", value: Draft}}
	doc = append(doc, def...)
	return pretty(doc)
}

// Assemble renders the document of s with the base model and variants
// under $defs. The root refers to the base model.
func (g *Generator) Assemble(s *usr.Schema, variants []string) ([]byte, error) {
	defs := make(object, 0, len(variants))
	for _, v := range variants {
		def, err := g.definition(s, v)
		if err != nil {
			return nil, err
		}
		defs.set(DefName(s, v), def)
	}

	var doc object
	doc.set("$schema", Draft)
	if g.cfg.IDBase != "" {
		doc.set("$id", g.cfg.IDBase+g.FileName(s))
	}
	doc.set("$comment", usrgen.AutoGenerated)
	doc.set("title", s.Name)
	doc.set("$ref", "#/$defs/"+s.Name)
	doc.set("$defs", defs)
	return pretty(doc)
}

func (g *Generator) definition(s *usr.Schema, v string) (object, error) {
	res, err := variant.Resolve(s, v)
	if err != nil {
		return nil, err
	}
	var sc SchemaConfig
	if err := usrgen.DecodeStrict(s.Overrides(Target), &sc); err != nil {
		return nil, fmt.Errorf("meta overrides: %w", err)
	}
	strict := g.cfg.Strict
	if sc.Strict != nil {
		strict = *sc.Strict
	}

	h := usrgen.Header{
		Target:  Target,
		Schema:  s.Name,
		Variant: v,
		Source:  s.Source,
		Time:    g.opts.Time(),
	}

	var def object
	def.set("$comment", usrgen.AutoGenerated)
	def.set("x-provenance", h.Lines()[1:])
	title := DefName(s, v)
	if sc.Title != "" && v == variant.Base {
		title = sc.Title
	}
	def.set("title", title)
	if s.Description != "" {
		def.set("description", s.Description)
	}
	def.set("type", "object")

	props := make(object, 0, len(res.Fields))
	required := []string{}
	for _, f := range res.Fields {
		p, err := property(f)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		props.set(f.Name, p)
		if f.Required() {
			required = append(required, f.Name)
		}
	}
	def.set("properties", props)
	if len(required) > 0 {
		def.set("required", required)
	}
	if strict {
		def.set("additionalProperties", false)
	}

	if v == variant.Base {
		if cb, ok := s.Code(Target); ok {
			extra, err := customMembers(cb)
			if err != nil {
				return nil, err
			}
			// Provenance and the field layout stay generated.
			for _, key := range []string{"$comment", "properties", "required", "type", "x-provenance"} {
				if _, ok := extra[key]; ok {
					return nil, fmt.Errorf("raw_code cannot replace the generated %q member", key)
				}
			}
			def.sortedMembers(extra)
		}
	}
	return def, nil
}


// customMembers reads raw_code as a JSON object whose members are merged
// into the base definition.
func customMembers(cb usr.CodeBlock) (map[string]any, error) {
	if len(cb.Imports) > 0 || strings.TrimSpace(cb.Methods) != "" {
		return nil, fmt.Errorf("custom code for %s supports raw_code only", Target)
	}
	if strings.TrimSpace(cb.RawCode) == "" {
		return nil, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(cb.RawCode), &extra); err != nil {
		return nil, fmt.Errorf("raw_code must be a JSON object: %w", err)
	}
	return extra, nil
}

func property(f *usr.Field) (json.RawMessage, error) {
	inner := f.Type.Unwrap()
	typ, _, err := Types.Render(inner)
	if err != nil {
		return nil, err
	}
	props := constraints(inner.Kind, f.Constraints)

	if f.Type.IsOptional() {
		rule, err := Types.Rule(usr.KindOptional)
		if err != nil {
			return nil, err
		}
		body, err := props.members()
		if err != nil {
			return nil, err
		}
		typ = fmt.Sprintf(rule.Expr, join(typ, body))
		props = nil
	}

	switch {
	case f.HasDefault:
		props.set("default", f.Default)
	case f.DefaultFactory == usr.FactoryList || f.DefaultFactory == usr.FactorySet:
		props.set("default", []any{})
	case f.DefaultFactory == usr.FactoryDict:
		props.set("default", map[string]any{})
	}
	if f.DB.AutoIncrement || f.DB.AutoNow || f.DB.AutoNowAdd {
		props.set("readOnly", true)
	}
	if f.Description != "" {
		props.set("description", f.Description)
	}

	// Overrides replace generated keywords, except the ones that carry the type.
	var typed map[string]json.RawMessage
	if err := json.Unmarshal([]byte("{"+typ+"}"), &typed); err != nil {
		return nil, fmt.Errorf("rendered an invalid type %s: %w", typ, err)
	}
	var extra object
	extra.sortedMembers(f.Overrides(Target))
	for _, m := range extra {
		if _, ok := typed[m.key]; ok {
			return nil, fmt.Errorf("override %q conflicts with the type keyword of the field", m.key)
		}
		props.set(m.key, m.value)
	}

	body, err := props.members()
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage("{" + join(typ, body) + "}")
	if !json.Valid(raw) {
		return nil, fmt.Errorf("rendered an invalid schema: %s", raw)
	}
	return raw, nil
}

func join(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func constraints(k usr.Kind, c usr.Constraints) object {
	var out object
	num := func(key, keyword string) {
		if v, ok := c.Float(key); ok {
			out.set(keyword, v)
		}
	}
	switch k {
	case usr.KindString:
		num(usr.MinLength, "minLength")
		num(usr.MaxLength, "maxLength")
		if re, ok := c.String(usr.Regex); ok {
			out.set("pattern", re)
		}
		if format, ok := c.String(usr.Format); ok {
			out.set("format", format)
		}
	case usr.KindInteger, usr.KindFloat, usr.KindDecimal:
		num(usr.MinValue, "minimum")
		num(usr.MaxValue, "maximum")
		if dp, ok := c.Int(usr.DecimalPlaces); ok && k == usr.KindDecimal {
			out.set("multipleOf", math.Pow10(-int(dp)))
		}
	case usr.KindList:
		num(usr.MinItems, "minItems")
		num(usr.MaxItems, "maxItems")
	}
	return out
}
