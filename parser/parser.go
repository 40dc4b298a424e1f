// Package parser turns schema declarations into usr.Schema values.
//
// Parsing is whole-schema atomic: the first violation aborts the schema and
// no partial IR is returned. Non-fatal findings are returned as usr.Issue
// values alongside a successfully parsed schema.
package parser

import (
	"fmt"
	"regexp"

	"github.com/schemagen/usrgen/typemap"
	"github.com/schemagen/usrgen/usr"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Parse validates decl and builds its IR.
func Parse(decl Declaration) (*usr.Schema, []usr.Issue, error) {
	p := &schemaParser{decl: decl}
	s, err := p.parse()
	if err != nil {
		return nil, nil, err
	}
	return s, p.issues, nil
}

type schemaParser struct {
	decl   Declaration
	issues []usr.Issue
}

func (p *schemaParser) fail(field, reason string, args ...any) error {
	return &usr.ValidationError{Schema: p.decl.Name, Field: field, Reason: fmt.Sprintf(reason, args...)}
}

func (p *schemaParser) failVariant(variant, field, reason string, args ...any) error {
	return &usr.ValidationError{Schema: p.decl.Name, Variant: variant, Field: field, Reason: fmt.Sprintf(reason, args...)}
}

func (p *schemaParser) warn(field, msg string, args ...any) {
	p.report(usr.SeverityWarning, field, msg, args...)
}

func (p *schemaParser) info(field, msg string, args ...any) {
	p.report(usr.SeverityInfo, field, msg, args...)
}

func (p *schemaParser) report(sev usr.Severity, field, msg string, args ...any) {
	p.issues = append(p.issues, usr.Issue{
		Severity: sev,
		Schema:   p.decl.Name,
		Field:    field,
		Message:  fmt.Sprintf(msg, args...),
	})
}

func (p *schemaParser) parse() (*usr.Schema, error) {
	d := p.decl
	if d.Name == "" {
		return nil, p.fail("", "schema name is required")
	}
	if !identifier.MatchString(d.Name) {
		return nil, p.fail("", "schema name %q is not a valid identifier", d.Name)
	}
	if len(d.Fields) == 0 {
		return nil, p.fail("", "schema must declare at least one field")
	}

	s := &usr.Schema{
		Name:        d.Name,
		Description: d.Description,
		Source:      d.Source,
		Fields:      make([]*usr.Field, 0, len(d.Fields)),
	}

	seen := make(map[string]bool, len(d.Fields))
	for _, fd := range d.Fields {
		if fd.Name == "" {
			return nil, p.fail("", "field without a name")
		}
		if seen[fd.Name] {
			return nil, p.fail(fd.Name, "duplicate field name")
		}
		seen[fd.Name] = true

		f, err := p.parseField(fd)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, f)
	}

	variants, err := p.parseVariants(seen)
	if err != nil {
		return nil, err
	}
	s.Variants = variants

	s.CustomCode, s.TargetOverrides = p.parseMeta()

	p.checkVariantReferences(s)
	s.Index()
	return s, nil
}

func (p *schemaParser) parseField(fd FieldDecl) (*usr.Field, error) {
	if !identifier.MatchString(fd.Name) {
		return nil, p.fail(fd.Name, "field name is not a valid identifier")
	}
	if fd.Type == "" {
		return nil, p.fail(fd.Name, "type is required")
	}
	typ, err := typemap.MapString(fd.Type)
	if err != nil {
		return nil, p.fail(fd.Name, "%v", err)
	}

	f := &usr.Field{
		Name:        fd.Name,
		Type:        typ,
		Optional:    typ.IsOptional(),
		Description: fd.Description,
		DB: usr.DBProperties{
			PrimaryKey:    fd.PrimaryKey,
			AutoIncrement: fd.AutoIncrement,
			Unique:        fd.Unique,
			Index:         fd.Index,
			ForeignKey:    fd.ForeignKey,
			AutoNowAdd:    fd.AutoNowAdd,
			AutoNow:       fd.AutoNow,
		},
		ExcludeFrom: usr.NewNameSet(fd.ExcludeFrom...),
		IncludeOnly: usr.NewNameSet(fd.IncludeOnly...),
	}

	hasDefault := fd.HasDefault || fd.Default != nil
	if hasDefault && fd.DefaultFactory != "" {
		return nil, p.fail(fd.Name, "default and default_factory are mutually exclusive")
	}
	if fd.DefaultFactory != "" {
		factory := usr.DefaultFactory(fd.DefaultFactory)
		if !factory.Valid() {
			return nil, p.fail(fd.Name, "unknown default_factory %q", fd.DefaultFactory)
		}
		f.DefaultFactory = factory
	}
	if hasDefault {
		f.HasDefault = true
		f.Default = normalize(fd.Default)
		if err := p.checkDefault(f); err != nil {
			return nil, err
		}
	}

	c, err := p.constraints(fd)
	if err != nil {
		return nil, err
	}
	f.Constraints = c
	if err := p.checkConstraints(f); err != nil {
		return nil, err
	}

	if fd.Relationship != "" {
		kind := usr.RelationshipKind(fd.Relationship)
		if !kind.Valid() {
			return nil, p.fail(fd.Name, "unknown relationship kind %q", fd.Relationship)
		}
		if fd.ThroughTable != "" && kind != usr.ManyToMany {
			return nil, p.fail(fd.Name, "through_table requires a many_to_many relationship")
		}
		f.Relationship = &usr.Relationship{
			Kind:          kind,
			BackPopulates: fd.BackPopulates,
			Cascade:       fd.Cascade,
			ThroughTable:  fd.ThroughTable,
		}
	} else if fd.BackPopulates != "" || fd.Cascade != "" || fd.ThroughTable != "" {
		return nil, p.fail(fd.Name, "back_populates, cascade and through_table require relationship")
	}

	if len(fd.Targets) > 0 {
		f.TargetOverrides = make(map[string]map[string]any, len(fd.Targets))
		for target, cfg := range fd.Targets {
			f.TargetOverrides[target] = normalizeMap(cfg)
		}
	}

	p.checkField(f)
	return f, nil
}

func (p *schemaParser) parseVariants(fields map[string]bool) ([]usr.Variant, error) {
	var out []usr.Variant
	names := make(map[string]bool, len(p.decl.Variants))
	for _, vd := range p.decl.Variants {
		if vd.Name == "" {
			return nil, p.fail("", "variant without a name")
		}
		if !identifier.MatchString(vd.Name) {
			return nil, p.failVariant(vd.Name, "", "variant name is not a valid identifier")
		}
		if names[vd.Name] {
			return nil, p.failVariant(vd.Name, "", "duplicate variant name")
		}
		names[vd.Name] = true

		if vd.All {
			out = append(out, usr.Variant{Name: vd.Name, All: true})
			continue
		}

		listed := make(map[string]bool, len(vd.Fields))
		for _, fname := range vd.Fields {
			if !fields[fname] {
				return nil, p.failVariant(vd.Name, fname, "variant references unknown field %q", fname)
			}
			if listed[fname] {
				return nil, p.failVariant(vd.Name, fname, "field listed twice")
			}
			listed[fname] = true
		}
		if len(vd.Fields) == 0 {
			p.warn("", "variant %s lists no fields", vd.Name)
		}
		out = append(out, usr.Variant{Name: vd.Name, Fields: append([]string(nil), vd.Fields...)})
	}
	return out, nil
}

func (p *schemaParser) parseMeta() (map[string]usr.CodeBlock, map[string]map[string]any) {
	if len(p.decl.Meta) == 0 {
		return nil, nil
	}
	code := make(map[string]usr.CodeBlock)
	overrides := make(map[string]map[string]any)
	for target, m := range p.decl.Meta {
		cb := usr.CodeBlock{
			Imports: append([]string(nil), m.Imports...),
			RawCode: m.RawCode,
			Methods: m.Methods,
		}
		if !cb.Empty() {
			code[target] = cb
		}
		if len(m.Extra) > 0 {
			overrides[target] = normalizeMap(m.Extra)
		}
	}
	return code, overrides
}

// checkVariantReferences warns about exclusion and allow-lists naming
// variants that the schema never declares.
func (p *schemaParser) checkVariantReferences(s *usr.Schema) {
	for _, f := range s.Fields {
		for _, set := range []struct {
			attr  string
			names usr.NameSet
		}{{"exclude_from", f.ExcludeFrom}, {"include_only", f.IncludeOnly}} {
			for _, name := range set.names {
				if name == usr.AllName || name == usr.AllSentinel {
					continue
				}
				if _, ok := s.Variant(name); !ok {
					p.warn(f.Name, "%s names undeclared variant %q", set.attr, name)
				}
			}
		}
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		return normalizeMap(x)
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}
