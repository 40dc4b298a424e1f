// Package sqlalchemy generates SQLAlchemy declarative table classes.
//
// Every model imports Base from the generated base.py of the target
// directory. Variants map to their own tables, named after the base table
// with the variant name appended.
package sqlalchemy

import (
	"fmt"
	"strings"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/internal/naming"
	"github.com/schemagen/usrgen/targets/internal/python"
	"github.com/schemagen/usrgen/usr"
	"github.com/schemagen/usrgen/variant"
)

// Target is the registered name of the generator.
const Target = "sqlalchemy"

// Config is the target configuration.
type Config struct {
	// TablePrefix is prepended to every table name.
	TablePrefix string `yaml:"table_prefix"`
}

// SchemaConfig is read from a schema's sqlalchemy meta block.
type SchemaConfig struct {
	TableName string `yaml:"table_name"`
}

// Types documents the column type of each canonical type. Strings with a
// max_length become String(n) and decimals with max_digits become
// Numeric(p, s); see column.
var Types = &usrgen.TypeTable{
	Target: Target,
	Quote:  python.Repr,
	Rules: map[usr.Kind]usrgen.TypeRule{
		usr.KindString:   {Expr: "Text", Import: "from sqlalchemy import Text"},
		usr.KindInteger:  {Expr: "Integer", Import: "from sqlalchemy import Integer"},
		usr.KindFloat:    {Expr: "Float", Import: "from sqlalchemy import Float"},
		usr.KindBoolean:  {Expr: "Boolean", Import: "from sqlalchemy import Boolean"},
		usr.KindBytes:    {Expr: "LargeBinary", Import: "from sqlalchemy import LargeBinary"},
		usr.KindDatetime: {Expr: "DateTime", Import: "from sqlalchemy import DateTime"},
		usr.KindDate:     {Expr: "Date", Import: "from sqlalchemy import Date"},
		usr.KindTime:     {Expr: "Time", Import: "from sqlalchemy import Time"},
		usr.KindUUID:     {Expr: "Uuid", Import: "from sqlalchemy import Uuid"},
		usr.KindDecimal:  {Expr: "Numeric", Import: "from sqlalchemy import Numeric"},
		usr.KindDict:     {Expr: "JSON", Import: "from sqlalchemy import JSON"},
		usr.KindList: {Expr: "JSON", Import: "from sqlalchemy import JSON",
			Fallback: true, Note: "lists are stored in a JSON column"},
		usr.KindOptional: {Expr: "%s"},
		usr.KindUnion: {Expr: "JSON", Import: "from sqlalchemy import JSON",
			Fallback: true, Note: "unions are stored in a JSON column"},
		usr.KindLiteral: {Expr: "String", Import: "from sqlalchemy import String",
			Fallback: true, Note: "literal values are stored as strings and not enforced by the column"},
		usr.KindForwardRef: {Expr: "JSON", Import: "from sqlalchemy import JSON",
			Fallback: true, Note: "a nested schema without a relationship is stored as JSON"},
	},
}

// Generator renders SQLAlchemy models.
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
	return &Generator{cfg: cfg, opts: opts}, nil
}

func (g *Generator) Target() string               { return Target }
func (g *Generator) TypeTable() *usrgen.TypeTable { return Types }

func (g *Generator) FileName(s *usr.Schema) string {
	return naming.Snake(s.Name) + ".py"
}

var layout = usrgen.Layout{
	Style:        usrgen.HashComment,
	MergeImports: python.MergeImports,
	Gap:          "\n\n",
}

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

// TableName returns the table of a variant of s.
func (g *Generator) TableName(s *usr.Schema, v string) (string, error) {
	var sc SchemaConfig
	if err := usrgen.DecodeStrict(s.Overrides(Target), &sc); err != nil {
		return "", fmt.Errorf("meta overrides: %w", err)
	}
	name := sc.TableName
	if name == "" {
		name = naming.Snake(s.Name)
	}
	name = g.cfg.TablePrefix + name
	if v != variant.Base {
		name += "_" + v
	}
	return name, nil
}

func className(s *usr.Schema, v string) string {
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
	table, err := g.TableName(s, v)
	if err != nil {
		return usrgen.Unit{}, err
	}

	imports := []string{"from sqlalchemy import Column", "from .base import Base"}
	body := []string{
		fmt.Sprintf("class %s(Base):", className(s, v)),
	}
	if s.Description != "" {
		body = append(body, fmt.Sprintf(`    """%s"""`, strings.ReplaceAll(s.Description, `"""`, `\"\"\"`)))
	}
	body = append(body, fmt.Sprintf("    __tablename__ = %s", python.Repr(table)), "")

	for _, f := range res.Fields {
		var (
			line string
			imps []string
			err  error
		)
		if f.Relationship != nil {
			line, imps, err = relationship(f)
		} else {
			line, imps, err = column(f)
		}
		if err != nil {
			return usrgen.Unit{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		body = append(body, line)
		imports = append(imports, imps...)
	}

	if v == variant.Base {
		if cb, ok := s.Code(Target); ok {
			imports = append(imports, cb.Imports...)
			if strings.TrimSpace(cb.RawCode) != "" {
				body = append(body, "")
				body = append(body, python.Indent(cb.RawCode)...)
			}
			if strings.TrimSpace(cb.Methods) != "" {
				body = append(body, "", "    # Custom methods")
				body = append(body, python.Indent(cb.Methods)...)
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

func column(f *usr.Field) (string, []string, error) {
	overrides := make(map[string]any, len(f.Overrides(Target)))
	for k, v := range f.Overrides(Target) {
		overrides[k] = v
	}

	typ, imports, err := Types.Render(f.Type)
	if err != nil {
		return "", nil, err
	}
	c := f.Constraints
	switch f.Type.Unwrap().Kind {
	case usr.KindString:
		if n, ok := c.Int(usr.MaxLength); ok {
			typ = fmt.Sprintf("String(%d)", n)
			imports = []string{"from sqlalchemy import String"}
		}
	case usr.KindDecimal:
		precision, hasP := c.Int(usr.MaxDigits)
		scale, hasS := c.Int(usr.DecimalPlaces)
		if p, ok := overrides["precision"]; ok {
			precision, hasP = toInt(p)
			delete(overrides, "precision")
		}
		if sc, ok := overrides["scale"]; ok {
			scale, hasS = toInt(sc)
			delete(overrides, "scale")
		}
		switch {
		case hasP && hasS:
			typ = fmt.Sprintf("Numeric(%d, %d)", precision, scale)
		case hasP:
			typ = fmt.Sprintf("Numeric(%d)", precision)
		}
	}

	var args python.Args
	args.Positional(typ)
	if f.DB.ForeignKey != "" {
		args.Positional(fmt.Sprintf("ForeignKey(%s)", python.Repr(f.DB.ForeignKey)))
		imports = append(imports, "from sqlalchemy import ForeignKey")
	}
	if f.DB.PrimaryKey {
		args.Set("primary_key", "True")
	}
	if !f.Optional && !f.DB.PrimaryKey {
		args.Set("nullable", "False")
	}
	if f.DB.Unique {
		args.Set("unique", "True")
	}
	if f.DB.Index {
		args.Set("index", "True")
	}
	if f.DB.AutoIncrement {
		args.Set("autoincrement", "True")
	}
	if f.HasDefault && f.Default != nil {
		args.Set("default", python.Repr(f.Default))
	}
	switch f.DefaultFactory {
	case usr.FactoryList:
		args.Set("default", "list")
	case usr.FactoryDict:
		args.Set("default", "dict")
	case usr.FactoryUUID:
		args.Set("default", "uuid4")
		imports = append(imports, "from uuid import uuid4")
	}
	if f.DB.AutoNowAdd || f.DefaultFactory == usr.FactoryNow {
		args.Set("server_default", "func.now()")
		imports = append(imports, "from sqlalchemy import func")
	}
	if f.DB.AutoNow {
		args.Set("onupdate", "func.now()")
		imports = append(imports, "from sqlalchemy import func")
	}
	if f.Description != "" {
		args.Set("comment", python.Repr(f.Description))
	}
	args.Override(overrides)

	return fmt.Sprintf("    %s = Column(%s)", f.Name, args.String()), imports, nil
}

func relationship(f *usr.Field) (string, []string, error) {
	var ref string
	f.Type.Walk(func(t usr.Type) {
		if ref == "" && t.Kind == usr.KindForwardRef {
			ref = t.Ref
		}
	})
	if ref == "" {
		return "", nil, fmt.Errorf("%s relationship needs a schema reference in its type", f.Relationship.Kind)
	}

	var args python.Args
	args.Positional(python.Repr(ref))
	r := f.Relationship
	if r.BackPopulates != "" {
		args.Set("back_populates", python.Repr(r.BackPopulates))
	}
	if r.Cascade != "" {
		args.Set("cascade", python.Repr(r.Cascade))
	}
	if r.ThroughTable != "" {
		args.Set("secondary", python.Repr(r.ThroughTable))
	}
	switch r.Kind {
	case usr.OneToOne:
		args.Set("uselist", "False")
	case usr.ManyToOne:
		if f.Type.Unwrap().Kind == usr.KindList {
			return "", nil, fmt.Errorf("many_to_one relationship cannot be a list")
		}
	}
	args.Override(f.Overrides(Target))
	return fmt.Sprintf("    %s = relationship(%s)", f.Name, args.String()),
		[]string{"from sqlalchemy.orm import relationship"}, nil
}

// Index renders base.py, the declarative base every model imports.
func (g *Generator) Index(schemas []*usr.Schema) (*usrgen.File, error) {
	var sb strings.Builder
	sb.WriteString(usrgen.HashComment.Line + usrgen.AutoGenerated + "\n")
	sb.WriteString(usrgen.HashComment.Line + "Generator: usrgen sqlalchemy generator\n\n")
	sb.WriteString("from sqlalchemy.orm import DeclarativeBase\n\n\n")
	sb.WriteString("class Base(DeclarativeBase):\n    pass\n")
	return &usrgen.File{RelativePath: "base.py", Data: []byte(sb.String())}, nil
}

func toInt(v any) (int64, bool) {
	return usr.Constraints{"v": v}.Int("v")
}
