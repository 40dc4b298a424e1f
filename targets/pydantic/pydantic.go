// Package pydantic generates Pydantic v2 models.
package pydantic

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
const Target = "pydantic"

// Config is the target configuration.
type Config struct {
	// Extra is the model's extra-field policy: forbid, allow or ignore.
	Extra string `yaml:"extra"`

	// BaseClass is the class models derive from. A dotted path is imported
	// from its module.
	BaseClass string `yaml:"base_class"`
}

func (c Config) validate() error {
	switch c.Extra {
	case "", "forbid", "allow", "ignore":
		return nil
	}
	return fmt.Errorf("extra must be forbid, allow or ignore, got %q", c.Extra)
}

// Types documents how each canonical type is written. Email-formatted
// strings use EmailStr.
var Types = &usrgen.TypeTable{
	Target: Target,
	Quote:  python.Repr,
	Rules: map[usr.Kind]usrgen.TypeRule{
		usr.KindString:     {Expr: "str"},
		usr.KindInteger:    {Expr: "int"},
		usr.KindFloat:      {Expr: "float"},
		usr.KindBoolean:    {Expr: "bool"},
		usr.KindBytes:      {Expr: "bytes"},
		usr.KindDatetime:   {Expr: "datetime", Import: "from datetime import datetime"},
		usr.KindDate:       {Expr: "date", Import: "from datetime import date"},
		usr.KindTime:       {Expr: "time", Import: "from datetime import time"},
		usr.KindUUID:       {Expr: "UUID", Import: "from uuid import UUID"},
		usr.KindDecimal:    {Expr: "Decimal", Import: "from decimal import Decimal"},
		usr.KindDict:       {Expr: "Dict[str, Any]", Import: "from typing import Any, Dict"},
		usr.KindList:       {Expr: "List[%s]", Import: "from typing import List"},
		usr.KindOptional:   {Expr: "Optional[%s]", Import: "from typing import Optional"},
		usr.KindUnion:      {Expr: "Union[%s]", Import: "from typing import Union"},
		usr.KindLiteral:    {Expr: "Literal[%s]", Import: "from typing import Literal"},
		usr.KindForwardRef: {Expr: `"%s"`},
	},
}

var factories = map[usr.DefaultFactory]struct {
	expr, imp string
}{
	usr.FactoryList: {"list", ""},
	usr.FactoryDict: {"dict", ""},
	usr.FactorySet:  {"set", ""},
	usr.FactoryNow:  {"datetime.now", "from datetime import datetime"},
	usr.FactoryUUID: {"uuid4", "from uuid import uuid4"},
}

// Generator renders Pydantic models.
type Generator struct {
	cfg  Config
	opts usrgen.Options
}

// New is the usrgen.Factory of the target.
func New(opts usrgen.Options) (usrgen.Generator, error) {
	cfg := Config{BaseClass: "BaseModel"}
	if err := opts.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, opts: opts}, nil
}

func (g *Generator) Target() string               { return Target }
func (g *Generator) TypeTable() *usrgen.TypeTable { return Types }

func (g *Generator) FileName(s *usr.Schema) string {
	return naming.Snake(s.Name) + "_models.py"
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

// ClassName returns the model class name of a variant of s.
func ClassName(s *usr.Schema, v string) string {
	if v == variant.Base {
		return s.Name
	}
	return s.Name + naming.Pascal(v)
}

func (g *Generator) config(s *usr.Schema) (Config, error) {
	cfg := g.cfg
	if err := usrgen.DecodeStrict(s.Overrides(Target), &cfg); err != nil {
		return cfg, fmt.Errorf("meta overrides: %w", err)
	}
	return cfg, cfg.validate()
}

func (g *Generator) unit(s *usr.Schema, v string) (usrgen.Unit, error) {
	res, err := variant.Resolve(s, v)
	if err != nil {
		return usrgen.Unit{}, err
	}
	cfg, err := g.config(s)
	if err != nil {
		return usrgen.Unit{}, err
	}

	var imports []string
	base := cfg.BaseClass
	if mod, name, ok := cutLast(base, "."); ok {
		imports = append(imports, fmt.Sprintf("from %s import %s", mod, name))
		base = name
	} else if base == "BaseModel" {
		imports = append(imports, "from pydantic import BaseModel")
	}

	var body []string
	body = append(body, fmt.Sprintf("class %s(%s):", ClassName(s, v), base))
	if s.Description != "" {
		body = append(body, fmt.Sprintf("    %s", docstring(s.Description)))
		body = append(body, "")
	}

	for _, f := range res.Fields {
		line, imps, err := g.field(f)
		if err != nil {
			return usrgen.Unit{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		body = append(body, line)
		imports = append(imports, imps...)
	}

	var settings []string
	if usr.HasRelationships(res.Fields) {
		settings = append(settings, "from_attributes=True")
	}
	if cfg.Extra != "" {
		settings = append(settings, fmt.Sprintf("extra=%q", cfg.Extra))
	}
	if len(settings) > 0 {
		imports = append(imports, "from pydantic import ConfigDict")
		body = append(body, "", fmt.Sprintf("    model_config = ConfigDict(%s)", strings.Join(settings, ", ")))
	}

	if v == variant.Base {
		if cb, ok := s.Code(Target); ok {
			imports = append(imports, cb.Imports...)
			if strings.TrimSpace(cb.RawCode) != "" {
				body = append(body, "", "    # Custom validators")
				body = append(body, python.Indent(cb.RawCode)...)
			}
			if strings.TrimSpace(cb.Methods) != "" {
				body = append(body, "", "    # Custom methods")
				body = append(body, python.Indent(cb.Methods)...)
			}
		}
	}

	if len(res.Fields) == 0 && len(body) == 1 {
		body = append(body, "    pass")
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

func (g *Generator) field(f *usr.Field) (string, []string, error) {
	typ, imports, err := Types.Render(f.Type)
	if err != nil {
		return "", nil, err
	}
	c := f.Constraints
	if format, _ := c.String(usr.Format); format == "email" && f.Type.Unwrap().Kind == usr.KindString {
		typ = strings.Replace(typ, "str", "EmailStr", 1)
		imports = append(imports, "from pydantic import EmailStr")
	}

	overrides := f.Overrides(Target)
	_, ownDefault := overrides["default"]
	_, ownFactory := overrides["default_factory"]

	var args python.Args
	switch {
	case ownDefault || ownFactory:
		// set by the override below
	case f.DefaultFactory != "":
		fac := factories[f.DefaultFactory]
		args.Set("default_factory", fac.expr)
		if fac.imp != "" {
			imports = append(imports, fac.imp)
		}
	case f.HasDefault:
		args.Set("default", python.Repr(f.Default))
	case f.Optional:
		args.Set("default", "None")
	default:
		args.Positional("...")
	}

	// Item bounds come after length bounds and win when both are declared.
	for _, kw := range []struct {
		key, arg string
	}{
		{usr.MinLength, "min_length"},
		{usr.MaxLength, "max_length"},
		{usr.MinItems, "min_length"},
		{usr.MaxItems, "max_length"},
		{usr.MinValue, "ge"},
		{usr.MaxValue, "le"},
		{usr.MaxDigits, "max_digits"},
		{usr.DecimalPlaces, "decimal_places"},
	} {
		if c.Has(kw.key) {
			args.Set(kw.arg, python.Repr(c[kw.key]))
		}
	}
	if re, ok := c.String(usr.Regex); ok {
		args.Set("pattern", python.Repr(re))
	}
	if f.Description != "" {
		args.Set("description", python.Repr(f.Description))
	}
	args.Override(overrides)

	imports = append(imports, "from pydantic import Field")
	return fmt.Sprintf("    %s: %s = Field(%s)", f.Name, typ, args.String()), imports, nil
}

// Index renders the package __init__.py re-exporting every model.
func (g *Generator) Index(schemas []*usr.Schema) (*usrgen.File, error) {
	var (
		lines   []string
		exports []string
	)
	for _, s := range schemas {
		names := []string{ClassName(s, variant.Base)}
		for _, v := range s.VariantNames() {
			names = append(names, ClassName(s, v))
		}
		module := strings.TrimSuffix(g.FileName(s), ".py")
		lines = append(lines, fmt.Sprintf("from .%s import %s", module, strings.Join(names, ", ")))
		exports = append(exports, names...)
	}

	var sb strings.Builder
	sb.WriteString(usrgen.HashComment.Line + usrgen.AutoGenerated + "\n")
	sb.WriteString(usrgen.HashComment.Line + "Generator: usrgen pydantic generator\n\n")
	for _, l := range lines {
		sb.WriteString(l + "\n")
	}
	sb.WriteString("\n__all__ = [\n")
	for _, e := range exports {
		fmt.Fprintf(&sb, "    %q,\n", e)
	}
	sb.WriteString("]\n")
	return &usrgen.File{RelativePath: "__init__.py", Data: []byte(sb.String())}, nil
}

func docstring(s string) string {
	return `"""` + strings.ReplaceAll(s, `"""`, `\"\"\"`) + `"""`
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", s, false
	}
	return s[:i], s[i+len(sep):], true
}
