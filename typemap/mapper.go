// Package typemap converts declared field types into canonical usr types.
//
// Declared types are written in a small bracket grammar borrowed from
// Python's typing module, for example Optional[List[str]] or
// Literal["draft", "published"]. The mapper only looks at the shape of the
// declaration, so the same text always maps to the same usr.Type.
package typemap

import (
	"fmt"
	"regexp"

	"github.com/schemagen/usrgen/usr"
)

// MapError reports a declaration that parses but has no canonical type.
type MapError struct {
	Source string
	Offset int
	Reason string
}

func (e *MapError) Error() string {
	return fmt.Sprintf("unsupported type %q at column %d: %s", e.Source, e.Offset+1, e.Reason)
}

var scalars = map[string]usr.Kind{
	"str":               usr.KindString,
	"string":            usr.KindString,
	"int":               usr.KindInteger,
	"integer":           usr.KindInteger,
	"float":             usr.KindFloat,
	"bool":              usr.KindBoolean,
	"boolean":           usr.KindBoolean,
	"bytes":             usr.KindBytes,
	"datetime":          usr.KindDatetime,
	"datetime.datetime": usr.KindDatetime,
	"date":              usr.KindDate,
	"datetime.date":     usr.KindDate,
	"time":              usr.KindTime,
	"datetime.time":     usr.KindTime,
	"uuid":              usr.KindUUID,
	"UUID":              usr.KindUUID,
	"uuid.UUID":         usr.KindUUID,
	"Decimal":           usr.KindDecimal,
	"decimal":           usr.KindDecimal,
	"decimal.Decimal":   usr.KindDecimal,
	"dict":              usr.KindDict,
	"Dict":              usr.KindDict,
}

var refName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MapString parses and maps a declared type in one step.
func MapString(decl string) (usr.Type, error) {
	e, err := Parse(decl)
	if err != nil {
		return usr.Type{}, err
	}
	return Map(decl, e)
}

// Map converts a parsed declaration to its canonical type. src is the text
// the expression was parsed from and is only used in errors.
func Map(src string, e Expr) (usr.Type, error) {
	m := mapper{src: src}
	return m.mapExpr(e)
}

type mapper struct {
	src string
}

func (m mapper) fail(e Expr, format string, args ...any) error {
	return &MapError{Source: m.src, Offset: e.Pos(), Reason: fmt.Sprintf(format, args...)}
}

func (m mapper) mapExpr(e Expr) (usr.Type, error) {
	switch x := e.(type) {
	case *Name:
		return m.mapName(x)
	case *Generic:
		return m.mapGeneric(x)
	case *Quoted:
		if !refName.MatchString(x.Text) {
			return usr.Type{}, m.fail(x, "forward reference %q is not an identifier", x.Text)
		}
		return usr.RefTo(x.Text), nil
	case *Pipe:
		return m.mapUnion(x, x.Alts)
	case *Lit:
		return usr.Type{}, m.fail(x, "literal value %v is only allowed inside Literal[...]", x.Value)
	default:
		return usr.Type{}, m.fail(e, "unrecognised type expression")
	}
}

func (m mapper) mapName(n *Name) (usr.Type, error) {
	if k, ok := scalars[n.Ident]; ok {
		return usr.Scalar(k), nil
	}
	switch n.Ident {
	case "list", "List":
		return usr.Type{}, m.fail(n, "%s needs an element type, e.g. %s[str]", n.Ident, n.Ident)
	case "None":
		return usr.Type{}, m.fail(n, "None is only allowed as a union member")
	case "Any", "object":
		return usr.Type{}, m.fail(n, "%s has no canonical type", n.Ident)
	}
	return usr.Type{}, m.fail(n, "unknown type %q (quote it to reference another schema)", n.Ident)
}

func (m mapper) mapGeneric(g *Generic) (usr.Type, error) {
	switch g.Ident {
	case "List", "list", "Sequence":
		if len(g.Args) != 1 {
			return usr.Type{}, m.fail(g, "%s takes exactly one argument", g.Ident)
		}
		elem, err := m.mapExpr(g.Args[0])
		if err != nil {
			return usr.Type{}, err
		}
		return usr.ListOf(elem), nil

	case "Optional":
		if len(g.Args) != 1 {
			return usr.Type{}, m.fail(g, "Optional takes exactly one argument")
		}
		if isNone(g.Args[0]) {
			return usr.Type{}, m.fail(g, "Optional[None] has no canonical type")
		}
		elem, err := m.mapExpr(g.Args[0])
		if err != nil {
			return usr.Type{}, err
		}
		return usr.OptionalOf(elem), nil

	case "Union":
		return m.mapUnion(g, g.Args)

	case "Dict", "dict", "Mapping":
		if len(g.Args) != 2 {
			return usr.Type{}, m.fail(g, "%s takes a key and a value type", g.Ident)
		}
		if k, ok := g.Args[0].(*Name); !ok || scalars[k.Ident] != usr.KindString {
			return usr.Type{}, m.fail(g.Args[0], "dictionary keys must be str")
		}
		if v, ok := g.Args[1].(*Name); !ok || v.Ident != "Any" {
			if _, err := m.mapExpr(g.Args[1]); err != nil {
				return usr.Type{}, err
			}
		}
		return usr.Scalar(usr.KindDict), nil

	case "Literal":
		values := make([]any, 0, len(g.Args))
		for _, a := range g.Args {
			switch v := a.(type) {
			case *Quoted:
				values = append(values, v.Text)
			case *Lit:
				values = append(values, v.Value)
			default:
				return usr.Type{}, m.fail(a, "Literal accepts only string, number or boolean values")
			}
		}
		return usr.LiteralOf(values...), nil

	case "Ref":
		if len(g.Args) != 1 {
			return usr.Type{}, m.fail(g, "Ref takes exactly one schema name")
		}
		switch r := g.Args[0].(type) {
		case *Name:
			return usr.RefTo(r.Ident), nil
		case *Quoted:
			return m.mapExpr(r)
		}
		return usr.Type{}, m.fail(g.Args[0], "Ref takes a schema name")
	}
	return usr.Type{}, m.fail(g, "unsupported generic %s[...]", g.Ident)
}

// mapUnion flattens nested unions, folds None into OPTIONAL and collapses
// single-member unions.
func (m mapper) mapUnion(at Expr, alts []Expr) (usr.Type, error) {
	var (
		members  []usr.Type
		seen     = map[string]bool{}
		optional bool
	)
	var collect func(alts []Expr) error
	collect = func(alts []Expr) error {
		for _, a := range alts {
			if isNone(a) {
				optional = true
				continue
			}
			t, err := m.mapExpr(a)
			if err != nil {
				return err
			}
			if t.Kind == usr.KindOptional {
				optional = true
				t = t.Unwrap()
			}
			if t.Kind == usr.KindUnion {
				for _, mt := range t.Members {
					if !seen[mt.String()] {
						seen[mt.String()] = true
						members = append(members, mt)
					}
				}
				continue
			}
			if !seen[t.String()] {
				seen[t.String()] = true
				members = append(members, t)
			}
		}
		return nil
	}
	if err := collect(alts); err != nil {
		return usr.Type{}, err
	}

	var out usr.Type
	switch len(members) {
	case 0:
		return usr.Type{}, m.fail(at, "union has no members besides None")
	case 1:
		out = members[0]
	default:
		out = usr.UnionOf(members...)
	}
	if optional {
		out = usr.OptionalOf(out)
	}
	return out, nil
}

func isNone(e Expr) bool {
	n, ok := e.(*Name)
	return ok && (n.Ident == "None" || n.Ident == "null")
}
