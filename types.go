package usrgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/schemagen/usrgen/usr"
)

// TypeRule is the rendering of one Kind in a target.
//
// For scalar kinds Expr is the literal target text. For composite kinds
// Expr is a format string whose single %s receives the rendered inner
// shape: the element of LIST and OPTIONAL, the joined members of UNION,
// the joined values of LITERAL and the name of FORWARD_REF. A composite
// rule whose Expr has no %s is a fallback that ignores the inner shape.
type TypeRule struct {
	Expr string

	// Item formats each UNION member or LITERAL value before joining.
	// Empty means %s.
	Item string

	// Single replaces Expr when a UNION or LITERAL has exactly one entry.
	Single string

	// Sep joins UNION members and LITERAL values. Empty means ", ".
	Sep string

	// Import is a line the generated file needs for this rule.
	Import string

	// Fallback marks a non-native representation. Note documents it.
	Fallback bool
	Note     string
}

// TypeTable is the fixed Kind to target mapping of one generator.
type TypeTable struct {
	Target string
	Rules  map[usr.Kind]TypeRule

	// Quote renders a LITERAL value in target syntax.
	Quote func(v any) string
}

// Rule returns the rule for k.
func (tt *TypeTable) Rule(k usr.Kind) (TypeRule, error) {
	r, ok := tt.Rules[k]
	if !ok {
		return TypeRule{}, &UnmappedTypeError{Target: tt.Target, Kind: k}
	}
	return r, nil
}

// Check verifies the table has an entry for every Kind.
func (tt *TypeTable) Check() error {
	for _, k := range usr.Kinds() {
		if _, err := tt.Rule(k); err != nil {
			return err
		}
	}
	return nil
}

// Fallbacks returns the kinds mapped by fallback, in Kind order.
func (tt *TypeTable) Fallbacks() []usr.Kind {
	var out []usr.Kind
	for _, k := range usr.Kinds() {
		if tt.Rules[k].Fallback {
			out = append(out, k)
		}
	}
	return out
}

// Render returns the target text for t and the import lines it requires,
// sorted and without duplicates.
func (tt *TypeTable) Render(t usr.Type) (string, []string, error) {
	imports := make(map[string]bool)
	s, err := tt.render(t, imports)
	if err != nil {
		return "", nil, err
	}
	lines := make([]string, 0, len(imports))
	for l := range imports {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	return s, lines, nil
}

func (tt *TypeTable) render(t usr.Type, imports map[string]bool) (string, error) {
	r, err := tt.Rule(t.Kind)
	if err != nil {
		return "", err
	}
	if r.Import != "" {
		imports[r.Import] = true
	}
	if !t.Kind.Composite() || !strings.Contains(r.Expr, "%s") {
		return r.Expr, nil
	}

	var items []string
	switch t.Kind {
	case usr.KindList, usr.KindOptional:
		if t.Elem == nil {
			return "", fmt.Errorf("%s without an element type", t.Kind)
		}
		inner, err := tt.render(*t.Elem, imports)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(r.Expr, inner), nil
	case usr.KindForwardRef:
		return fmt.Sprintf(r.Expr, t.Ref), nil
	case usr.KindUnion:
		for _, m := range t.Members {
			inner, err := tt.render(m, imports)
			if err != nil {
				return "", err
			}
			items = append(items, inner)
		}
	case usr.KindLiteral:
		quote := tt.Quote
		if quote == nil {
			quote = usr.FormatLiteral
		}
		for _, v := range t.Values {
			items = append(items, quote(v))
		}
	}
	return r.join(items), nil
}

func (r TypeRule) join(items []string) string {
	item := r.Item
	if item == "" {
		item = "%s"
	}
	sep := r.Sep
	if sep == "" {
		sep = ", "
	}
	formatted := make([]string, len(items))
	for i, s := range items {
		formatted[i] = fmt.Sprintf(item, s)
	}
	if len(items) == 1 && r.Single != "" {
		return fmt.Sprintf(r.Single, formatted[0])
	}
	return fmt.Sprintf(r.Expr, strings.Join(formatted, sep))
}
