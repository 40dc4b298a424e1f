// Package python holds helpers shared by the Python targets.
package python

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Repr renders a scalar value as a Python literal.
func Repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		items := make([]string, len(x))
		for i, e := range x {
			items[i] = Repr(e)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = strconv.Quote(k) + ": " + Repr(x[k])
		}
		return "{" + strings.Join(items, ", ") + "}"
	default:
		return fmt.Sprint(x)
	}
}

// MergeImports groups "from m import a, b" lines by module and merges their
// names. Plain "import m" lines are kept. The result is sorted: plain
// imports first, then from-imports by module.
func MergeImports(lines []string) []string {
	plain := make(map[string]bool)
	from := make(map[string]map[string]bool)
	for _, l := range lines {
		l = strings.TrimSpace(l)
		switch {
		case l == "":
		case strings.HasPrefix(l, "from "):
			mod, names, ok := strings.Cut(strings.TrimPrefix(l, "from "), " import ")
			if !ok {
				plain[l] = true
				continue
			}
			mod = strings.TrimSpace(mod)
			if from[mod] == nil {
				from[mod] = make(map[string]bool)
			}
			for _, n := range strings.Split(names, ",") {
				if n = strings.TrimSpace(n); n != "" {
					from[mod][n] = true
				}
			}
		default:
			plain[l] = true
		}
	}

	out := sortedKeys(plain)
	for _, mod := range sortedKeys(from) {
		out = append(out, fmt.Sprintf("from %s import %s", mod, strings.Join(sortedKeys(from[mod]), ", ")))
	}
	return out
}

// Indent places code at class-body level. A block whose least indented
// line starts at column zero is shifted right by four spaces; a block that
// is already indented is kept as written.
func Indent(code string) []string {
	lines := strings.Split(strings.Trim(code, "\n"), "\n")
	shift := false
	for _, l := range lines {
		if strings.TrimSpace(l) != "" && !strings.HasPrefix(l, " ") && !strings.HasPrefix(l, "\t") {
			shift = true
			break
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case strings.TrimSpace(l) == "":
			out[i] = ""
		case shift:
			out[i] = "    " + strings.TrimRight(l, " \t")
		default:
			out[i] = strings.TrimRight(l, " \t")
		}
	}
	return out
}

// Args is the argument list of a call. A keyword keeps the position where
// it was first set; setting it again replaces its value, so a keyword is
// never passed twice.
type Args struct {
	positional []string
	keys       []string
	values     map[string]string
}

// Positional appends a positional argument. Positional arguments always
// precede keywords.
func (a *Args) Positional(expr string) {
	a.positional = append(a.positional, expr)
}

// Set sets keyword key to the rendered expression expr.
func (a *Args) Set(key, expr string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = expr
}

// Has reports whether keyword key is set.
func (a *Args) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Override sets every entry of an opaque override map as a Python
// literal, in sorted key order. Overrides win over generated keywords.
func (a *Args) Override(m map[string]any) {
	for _, k := range sortedKeys(m) {
		a.Set(k, Repr(m[k]))
	}
}

func (a *Args) String() string {
	out := make([]string, 0, len(a.positional)+len(a.keys))
	out = append(out, a.positional...)
	for _, k := range a.keys {
		out = append(out, k+"="+a.values[k])
	}
	return strings.Join(out, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
