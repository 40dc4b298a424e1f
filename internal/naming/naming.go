// Package naming converts identifiers between the casing conventions the
// targets need.
package naming

import (
	"strings"
	"unicode"
)

// Words splits an identifier into lower-case words at underscores, dashes,
// spaces and lower-to-upper case boundaries. Runs of capitals stay together:
// "HTTPServer" splits into "http" and "server".
func Words(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// Pascal returns s in PascalCase: "create_request" becomes "CreateRequest".
func Pascal(s string) string {
	var sb strings.Builder
	for _, w := range Words(s) {
		sb.WriteString(upperFirst(w))
	}
	return sb.String()
}

// Camel returns s in camelCase.
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return p
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Snake returns s in snake_case.
func Snake(s string) string {
	return strings.Join(Words(s), "_")
}

// Kebab returns s in kebab-case.
func Kebab(s string) string {
	return strings.Join(Words(s), "-")
}

// Plural is a naive English plural used for table names.
func Plural(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

func upperFirst(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
