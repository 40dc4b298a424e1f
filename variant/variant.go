// Package variant computes the concrete field list of a schema variant.
//
// Resolution is pure: it reads a parsed schema and never modifies it.
package variant

import (
	"fmt"

	"github.com/schemagen/usrgen/usr"
)

// Base names the unfiltered base model of a schema.
const Base = ""

// Reason explains why a field was left out of a resolution.
type Reason int

const (
	// NotListed fields are absent from an explicit variant list.
	NotListed Reason = iota
	// Excluded fields name the variant in exclude_from.
	Excluded
	// NotIncluded fields carry an include_only set without the variant.
	NotIncluded
)

func (r Reason) String() string {
	switch r {
	case NotListed:
		return "not listed"
	case Excluded:
		return "exclude_from"
	case NotIncluded:
		return "include_only"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Drop records a field that the variant references or would cover but
// that the field's own rules keep out.
type Drop struct {
	Field  string
	Reason Reason
}

// Resolution is the result of resolving one variant.
type Resolution struct {
	Schema  string
	Variant string
	All     bool

	// Fields in output order: the variant's listed order, or declaration
	// order for ALL and the base model.
	Fields  []*usr.Field
	Dropped []Drop
}

// Empty reports whether no field survived.
func (r Resolution) Empty() bool { return len(r.Fields) == 0 }

// Names returns the resolved field names in output order.
func (r Resolution) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Resolve computes the fields of the named variant of s. Base resolves to
// every field of s without applying exclusion rules.
//
// A field is kept when the variant covers it, its exclude_from does not
// name the variant, and its include_only is either empty or names the
// variant. Exclusion is checked first and always wins. For an ALL variant,
// exclude_from and include_only may also name ALL or __all__.
func Resolve(s *usr.Schema, name string) (Resolution, error) {
	if name == Base {
		return Resolution{Schema: s.Name, All: true, Fields: append([]*usr.Field(nil), s.Fields...)}, nil
	}

	v, ok := s.Variant(name)
	if !ok {
		return Resolution{}, &usr.ValidationError{
			Schema:  s.Name,
			Variant: name,
			Reason:  "unknown variant",
		}
	}

	res := Resolution{Schema: s.Name, Variant: name, All: v.All}
	if v.All {
		for _, f := range s.Fields {
			res.add(f, v)
		}
		return res, nil
	}

	listed := make(map[string]bool, len(v.Fields))
	for _, fname := range v.Fields {
		listed[fname] = true
		f := s.Field(fname)
		if f == nil {
			// The parser rejects unknown names, so this only happens for
			// hand-built schemas.
			return Resolution{}, &usr.ValidationError{
				Schema:  s.Name,
				Variant: name,
				Field:   fname,
				Reason:  fmt.Sprintf("variant references unknown field %q", fname),
			}
		}
		res.add(f, v)
	}
	for _, f := range s.Fields {
		if !listed[f.Name] {
			res.Dropped = append(res.Dropped, Drop{Field: f.Name, Reason: NotListed})
		}
	}
	return res, nil
}

// All resolves the base model followed by every declared variant of s in
// declaration order.
func All(s *usr.Schema) ([]Resolution, error) {
	out := make([]Resolution, 0, len(s.Variants)+1)
	base, _ := Resolve(s, Base)
	out = append(out, base)
	for _, v := range s.Variants {
		r, err := Resolve(s, v.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (r *Resolution) add(f *usr.Field, v usr.Variant) {
	switch {
	case names(f.ExcludeFrom, v):
		r.Dropped = append(r.Dropped, Drop{Field: f.Name, Reason: Excluded})
	case !f.IncludeOnly.Empty() && !names(f.IncludeOnly, v):
		r.Dropped = append(r.Dropped, Drop{Field: f.Name, Reason: NotIncluded})
	default:
		r.Fields = append(r.Fields, f)
	}
}

// names reports whether set refers to v, by name or, for ALL variants, by
// either sentinel spelling.
func names(set usr.NameSet, v usr.Variant) bool {
	if set.Contains(v.Name) {
		return true
	}
	return v.All && (set.Contains(usr.AllName) || set.Contains(usr.AllSentinel))
}
