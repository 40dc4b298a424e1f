package usr

// AllSentinel is the declaration-surface spelling of a variant listing every field.
const AllSentinel = "__all__"

// AllName is the IR spelling of the ALL sentinel. Field exclusion sets may
// name either spelling to opt out of every ALL variant.
const AllName = "ALL"

// Variant is a named view over a schema's fields. A variant either lists
// its fields explicitly, in output order, or selects ALL of them.
type Variant struct {
	Name   string
	All    bool
	Fields []string
}

// CodeBlock is target-specific source text injected into the base model of
// a schema. The core never interprets it.
type CodeBlock struct {
	Imports []string
	RawCode string
	Methods string
}

// Empty reports whether the block carries nothing to inject.
func (c CodeBlock) Empty() bool {
	return len(c.Imports) == 0 && c.RawCode == "" && c.Methods == ""
}

// Schema is the Universal Schema Representation of one declared shape.
//
// A Schema is built once by the parser and is read-only afterwards; a
// re-parse produces a new Schema rather than editing an existing one.
type Schema struct {
	Name        string
	Description string

	// Source is the declaration the schema was parsed from, typically a
	// file path. It is used for provenance headers and error messages.
	Source string

	// Fields in declaration order.
	Fields []*Field

	// Variants in declaration order.
	Variants []Variant

	// CustomCode is keyed by target name and applies to the base model only.
	CustomCode map[string]CodeBlock

	// TargetOverrides holds schema-level opaque configuration per target.
	TargetOverrides map[string]map[string]any

	byName map[string]int
}

// Index builds the field-name lookup. The parser calls it once before
// handing the schema out.
func (s *Schema) Index() {
	s.byName = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		s.byName[f.Name] = i
	}
}

// Field returns the named field, or nil.
func (s *Schema) Field(name string) *Field {
	if s.byName == nil {
		for _, f := range s.Fields {
			if f.Name == name {
				return f
			}
		}
		return nil
	}
	i, ok := s.byName[name]
	if !ok {
		return nil
	}
	return s.Fields[i]
}

// Variant returns the named variant.
func (s *Schema) Variant(name string) (Variant, bool) {
	for _, v := range s.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantNames returns variant names in declaration order.
func (s *Schema) VariantNames() []string {
	names := make([]string, len(s.Variants))
	for i, v := range s.Variants {
		names[i] = v.Name
	}
	return names
}

// Code returns the custom code block for target.
func (s *Schema) Code(target string) (CodeBlock, bool) {
	cb, ok := s.CustomCode[target]
	if !ok || cb.Empty() {
		return CodeBlock{}, false
	}
	return cb, true
}

// Overrides returns schema-level opaque configuration for target, or nil.
func (s *Schema) Overrides(target string) map[string]any {
	return s.TargetOverrides[target]
}

// PrimaryKeys returns the primary key fields in declaration order.
func (s *Schema) PrimaryKeys() []*Field {
	var out []*Field
	for _, f := range s.Fields {
		if f.DB.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}

// HasRelationships reports whether any field declares a relationship.
func HasRelationships(fields []*Field) bool {
	for _, f := range fields {
		if f.Relationship != nil {
			return true
		}
	}
	return false
}
