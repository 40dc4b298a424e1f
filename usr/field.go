package usr

import (
	"math"
	"sort"
)

// Constraint keys recognised by the parser and the bundled targets. The
// Constraints map is open; targets ignore keys they do not understand.
const (
	MinLength     = "min_length"
	MaxLength     = "max_length"
	Regex         = "regex"
	MinValue      = "min_value"
	MaxValue      = "max_value"
	Format        = "format"
	MinItems      = "min_items"
	MaxItems      = "max_items"
	MaxDigits     = "max_digits"
	DecimalPlaces = "decimal_places"
)

// Constraints is the open constraint map of a field. Numeric values are
// normalised to int64 or float64 by the parser.
type Constraints map[string]any

// Int returns the integral value stored under key.
func (c Constraints) Int(key string) (int64, bool) {
	switch v := c[key].(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	}
	return 0, false
}

// Float returns the numeric value stored under key.
func (c Constraints) Float(key string) (float64, bool) {
	switch v := c[key].(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// String returns the string value stored under key.
func (c Constraints) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Has reports whether key is set.
func (c Constraints) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Keys returns the constraint keys in sorted order.
func (c Constraints) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DBProperties are the storage-oriented attributes of a field.
type DBProperties struct {
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	Index         bool
	ForeignKey    string
	AutoNowAdd    bool
	AutoNow       bool
}

// RelationshipKind names the cardinality of a relationship.
type RelationshipKind string

const (
	OneToOne   RelationshipKind = "one_to_one"
	OneToMany  RelationshipKind = "one_to_many"
	ManyToOne  RelationshipKind = "many_to_one"
	ManyToMany RelationshipKind = "many_to_many"
)

// Valid reports whether k is a known relationship kind.
func (k RelationshipKind) Valid() bool {
	switch k {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// Relationship is opaque to non-relational targets.
type Relationship struct {
	Kind          RelationshipKind
	BackPopulates string
	Cascade       string
	ThroughTable  string
}

// DefaultFactory names a zero-argument constructor for a field default.
type DefaultFactory string

const (
	FactoryList DefaultFactory = "list"
	FactoryDict DefaultFactory = "dict"
	FactorySet  DefaultFactory = "set"
	FactoryNow  DefaultFactory = "now"
	FactoryUUID DefaultFactory = "uuid4"
)

// Valid reports whether f is a known factory.
func (f DefaultFactory) Valid() bool {
	switch f {
	case FactoryList, FactoryDict, FactorySet, FactoryNow, FactoryUUID:
		return true
	}
	return false
}

// Field is a single field of a Schema. It is owned by its schema.
type Field struct {
	Name     string
	Type     Type
	Optional bool

	// HasDefault distinguishes an explicit null default from no default.
	HasDefault     bool
	Default        any
	DefaultFactory DefaultFactory

	Constraints  Constraints
	DB           DBProperties
	Relationship *Relationship

	ExcludeFrom NameSet
	IncludeOnly NameSet

	// TargetOverrides holds per-target opaque configuration. Each target
	// reads only its own key.
	TargetOverrides map[string]map[string]any

	Description string
}

// Required reports whether a value must be supplied for the field.
func (f *Field) Required() bool {
	return !f.Optional && !f.HasDefault && f.DefaultFactory == ""
}

// Overrides returns the opaque configuration for target, or nil.
func (f *Field) Overrides(target string) map[string]any {
	return f.TargetOverrides[target]
}

// NameSet is an immutable, sorted set of names.
type NameSet []string

// NewNameSet returns a sorted, deduplicated set.
func NewNameSet(names ...string) NameSet {
	if len(names) == 0 {
		return nil
	}
	cp := append([]string(nil), names...)
	sort.Strings(cp)
	out := cp[:0]
	for i, n := range cp {
		if i > 0 && n == cp[i-1] {
			continue
		}
		out = append(out, n)
	}
	return NameSet(out)
}

// Contains reports whether name is in the set.
func (s NameSet) Contains(name string) bool {
	i := sort.SearchStrings(s, name)
	return i < len(s) && s[i] == name
}

// Empty reports whether the set has no members.
func (s NameSet) Empty() bool { return len(s) == 0 }
