package usr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the tag of a canonical type. The set is closed; every declared
// field type maps to exactly one Kind at its root.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBoolean
	KindBytes
	KindDatetime
	KindDate
	KindTime
	KindUUID
	KindDecimal
	KindDict
	KindList
	KindOptional
	KindUnion
	KindLiteral
	KindForwardRef
)

var kindNames = [...]string{
	KindInvalid:    "INVALID",
	KindString:     "STRING",
	KindInteger:    "INTEGER",
	KindFloat:      "FLOAT",
	KindBoolean:    "BOOLEAN",
	KindBytes:      "BYTES",
	KindDatetime:   "DATETIME",
	KindDate:       "DATE",
	KindTime:       "TIME",
	KindUUID:       "UUID",
	KindDecimal:    "DECIMAL",
	KindDict:       "DICT",
	KindList:       "LIST",
	KindOptional:   "OPTIONAL",
	KindUnion:      "UNION",
	KindLiteral:    "LITERAL",
	KindForwardRef: "FORWARD_REF",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Kinds returns every valid Kind in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, 0, len(kindNames)-1)
	for k := KindString; k <= KindForwardRef; k++ {
		ks = append(ks, k)
	}
	return ks
}

// Composite reports whether values of this kind nest other types or values.
func (k Kind) Composite() bool {
	switch k {
	case KindList, KindOptional, KindUnion, KindLiteral, KindForwardRef:
		return true
	}
	return false
}

// Type is a canonical type. Composite kinds carry their concrete inner
// shape: Elem for LIST and OPTIONAL, Members for UNION, Values for LITERAL
// and Ref for FORWARD_REF.
//
// A Type is a value; it is never mutated after the Type Mapper returns it.
type Type struct {
	Kind    Kind
	Elem    *Type
	Members []Type
	Values  []any
	Ref     string
}

// Scalar returns a non-composite Type of kind k.
func Scalar(k Kind) Type { return Type{Kind: k} }

// ListOf returns LIST<elem>.
func ListOf(elem Type) Type { return Type{Kind: KindList, Elem: &elem} }

// OptionalOf returns OPTIONAL<elem>. Wrapping an optional again is a no-op.
func OptionalOf(elem Type) Type {
	if elem.Kind == KindOptional {
		return elem
	}
	return Type{Kind: KindOptional, Elem: &elem}
}

// UnionOf returns UNION<members...>.
func UnionOf(members ...Type) Type { return Type{Kind: KindUnion, Members: members} }

// LiteralOf returns LITERAL<values...>. Values must be string, int64,
// float64 or bool.
func LiteralOf(values ...any) Type { return Type{Kind: KindLiteral, Values: values} }

// RefTo returns FORWARD_REF<name>.
func RefTo(name string) Type { return Type{Kind: KindForwardRef, Ref: name} }

// Unwrap strips a single OPTIONAL layer.
func (t Type) Unwrap() Type {
	if t.Kind == KindOptional && t.Elem != nil {
		return *t.Elem
	}
	return t
}

// IsOptional reports whether t is OPTIONAL<...>.
func (t Type) IsOptional() bool { return t.Kind == KindOptional }

// Walk calls fn for t and then for every nested type, depth first.
func (t Type) Walk(fn func(Type)) {
	fn(t)
	if t.Elem != nil {
		t.Elem.Walk(fn)
	}
	for _, m := range t.Members {
		m.Walk(fn)
	}
}

// Equal reports structural equality.
func (t Type) Equal(o Type) bool {
	return t.String() == o.String()
}

func (t Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t Type) write(sb *strings.Builder) {
	sb.WriteString(t.Kind.String())
	switch t.Kind {
	case KindList, KindOptional:
		sb.WriteByte('<')
		if t.Elem != nil {
			t.Elem.write(sb)
		}
		sb.WriteByte('>')
	case KindUnion:
		sb.WriteByte('<')
		for i, m := range t.Members {
			if i > 0 {
				sb.WriteByte(',')
			}
			m.write(sb)
		}
		sb.WriteByte('>')
	case KindLiteral:
		sb.WriteByte('<')
		for i, v := range t.Values {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(FormatLiteral(v))
		}
		sb.WriteByte('>')
	case KindForwardRef:
		sb.WriteByte('<')
		sb.WriteString(t.Ref)
		sb.WriteByte('>')
	}
}

// FormatLiteral renders a literal value in a neutral, quoted form.
func FormatLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}
