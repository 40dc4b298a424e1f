package usrgen

import (
	"fmt"
	"strings"

	"github.com/schemagen/usrgen/usr"
)

// GenerationError reports that a target could not produce output for one
// schema and variant. It is recorded and does not stop sibling emissions.
type GenerationError struct {
	Target  string
	Schema  string
	Variant string
	Err     error
}

func (e *GenerationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: ", e.Target)
	if e.Schema == "" {
		sb.WriteString("index")
	} else {
		sb.WriteString(e.Schema)
		if e.Variant == "" {
			sb.WriteString(" (base)")
		} else {
			fmt.Fprintf(&sb, " (%s variant)", e.Variant)
		}
	}
	fmt.Fprintf(&sb, ": %v", e.Err)
	return sb.String()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// UnmappedTypeError reports a canonical type with no entry in a target's
// type table. This is distinct from a type with only a fallback entry,
// which generates normally.
type UnmappedTypeError struct {
	Target string
	Kind   usr.Kind
}

func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("target %s has no mapping for %s", e.Target, e.Kind)
}

// UnknownTargetError is returned for a target name with no registered
// factory.
type UnknownTargetError struct {
	Target string
	Known  []string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q (known: %s)", e.Target, strings.Join(e.Known, ", "))
}

// EmptyVariantError reports a variant whose resolution left no fields,
// under a policy that treats that as a failure.
type EmptyVariantError struct {
	Schema  string
	Variant string
}

func (e *EmptyVariantError) Error() string {
	return fmt.Sprintf("variant %s of %s resolves to no fields", e.Variant, e.Schema)
}
