package usr

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input found while building the IR.
// It is fatal to the parse of the schema it names.
type ValidationError struct {
	Schema  string
	Field   string
	Variant string
	Reason  string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema ")
	if e.Schema == "" {
		sb.WriteString("<unnamed>")
	} else {
		sb.WriteString(e.Schema)
	}
	if e.Variant != "" {
		fmt.Fprintf(&sb, ", variant %s", e.Variant)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, ", field %s", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	return sb.String()
}

// Severity of a non-fatal Issue.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Issue is a non-fatal finding about a schema declaration.
type Issue struct {
	Severity Severity
	Schema   string
	Field    string
	Message  string
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s: %s", i.Severity, i.Schema, i.Message)
	}
	return fmt.Sprintf("%s: %s.%s: %s", i.Severity, i.Schema, i.Field, i.Message)
}
