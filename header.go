package usrgen

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// AutoGenerated marks every generated file.
const AutoGenerated = "AUTO-GENERATED FILE - DO NOT EDIT MANUALLY"

// TimestampLabel starts the only line of a generated file that may differ
// between two runs over unchanged input.
const TimestampLabel = "Generated at:"

// CommentStyle describes how a target writes a line comment.
type CommentStyle struct {
	Line string
}

var (
	HashComment  = CommentStyle{Line: "# "}
	SlashComment = CommentStyle{Line: "// "}
)

// Header is the provenance header preceding each emitted model.
type Header struct {
	Target  string
	Schema  string
	Variant string
	Source  string
	Time    time.Time
}

// FormatTime renders t the way headers do.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Lines returns the header text without comment markers.
func (h Header) Lines() []string {
	from := h.Schema
	if h.Variant != "" {
		from = fmt.Sprintf("%s (%s variant)", h.Schema, h.Variant)
	}
	lines := []string{
		AutoGenerated,
		"Generated from: " + from,
	}
	if h.Source != "" {
		lines = append(lines, "Source: "+h.Source)
	}
	return append(lines,
		TimestampLabel+" "+FormatTime(h.Time),
		fmt.Sprintf("Generator: usrgen %s generator", h.Target),
	)
}

// Render returns the header as comment lines, each ending in a newline.
func (h Header) Render(style CommentStyle) string {
	var sb strings.Builder
	for _, l := range h.Lines() {
		sb.WriteString(style.Line)
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// timestampLine matches a header timestamp line: a line comment or a
// quoted JSON array element holding TimestampLabel and an RFC 3339 time,
// and nothing else.
var timestampLine = regexp.MustCompile(`^[ \t]*(?:(?:#|//) |")` + regexp.QuoteMeta(TimestampLabel) +
	` [0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9:.]+(?:Z|[+-][0-9]{2}:[0-9]{2})"?,?[ \t]*\r?\n?$`)

// StripTimestamp removes the header timestamp lines of a generated file.
// Other lines mentioning TimestampLabel are kept.
func StripTimestamp(b []byte) []byte {
	if !bytes.Contains(b, []byte(TimestampLabel)) {
		return b
	}
	lines := bytes.SplitAfter(b, []byte("\n"))
	out := make([]byte, 0, len(b))
	for _, l := range lines {
		if timestampLine.Match(l) {
			continue
		}
		out = append(out, l...)
	}
	return out
}

// Unit is one rendered model: its header, the import lines it needs and
// its body.
type Unit struct {
	Header  Header
	Imports []string
	Body    string
}

// Layout controls how units are assembled into a file.
type Layout struct {
	Style CommentStyle

	// MergeImports combines the import lines of all units. Nil sorts and
	// deduplicates them.
	MergeImports func([]string) []string

	// Gap separates consecutive units. Empty means one blank line.
	Gap string
}

// Assemble renders units into one file. Imports are hoisted below the
// first header; every unit keeps its own header.
func (l Layout) Assemble(units ...Unit) []byte {
	var all []string
	for _, u := range units {
		all = append(all, u.Imports...)
	}
	merge := l.MergeImports
	if merge == nil {
		merge = SortedImports
	}
	imports := merge(all)

	gap := l.Gap
	if gap == "" {
		gap = "\n"
	}

	var buf bytes.Buffer
	for i, u := range units {
		if i > 0 {
			buf.WriteString(gap)
		}
		buf.WriteString(u.Header.Render(l.Style))
		buf.WriteByte('\n')
		if i == 0 && len(imports) > 0 {
			for _, imp := range imports {
				buf.WriteString(imp)
				buf.WriteByte('\n')
			}
			buf.WriteString(gap)
		}
		buf.WriteString(strings.TrimRight(u.Body, "\n"))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// SortedImports returns lines sorted with duplicates and blanks removed.
func SortedImports(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
