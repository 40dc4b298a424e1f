package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Declaration is an externally supplied schema declaration. It mirrors the
// YAML surface one to one, so a collaborator that builds declarations in
// code and one that reads them from disk feed the parser identically.
type Declaration struct {
	Name        string              `yaml:"schema"`
	Description string              `yaml:"description,omitempty"`
	Fields      []FieldDecl         `yaml:"fields"`
	Variants    []VariantDecl       `yaml:"-"`
	Meta        map[string]MetaDecl `yaml:"meta,omitempty"`

	// Source identifies where the declaration came from, usually a path.
	Source string `yaml:"-"`
}

// VariantDecl is one entry of the variants mapping. All is set when the
// entry is the __all__ sentinel.
type VariantDecl struct {
	Name   string
	All    bool
	Fields []string
}

// MetaDecl is the per-target meta block of a schema. Imports, RawCode and
// Methods become the schema's custom code; everything else is passed to
// the target as schema-level overrides.
type MetaDecl struct {
	Imports []string       `yaml:"imports,omitempty"`
	RawCode string         `yaml:"raw_code,omitempty"`
	Methods string         `yaml:"methods,omitempty"`
	Extra   map[string]any `yaml:",inline"`
}

// FieldDecl is a single declared field.
type FieldDecl struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	Default        any    `yaml:"default,omitempty"`
	DefaultFactory string `yaml:"default_factory,omitempty"`
	Description    string `yaml:"description,omitempty"`

	MinLength     *int64   `yaml:"min_length,omitempty"`
	MaxLength     *int64   `yaml:"max_length,omitempty"`
	MinItems      *int64   `yaml:"min_items,omitempty"`
	MaxItems      *int64   `yaml:"max_items,omitempty"`
	MinValue      *float64 `yaml:"min_value,omitempty"`
	MaxValue      *float64 `yaml:"max_value,omitempty"`
	MaxDigits     *int64   `yaml:"max_digits,omitempty"`
	DecimalPlaces *int64   `yaml:"decimal_places,omitempty"`
	Regex         string   `yaml:"regex,omitempty"`
	Format        string   `yaml:"format,omitempty"`

	// Constraints carries any further constraint keys verbatim.
	Constraints map[string]any `yaml:"constraints,omitempty"`

	PrimaryKey    bool   `yaml:"primary_key,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty"`
	Unique        bool   `yaml:"unique,omitempty"`
	Index         bool   `yaml:"index,omitempty"`
	ForeignKey    string `yaml:"foreign_key,omitempty"`
	AutoNowAdd    bool   `yaml:"auto_now_add,omitempty"`
	AutoNow       bool   `yaml:"auto_now,omitempty"`

	Relationship  string `yaml:"relationship,omitempty"`
	BackPopulates string `yaml:"back_populates,omitempty"`
	Cascade       string `yaml:"cascade,omitempty"`
	ThroughTable  string `yaml:"through_table,omitempty"`

	ExcludeFrom []string `yaml:"exclude_from,omitempty"`
	IncludeOnly []string `yaml:"include_only,omitempty"`

	Targets map[string]map[string]any `yaml:"targets,omitempty"`

	// HasDefault is true when the default key is present, even as null.
	// Declarations built in code may leave it unset; a non-nil Default
	// counts as present either way.
	HasDefault bool `yaml:"-"`
}

// UnmarshalYAML records whether the default key was present at all, which
// plain decoding cannot tell apart from an explicit null.
func (f *FieldDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain FieldDecl
	if err := n.Decode((*plain)(f)); err != nil {
		return err
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !fieldKeys[key.Value] {
			return fmt.Errorf("line %d: unknown field attribute %q", key.Line, key.Value)
		}
		if key.Value == "default" {
			f.HasDefault = true
		}
	}
	return nil
}

var fieldKeys = map[string]bool{
	"name": true, "type": true, "default": true, "default_factory": true, "description": true,
	"min_length": true, "max_length": true, "min_items": true, "max_items": true,
	"min_value": true, "max_value": true, "max_digits": true, "decimal_places": true,
	"regex": true, "format": true, "constraints": true,
	"primary_key": true, "auto_increment": true, "unique": true, "index": true,
	"foreign_key": true, "auto_now_add": true, "auto_now": true,
	"relationship": true, "back_populates": true, "cascade": true, "through_table": true,
	"exclude_from": true, "include_only": true, "targets": true,
}

var declarationKeys = map[string]bool{
	"schema": true, "description": true, "fields": true, "variants": true, "meta": true,
}

// UnmarshalYAML decodes the declaration and keeps the variants mapping in
// document order.
func (d *Declaration) UnmarshalYAML(n *yaml.Node) error {
	type plain Declaration
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schema declaration must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if key := n.Content[i]; !declarationKeys[key.Value] {
			return fmt.Errorf("line %d: unknown schema attribute %q", key.Line, key.Value)
		}
		if n.Content[i].Value != "variants" {
			continue
		}
		vn := n.Content[i+1]
		if vn.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: variants must be a mapping of name to field list", vn.Line)
		}
		for j := 0; j+1 < len(vn.Content); j += 2 {
			name, def := vn.Content[j].Value, vn.Content[j+1]
			vd := VariantDecl{Name: name}
			switch {
			case def.Kind == yaml.ScalarNode && def.Value == "__all__":
				vd.All = true
			case def.Kind == yaml.SequenceNode:
				if err := def.Decode(&vd.Fields); err != nil {
					return fmt.Errorf("line %d: variant %s: %w", def.Line, name, err)
				}
			default:
				return fmt.Errorf("line %d: variant %s must be a list of field names or __all__", def.Line, name)
			}
			d.Variants = append(d.Variants, vd)
		}
	}
	return nil
}
