package parser

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/schemagen/usrgen/usr"
)

// ErrSealed is returned when adding to a registry that has been sealed.
var ErrSealed = errors.New("schema registry is sealed")

// Registry holds the parsed schemas of one run. It is constructed by the
// caller and passed explicitly; there is no package-level registry.
//
// Schemas are added while loading and the registry is sealed before
// generation starts. After Seal, the registry is read-only.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*usr.Schema
	sealed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*usr.Schema)}
}

// Add registers s. Schema names are unique across the registry.
func (r *Registry) Add(s *usr.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if prev, has := r.schemas[s.Name]; has {
		return &usr.ValidationError{
			Schema: s.Name,
			Reason: fmt.Sprintf("schema already declared in %s", prev.Source),
		}
	}
	r.schemas[s.Name] = s
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get returns the named schema.
func (r *Registry) Get(name string) (*usr.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the registered schemas sorted by name.
func (r *Registry) All() []*usr.Schema {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*usr.Schema, len(names))
	for i, n := range names {
		out[i] = r.schemas[n]
	}
	return out
}

// ParseFile decodes and parses every declaration in a YAML file. The first
// failing declaration aborts the file.
func ParseFile(path string) ([]*usr.Schema, []usr.Issue, error) {
	decls, err := DecodeFile(path)
	if err != nil {
		return nil, nil, err
	}
	var (
		schemas []*usr.Schema
		issues  []usr.Issue
	)
	for _, d := range decls {
		s, is, err := Parse(d)
		if err != nil {
			return nil, nil, err
		}
		schemas = append(schemas, s)
		issues = append(issues, is...)
	}
	return schemas, issues, nil
}
