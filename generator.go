package usrgen

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/schemagen/usrgen/usr"
)

// A Generator renders schemas into the source text of one target.
//
// Emit must be deterministic: the same schema, variant and options always
// produce the same bytes apart from the line carrying [TimestampLabel].
// Custom code registered for the target is emitted for the base model only,
// never for a variant.
type Generator interface {
	// Target returns the name the generator is registered under. It is also
	// the output directory of the target.
	Target() string

	// FileName returns the path, relative to the target directory, of the
	// file holding s.
	FileName(s *usr.Schema) string

	// Emit renders the base model of s when variant is empty, otherwise the
	// named variant.
	Emit(s *usr.Schema, variant string) ([]byte, error)

	// TypeTable returns the fixed type mapping of the target.
	TypeTable() *TypeTable
}

// A FileAssembler combines the base model and the variants of one schema
// into a single file. Generators that do not implement it have their
// emissions joined in order.
type FileAssembler interface {
	Generator

	// Assemble renders the file for s. variants is the base model ("")
	// followed by every variant, in declaration order.
	Assemble(s *usr.Schema, variants []string) ([]byte, error)
}

// An IndexGenerator produces one additional file per target describing the
// whole set of generated schemas, such as a package index.
type IndexGenerator interface {
	Generator

	// Index renders the index file for schemas, which are sorted by name.
	// A nil File means there is nothing to write.
	Index(schemas []*usr.Schema) (*File, error)
}

// Options are passed to a Factory.
type Options struct {
	// Config is the opaque per-target configuration. Each target decodes
	// its own keys and rejects unknown ones.
	Config map[string]any

	// Now returns the time stamped into provenance headers. It defaults to
	// time.Now.
	Now func() time.Time
}

// Time returns the generation time in UTC.
func (o Options) Time() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// DecodeConfig decodes the opaque target configuration into dst. See
// DecodeStrict.
func (o Options) DecodeConfig(dst any) error {
	if err := DecodeStrict(o.Config, dst); err != nil {
		return fmt.Errorf("invalid target config: %w", err)
	}
	return nil
}

// DecodeStrict decodes an opaque configuration map into dst, which must be
// a pointer to a struct with yaml tags. Keys dst does not declare are an
// error. A nil or empty map leaves dst unchanged.
func DecodeStrict(m map[string]any, dst any) error {
	if len(m) == 0 {
		return nil
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(dst)
}

// A Factory constructs a Generator from its options.
type Factory func(Options) (Generator, error)

// Registry maps target names to factories. It is constructed explicitly and
// passed to whoever needs it.
type Registry struct {
	mut       sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for target. Registering a target twice is an
// error.
func (r *Registry) Register(target string, f Factory) error {
	r.mut.Lock()
	defer r.mut.Unlock()
	if target == "" {
		return fmt.Errorf("target name must not be empty")
	}
	if _, has := r.factories[target]; has {
		return fmt.Errorf("target %q already registered", target)
	}
	r.factories[target] = f
	return nil
}

// Has reports whether target is registered.
func (r *Registry) Has(target string) bool {
	r.mut.RLock()
	defer r.mut.RUnlock()
	_, has := r.factories[target]
	return has
}

// Targets returns the registered target names in sorted order.
func (r *Registry) Targets() []string {
	r.mut.RLock()
	defer r.mut.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New constructs the generator for target.
func (r *Registry) New(target string, opts Options) (Generator, error) {
	r.mut.RLock()
	f, has := r.factories[target]
	r.mut.RUnlock()
	if !has {
		return nil, &UnknownTargetError{Target: target, Known: r.Targets()}
	}
	g, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target, err)
	}
	if g.Target() != target {
		return nil, fmt.Errorf("factory for %q built a generator for %q", target, g.Target())
	}
	return g, nil
}
