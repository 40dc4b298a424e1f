package usrgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/schemagen/usrgen/usr"
	"github.com/schemagen/usrgen/variant"
)

// Artifact is one emitted model: the base model or a variant of a schema,
// rendered by one target.
type Artifact struct {
	Target  string
	Schema  string
	Variant string

	// Path of the file the artifact is assembled into, relative to the
	// output root.
	Path string
	Data []byte
}

// Result is the outcome of running a Pipeline.
type Result struct {
	FS        *FS
	Artifacts []Artifact
	Failed    []*GenerationError
}

// Err returns every failure as a single error, or nil.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, ge := range r.Failed {
		result = multierror.Append(result, ge)
	}
	return result
}

// Pipeline runs one Generator over a set of schemas. For every schema it
// emits the base model followed by each variant and assembles them into
// one file below the target's directory.
//
// Failures are not fail-fast: every emission is attempted and each failure
// is recorded as a *GenerationError. A schema with any failed emission
// produces no file; its other emissions are still attempted so that every
// problem is reported.
type Pipeline struct {
	mut sync.RWMutex

	gen Generator

	// postprocessors, run on every file in order
	post []FileMapper

	// onEmpty decides what an empty variant resolution means.
	onEmpty func(s *usr.Schema, variant string) error

	limit int
}

// NewPipeline returns a Pipeline for g. Files are postprocessed with
// EnsureTrailingNewline, then with any added postprocessors.
func NewPipeline(g Generator) *Pipeline {
	return &Pipeline{
		gen:   g,
		post:  []FileMapper{EnsureTrailingNewline},
		limit: 8,
	}
}

// Generator returns the generator the pipeline runs.
func (p *Pipeline) Generator() Generator { return p.gen }

// AddPostprocessors appends postprocessors. They run in order on every file.
func (p *Pipeline) AddPostprocessors(fn ...FileMapper) {
	p.mut.Lock()
	p.post = append(p.post, fn...)
	p.mut.Unlock()
}

// OnEmptyVariant sets the hook called for a variant that resolves to no
// fields. A non-nil error fails that emission. By default empty variants
// are emitted.
func (p *Pipeline) OnEmptyVariant(fn func(s *usr.Schema, variant string) error) {
	p.mut.Lock()
	p.onEmpty = fn
	p.mut.Unlock()
}

// SetLimit bounds the number of schemas rendered concurrently.
func (p *Pipeline) SetLimit(n int) {
	if n < 1 {
		n = 1
	}
	p.mut.Lock()
	p.limit = n
	p.mut.Unlock()
}

type schemaResult struct {
	file      *File
	artifacts []Artifact
	failed    []*GenerationError
}

// Run renders schemas. Results are ordered by schema name, then by base
// model and variant declaration order, regardless of scheduling.
func (p *Pipeline) Run(ctx context.Context, schemas []*usr.Schema) *Result {
	p.mut.RLock()
	defer p.mut.RUnlock()

	sorted := append([]*usr.Schema(nil), schemas...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	results := make([]schemaResult, len(sorted))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)
	for i, s := range sorted {
		g.Go(func() error {
			results[i] = p.renderSchema(s)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{FS: NewFS()}
	var done []*usr.Schema
	for i, sr := range results {
		res.Failed = append(res.Failed, sr.failed...)
		if sr.file == nil {
			continue
		}
		if err := res.FS.Add(*sr.file); err != nil {
			res.Failed = append(res.Failed, p.fail(sorted[i].Name, "", err))
			continue
		}
		res.Artifacts = append(res.Artifacts, sr.artifacts...)
		done = append(done, sorted[i])
	}

	if ig, ok := p.gen.(IndexGenerator); ok && len(done) > 0 {
		if err := p.index(ig, done, res.FS); err != nil {
			res.Failed = append(res.Failed, p.fail("", "", err))
		}
	}
	return res
}

func (p *Pipeline) fail(schema, variant string, err error) *GenerationError {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	return &GenerationError{Target: p.gen.Target(), Schema: schema, Variant: variant, Err: err}
}

func (p *Pipeline) renderSchema(s *usr.Schema) schemaResult {
	var sr schemaResult
	fpath := path.Join(p.gen.Target(), p.gen.FileName(s))

	variants := append([]string{variant.Base}, s.VariantNames()...)
	parts := make([][]byte, 0, len(variants))
	for _, v := range variants {
		data, err := p.emit(s, v)
		if err != nil {
			sr.failed = append(sr.failed, p.fail(s.Name, v, err))
			continue
		}
		parts = append(parts, data)
		sr.artifacts = append(sr.artifacts, Artifact{
			Target:  p.gen.Target(),
			Schema:  s.Name,
			Variant: v,
			Path:    fpath,
			Data:    data,
		})
	}
	if len(sr.failed) > 0 {
		sr.artifacts = nil
		return sr
	}

	var data []byte
	if fa, ok := p.gen.(FileAssembler); ok {
		var err error
		if data, err = fa.Assemble(s, variants); err != nil {
			sr.failed = append(sr.failed, p.fail(s.Name, "", fmt.Errorf("assemble file: %w", err)))
			sr.artifacts = nil
			return sr
		}
	} else {
		data = bytes.Join(parts, []byte("\n\n"))
	}

	f, err := p.postprocess(File{RelativePath: fpath, Data: data, Owner: p.gen.Target()})
	if err != nil {
		sr.failed = append(sr.failed, p.fail(s.Name, "", err))
		sr.artifacts = nil
		return sr
	}
	sr.file = &f
	return sr
}

func (p *Pipeline) emit(s *usr.Schema, v string) ([]byte, error) {
	res, err := variant.Resolve(s, v)
	if err != nil {
		return nil, err
	}
	if res.Empty() && p.onEmpty != nil {
		if err := p.onEmpty(s, v); err != nil {
			return nil, err
		}
	}
	return p.gen.Emit(s, v)
}

func (p *Pipeline) index(ig IndexGenerator, schemas []*usr.Schema, fs *FS) error {
	f, err := ig.Index(schemas)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if f == nil {
		return nil
	}
	f.RelativePath = path.Join(p.gen.Target(), f.RelativePath)
	f.Owner = p.gen.Target()
	pf, err := p.postprocess(*f)
	if err != nil {
		return err
	}
	return fs.Add(pf)
}

func (p *Pipeline) postprocess(f File) (File, error) {
	for _, post := range p.post {
		of, err := post(f)
		if err != nil {
			return File{}, fmt.Errorf("postprocessing of %s failed: %w", f.RelativePath, err)
		}
		f = of
	}
	return f, nil
}
