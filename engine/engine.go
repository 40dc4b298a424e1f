// Package engine orchestrates a generation run: it loads every schema
// declaration below the input root, renders each configured target and
// writes or verifies the output tree.
//
// An Engine moves through Idle, Loading, Parsed, Generating and ends each
// invocation in Done or Failed. Loading is fail-fast per file; generation
// attempts everything and reports every failure.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/config"
	"github.com/schemagen/usrgen/usr"
)

// Engine runs generation for one configuration.
type Engine struct {
	mu    sync.Mutex
	state State

	cfg     *config.Config
	gens    map[string]usrgen.Generator
	log     zerolog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	log     zerolog.Logger
	reg     prometheus.Registerer
	metrics *Metrics
	now     func() time.Time
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRegisterer registers the engine metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithMetrics shares collectors between engines, for callers that build
// a new engine per run. It takes precedence over WithRegisterer.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock used for header timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds an Engine for cfg. Every configured target must be known to
// reg and accept its configuration.
func New(cfg *config.Config, reg *usrgen.Registry, opts ...Option) (*Engine, error) {
	o := options{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if o.metrics == nil {
		o.metrics = NewMetrics(o.reg)
	}

	e := &Engine{
		cfg:     cfg,
		gens:    make(map[string]usrgen.Generator, len(cfg.Targets)),
		log:     o.log,
		metrics: o.metrics,
		now:     o.now,
	}

	var result *multierror.Error
	for _, target := range cfg.Targets {
		g, err := reg.New(target, usrgen.Options{Config: cfg.Target(target), Now: e.now})
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		e.gens[target] = g
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return e, nil
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Metrics returns the engine collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// transition moves to the next state. It fails with a *StateError when
// the move is not allowed, which means two invocations overlap.
func (e *Engine) transition(to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !CanTransition(e.state, to) {
		return &StateError{From: e.state, To: to}
	}
	e.log.Debug().Str("from", e.state.String()).Str("to", to.String()).Msg("engine state")
	e.state = to
	return nil
}

// Report is the outcome of a generation.
type Report struct {
	// Succeeded holds every emitted model of the schemas whose files were
	// produced, ordered by target, schema and variant.
	Succeeded []usrgen.Artifact

	Failed []*usrgen.GenerationError

	// FS holds the files to write, keyed by path below the output root.
	FS *usrgen.FS
}

// OK reports whether nothing failed.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Err returns every failure as one error, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var result *multierror.Error
	for _, ge := range r.Failed {
		result = multierror.Append(result, ge)
	}
	return result
}

// GenerateAll renders every configured target for schemas. It fails only
// when another invocation is in flight; generation failures are reported
// in the returned Report.
func (e *Engine) GenerateAll(ctx context.Context, schemas []*usr.Schema) (*Report, error) {
	if err := e.transition(Generating); err != nil {
		return nil, err
	}
	rep := e.generate(ctx, schemas, e.cfg.Targets)
	return rep, e.finish(rep)
}

// GenerateTarget renders a single configured target for schemas.
func (e *Engine) GenerateTarget(ctx context.Context, schemas []*usr.Schema, target string) (*Report, error) {
	if _, ok := e.gens[target]; !ok {
		return nil, &usrgen.UnknownTargetError{Target: target, Known: e.cfg.Targets}
	}
	if err := e.transition(Generating); err != nil {
		return nil, err
	}
	rep := e.generate(ctx, schemas, []string{target})
	return rep, e.finish(rep)
}

func (e *Engine) finish(rep *Report) error {
	if rep.OK() {
		return e.transition(Done)
	}
	return e.transition(Failed)
}

func (e *Engine) generate(ctx context.Context, schemas []*usr.Schema, targets []string) *Report {
	start := time.Now()
	defer func() {
		e.metrics.PhaseDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	}()

	results := make([]*usrgen.Result, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		p := e.pipeline(e.gens[target])
		g.Go(func() error {
			results[i] = p.Run(ctx, schemas)
			return nil
		})
	}
	_ = g.Wait()

	rep := &Report{FS: usrgen.NewFS()}
	for i, res := range results {
		target := targets[i]
		if err := rep.FS.Merge(res.FS); err != nil {
			res.Failed = append(res.Failed, &usrgen.GenerationError{Target: target, Err: err})
		}
		rep.Succeeded = append(rep.Succeeded, res.Artifacts...)
		rep.Failed = append(rep.Failed, res.Failed...)

		e.metrics.Artifacts.WithLabelValues(target, "succeeded").Add(float64(len(res.Artifacts)))
		e.metrics.Artifacts.WithLabelValues(target, "failed").Add(float64(len(res.Failed)))
		for _, ge := range res.Failed {
			e.log.Error().Err(ge.Err).
				Str("target", ge.Target).
				Str("schema", ge.Schema).
				Str("variant", ge.Variant).
				Msg("generation failed")
		}
		e.log.Debug().
			Str("target", target).
			Int("artifacts", len(res.Artifacts)).
			Int("failed", len(res.Failed)).
			Msg("target rendered")
	}
	return rep
}

func (e *Engine) pipeline(g usrgen.Generator) *usrgen.Pipeline {
	p := usrgen.NewPipeline(g)
	p.SetLimit(e.cfg.Concurrency)
	if e.cfg.LineEndings == "crlf" {
		p.AddPostprocessors(usrgen.CRLFLineEndings)
	}
	switch e.cfg.EmptyVariant {
	case config.EmptyWarn:
		p.OnEmptyVariant(func(s *usr.Schema, v string) error {
			e.log.Warn().
				Str("target", g.Target()).
				Str("schema", s.Name).
				Str("variant", v).
				Msg("variant resolves to no fields")
			return nil
		})
	case config.EmptyError:
		p.OnEmptyVariant(func(s *usr.Schema, v string) error {
			return &usrgen.EmptyVariantError{Schema: s.Name, Variant: v}
		})
	}
	return p
}

// Write materialises the files of rep below the output root.
func (e *Engine) Write(ctx context.Context, rep *Report) error {
	if err := rep.FS.Write(ctx, e.cfg.OutputDir); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	e.log.Info().
		Str("output_dir", e.cfg.OutputDir).
		Int("files", rep.FS.Len()).
		Msg("generated files written")
	return nil
}
