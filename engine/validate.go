package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/schemagen/usrgen"
	"github.com/schemagen/usrgen/usr"
)

// Staleness reasons.
const (
	ReasonMissing = "missing"
	ReasonChanged = "changed"
)

// Stale is a generated file that does not match what would be generated
// now.
type Stale struct {
	Path   string
	Reason string

	// Diff is set for changed files.
	Diff string
}

// ValidationReport is the outcome of Validate.
type ValidationReport struct {
	UpToDate bool
	Stale    []Stale

	// Failed lists generation failures. Files of failed schemas cannot be
	// compared, so any failure also means not up to date.
	Failed []*usrgen.GenerationError
}

// Paths returns the stale paths.
func (r *ValidationReport) Paths() []string {
	paths := make([]string, len(r.Stale))
	for i, s := range r.Stale {
		paths[i] = s.Path
	}
	return paths
}

// Validate regenerates every configured target in memory and compares the
// result with the output root, ignoring header timestamps. Nothing is
// written. The error is reserved for I/O failures; staleness is reported.
func (e *Engine) Validate(ctx context.Context, schemas []*usr.Schema) (*ValidationReport, error) {
	start := time.Now()
	defer func() {
		e.metrics.PhaseDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	}()

	rep := e.generate(ctx, schemas, e.cfg.Targets)
	vr := &ValidationReport{Failed: rep.Failed}

	err := rep.FS.Verify(ctx, e.cfg.OutputDir)
	var merr *multierror.Error
	switch {
	case err == nil:
	case errors.As(err, &merr):
		for _, ferr := range merr.Errors {
			var (
				missing *usrgen.MissingFileError
				differ  *usrgen.ContentsDifferError
			)
			switch {
			case errors.As(ferr, &missing):
				vr.Stale = append(vr.Stale, Stale{Path: missing.Path, Reason: ReasonMissing})
			case errors.As(ferr, &differ):
				vr.Stale = append(vr.Stale, Stale{Path: differ.Path, Reason: ReasonChanged, Diff: differ.Diff})
			default:
				return nil, ferr
			}
		}
	default:
		return nil, fmt.Errorf("validate output: %w", err)
	}

	vr.UpToDate = len(vr.Stale) == 0 && len(vr.Failed) == 0
	e.metrics.StaleFiles.Set(float64(len(vr.Stale)))
	for _, s := range vr.Stale {
		e.log.Warn().Str("path", s.Path).Str("reason", s.Reason).Msg("generated file is stale")
	}
	return vr, nil
}
