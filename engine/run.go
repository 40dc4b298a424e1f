package engine

import (
	"context"
	"time"
)

// Run performs a full invocation: it loads the input root, renders every
// target and writes the output tree. Load failures stop the run before
// anything is rendered. Generation failures do not stop it; the files of
// every schema that rendered cleanly are still written and the failures
// are returned in the report.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	reg, err := e.LoadSchemas(ctx, e.cfg.InputDir)
	if err != nil {
		return nil, err
	}

	rep, err := e.GenerateAll(ctx, reg.All())
	if err != nil {
		return nil, err
	}
	if err := e.Write(ctx, rep); err != nil {
		return rep, err
	}

	ev := e.log.Info()
	if !rep.OK() {
		ev = e.log.Error()
	}
	ev.Int("artifacts", len(rep.Succeeded)).
		Int("failed", len(rep.Failed)).
		Dur("took", time.Since(start)).
		Msg("generation finished")
	return rep, rep.Err()
}
