package watch

import (
	"context"
	"time"
)

// Debounce runs cycle once triggers have been quiet for wait. Every
// trigger restarts the wait. Cycles never overlap: a wait that ends while
// a cycle runs queues exactly one more cycle, started when the running one
// returns, unless a later trigger restarts the wait first. Debounce returns when ctx is done, after any running cycle
// finishes.
func Debounce(ctx context.Context, triggers <-chan struct{}, wait time.Duration, cycle func(context.Context)) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		done    = make(chan struct{}, 1)
		running bool
		pending bool
	)
	start := func() {
		running = true
		go func() {
			cycle(ctx)
			done <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if running {
				<-done
			}
			return

		case _, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(wait)
			fire = timer.C
			// The new wait replaces any queued cycle.
			pending = false

		case <-fire:
			fire = nil
			if running {
				pending = true
				continue
			}
			start()

		case <-done:
			running = false
			if pending {
				pending = false
				start()
			}
		}
	}
}
