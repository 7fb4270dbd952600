package viewbridge

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// renderLoop is the render thread. It owns the engine and every view: they
// are created, mutated, and destroyed only here. Two phases: a pre-init
// drain loop that waits for the init command, then the paced frame loop.
func (b *Bridge) renderLoop() {
	defer b.wg.Done()

	b.logf("render thread started")

	for b.running.Load() && !b.initialized.Load() {
		b.applyPending()
		time.Sleep(preInitIdle)
	}

	b.logf("render thread initialized, entering render loop")

	budget := time.Second / time.Duration(b.opts.FrameRate)
	pacer := rate.NewLimiter(rate.Every(budget), 1)

	for b.running.Load() {
		start := time.Now()

		b.applyPending()

		if b.eng != nil {
			b.eng.Update()
			b.eng.RefreshDisplay()
			b.eng.Render()
		}

		b.metrics.ObserveFrame(time.Since(start))

		// Holds consecutive frame starts one budget apart; a frame that
		// overran its budget proceeds immediately.
		_ = pacer.Wait(context.Background())
	}

	// Commands enqueued strictly before shutdown began are still applied.
	b.applyPending()
	b.teardown()

	b.logf("render thread exited")
}

// applyPending drains the command queue and applies each command exactly
// once, in enqueue order.
func (b *Bridge) applyPending() {
	for _, cmd := range b.commands.drainAll() {
		b.apply(cmd)
		b.metrics.CommandsApplied.WithLabelValues(cmd.kind()).Inc()
	}
}

// teardown releases every view and the engine on the render goroutine,
// exactly once regardless of how shutdown was triggered. Safe after an
// earlier shutdown command already cleaned up.
func (b *Bridge) teardown() {
	b.destroyAllViews()
	if b.eng != nil {
		if err := b.eng.Close(); err != nil {
			b.errorf("teardown: engine close: %v", err)
		}
		b.eng = nil
	}
	b.initialized.Store(false)
}
