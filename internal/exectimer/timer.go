// Package exectimer implements the execution timer (C8, §4.6/§5): a
// pause/resume pair bracketing every probe body so that the
// execution_time accumulated on promise contexts excludes the tracer's
// own bookkeeping overhead.
package exectimer

import (
	"rtrace/internal/ctxstack"
	"rtrace/internal/hostapi"
)

// Timer tracks the most recent resume point and charges elapsed time to
// every thunk context on the stack when paused. Closures are ignored —
// only Promise frames accumulate execution_time.
type Timer struct {
	clock    hostapi.Clock
	resumeAt int64 // UnixNano of the last Resume
	running  bool
}

// New constructs a Timer backed by clock.
func New(clock hostapi.Clock) *Timer {
	return &Timer{clock: clock}
}

// Resume records the current time as the start of a new measured span.
// Called as the last action of enter_probe and exit_probe, handing
// control back to the host's evaluator.
func (t *Timer) Resume() {
	t.resumeAt = t.clock.Now().UnixNano()
	t.running = true
}

// Pause measures elapsed = now - resume_ts and adds it to the
// execution_time of every Promise frame currently on stack. Called as
// the first action of enter_probe and exit_probe, before any other
// bookkeeping runs.
func (t *Timer) Pause(stack *ctxstack.Stack) {
	if !t.running {
		return
	}
	elapsed := uint64(t.clock.Now().UnixNano() - t.resumeAt)
	stack.WalkTopDown(func(f ctxstack.Frame) bool {
		if f.Kind == ctxstack.KindPromise {
			f.Thunk.ExecutionTime += elapsed
		}
		return true
	})
	t.running = false
}
