package executor

import (
	"context"
	"sync"
)

// Runner starts executions in the background.
type Runner struct {
	engine   *Engine
	maxSteps int
}

// NewRunner creates a runner that gives each execution maxSteps steps.
func NewRunner(engine *Engine, maxSteps int) *Runner {
	return &Runner{engine: engine, maxSteps: maxSteps}
}

// RunHandle controls a background execution.
type RunHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
	exec *Execution
	err  error
}

// Start runs exec on its own goroutine. Cancelling ctx or calling Cancel stops
// the engine at its next blocking point; a shell command already running is
// left alone.
func (r *Runner) Start(ctx context.Context, exec *Execution) *RunHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &RunHandle{cancel: cancel, done: make(chan struct{}), exec: exec}
	go func() {
		defer close(h.done)
		defer cancel()
		h.err = r.engine.Run(ctx, exec, r.maxSteps)
	}()
	return h
}

// Cancel requests the execution to stop. It is safe to call more than once.
func (h *RunHandle) Cancel() {
	h.once.Do(h.cancel)
}

// Done is closed when the execution has returned.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the execution returns.
func (h *RunHandle) Wait() (*Execution, error) {
	<-h.done
	return h.exec, h.err
}
