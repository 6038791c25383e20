package executor

import (
	"context"

	"github.com/elee1766/gotrae/src/aisdk"
)

// CompletionPredicate confirms a completion signal. Returning false keeps the
// execution running.
type CompletionPredicate func(resp *aisdk.Response) bool

// Recorder persists the trajectory of an execution. Errors are logged by the
// engine and never fail the run.
type Recorder interface {
	Start(ctx context.Context, exec *Execution, provider, model string, maxSteps int) error
	RecordStep(ctx context.Context, executionID string, step Step) error
	Finish(ctx context.Context, exec *Execution) error
}
