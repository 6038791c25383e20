package executor

import "errors"

var (
	// Setup errors, returned before the first step runs.
	ErrTaskRequired        = errors.New("task is required")
	ErrProjectPathRequired = errors.New("project path is required")
	ErrClientRequired      = errors.New("model client is required")
	ErrToolboxRequired     = errors.New("toolbox is required")

	// ErrSinkClosed is returned by Send after the sink has been closed.
	ErrSinkClosed = errors.New("event sink is closed")
)
