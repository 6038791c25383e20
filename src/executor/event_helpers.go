package executor

import (
	"log/slog"
	"time"

	"github.com/elee1766/gotrae/src/aisdk"
)

// EventEmitter helps emit events with common fields. A nil sink discards
// everything; send failures are logged and never stop the engine.
type EventEmitter struct {
	sink        EventSink
	executionID string
	stepNumber  int
	logger      *slog.Logger
}

// NewEventEmitter creates a new event emitter
func NewEventEmitter(sink EventSink, executionID string, logger *slog.Logger) *EventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventEmitter{sink: sink, executionID: executionID, logger: logger}
}

// SetStep sets the step number stamped on subsequent events.
func (e *EventEmitter) SetStep(n int) {
	e.stepNumber = n
}

func (e *EventEmitter) base(t EventType) BaseEvent {
	return BaseEvent{
		Type:        t,
		Timestamp:   time.Now(),
		ExecutionID: e.executionID,
		StepNumber:  e.stepNumber,
	}
}

func (e *EventEmitter) send(event Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Send(event); err != nil {
		e.logger.Debug("dropped event", "type", event.GetType(), "error", err)
	}
}

// EmitState emits a state change.
func (e *EventEmitter) EmitState(agent AgentState, step StepState) {
	e.send(&StateChangeEvent{BaseEvent: e.base(EventStateChange), AgentState: agent, StepState: step})
}

// EmitOutput emits model text.
func (e *EventEmitter) EmitOutput(content string, delta bool) {
	if content == "" {
		return
	}
	e.send(&OutputEvent{BaseEvent: e.base(EventOutput), Content: content, Delta: delta})
}

// EmitToolCall emits a tool call request.
func (e *EventEmitter) EmitToolCall(call aisdk.ToolCall, description string) {
	e.send(&ToolCallEvent{BaseEvent: e.base(EventToolCall), Call: call, Description: description})
}

// EmitToolResult emits a tool result.
func (e *EventEmitter) EmitToolResult(result aisdk.ToolResult) {
	e.send(&ToolResultEvent{BaseEvent: e.base(EventToolResult), Result: result})
}

// EmitUsage emits a usage delta and the running total.
func (e *EventEmitter) EmitUsage(delta, total aisdk.Usage) {
	e.send(&UsageEvent{BaseEvent: e.base(EventUsage), Delta: delta, Total: total})
}

// EmitStep emits a finalized step.
func (e *EventEmitter) EmitStep(step Step) {
	e.send(&StepEvent{BaseEvent: e.base(EventStep), Step: step})
}

// EmitError emits an absorbed error.
func (e *EventEmitter) EmitError(err error, context string) {
	e.send(&ErrorEvent{BaseEvent: e.base(EventError), Err: err, Context: context})
}

// EmitComplete emits the end of an execution.
func (e *EventEmitter) EmitComplete(exec *Execution) {
	e.send(&CompleteEvent{
		BaseEvent:   e.base(EventComplete),
		Success:     exec.Success,
		FinalResult: exec.Result(),
		Steps:       len(exec.Steps),
		Usage:       exec.Usage,
		Duration:    exec.ExecutionTime,
	})
}
