// Package executor drives the think/act/reflect loop of an agent: it calls
// the model, dispatches the requested tools, folds their results back into
// the conversation and decides when the task is finished.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elee1766/gotrae/src/agent"
	"github.com/elee1766/gotrae/src/aisdk"
	"github.com/elee1766/gotrae/src/metrics"
)

// Engine runs executions against one model client and one toolbox.
type Engine struct {
	client    aisdk.Provider
	toolbox   *agent.Toolbox
	cfg       aisdk.ModelConfig
	sink      EventSink
	recorder  Recorder
	metrics   metrics.Recorder
	predicate CompletionPredicate
	// incomplete is sent when the predicate rejects a completion.
	incomplete string
	stream     bool
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventSink sends every engine event to sink.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithRecorder records the trajectory of every execution.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithMetrics observes finished steps.
func WithMetrics(rec metrics.Recorder) Option {
	return func(e *Engine) {
		if rec != nil {
			e.metrics = rec
		}
	}
}

// WithCompletionPredicate must agree before a completion signal ends the run.
func WithCompletionPredicate(p CompletionPredicate) Option {
	return func(e *Engine) { e.predicate = p }
}

// WithIncompleteMessage replaces the message sent when the completion
// predicate rejects a completion signal.
func WithIncompleteMessage(msg string) Option {
	return func(e *Engine) {
		if msg != "" {
			e.incomplete = msg
		}
	}
}

// WithStream makes the engine use streamed model calls.
func WithStream(stream bool) Option {
	return func(e *Engine) { e.stream = stream }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine. cfg is passed unchanged to every model call.
func NewEngine(client aisdk.Provider, toolbox *agent.Toolbox, cfg aisdk.ModelConfig, opts ...Option) *Engine {
	e := &Engine{
		client:     client,
		toolbox:    toolbox,
		cfg:        cfg,
		metrics:    metrics.Nop(),
		logger:     slog.Default(),
		incomplete: IncompleteMessage,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// Stream reports whether the engine uses streamed model calls.
func (e *Engine) Stream() bool {
	return e.stream
}

func (e *Engine) validate(exec *Execution) error {
	switch {
	case exec == nil || exec.Task == "":
		return ErrTaskRequired
	case exec.ProjectPath == "":
		return ErrProjectPathRequired
	case e.client == nil:
		return ErrClientRequired
	case e.toolbox == nil:
		return ErrToolboxRequired
	}
	return nil
}

// Run drives exec for at most maxSteps steps. Model and tool failures are
// absorbed into the execution record; only setup errors and cancellation are
// returned. Running out of steps leaves Success false and the state error.
func (e *Engine) Run(ctx context.Context, exec *Execution, maxSteps int) error {
	if err := e.validate(exec); err != nil {
		return err
	}
	r := &run{
		engine:  e,
		exec:    exec,
		emitter: NewEventEmitter(e.sink, exec.ID, e.logger),
		logger:  e.logger.With("execution_id", exec.ID),
	}
	return r.loop(ctx, maxSteps)
}

// run holds the state of one Engine.Run call.
type run struct {
	engine  *Engine
	exec    *Execution
	emitter *EventEmitter
	logger  *slog.Logger

	// transcript is everything sent to and received from the model so far.
	transcript []aisdk.Message
}

func (r *run) loop(ctx context.Context, maxSteps int) error {
	e, exec := r.engine, r.exec
	start := time.Now()

	exec.State = AgentRunning
	r.emitter.EmitState(AgentRunning, "")
	if e.recorder != nil {
		if err := e.recorder.Start(ctx, exec, e.client.ProviderName(), e.cfg.Model, maxSteps); err != nil {
			r.logger.Warn("failed to start trajectory", "error", err)
		}
	}
	r.logger.Info("execution started", "max_steps", maxSteps, "stream", e.stream)

	var runErr error
	msgs := exec.Messages
	for n := 1; n <= maxSteps; n++ {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("execution cancelled: %w", err)
			break
		}
		step, next, done := r.step(ctx, n, msgs)
		r.finalize(ctx, step)
		if done {
			break
		}
		msgs = next
	}

	if !exec.Success {
		exec.State = AgentError
	}
	exec.ExecutionTime = time.Since(start)
	r.emitter.SetStep(len(exec.Steps))
	r.emitter.EmitState(exec.State, "")

	if e.recorder != nil {
		// The run context may be cancelled; the trajectory should still close.
		if err := e.recorder.Finish(context.WithoutCancel(ctx), exec); err != nil {
			r.logger.Warn("failed to finish trajectory", "error", err)
		}
	}
	r.emitter.EmitComplete(exec)
	r.logger.Info("execution finished",
		"success", exec.Success,
		"steps", len(exec.Steps),
		"state", exec.State,
		"duration", exec.ExecutionTime,
		"input_tokens", exec.Usage.InputTokens,
		"output_tokens", exec.Usage.OutputTokens,
	)
	return runErr
}

// step runs step n with msgs. It returns the messages for the next step and
// whether the execution is finished.
func (r *run) step(ctx context.Context, n int, msgs []aisdk.Message) (Step, []aisdk.Message, bool) {
	e, exec := r.engine, r.exec
	r.emitter.SetStep(n)
	step := Step{Number: n}
	r.setStepState(&step, StepThinking)

	resp, err := r.callModel(ctx, msgs, n > 1)
	if err != nil {
		r.logger.Warn("model call failed", "step", n, "error", err)
		step.Response = aisdk.ErrorResponse(err)
		step.Error = err.Error()
		r.emitter.EmitError(err, "model call")
		r.setStepState(&step, StepError)
		// Nothing reached the model; the same messages go out again.
		return step, msgs, false
	}
	step.Response = resp
	delta := usageOf(resp)
	exec.Usage.Add(delta)
	r.emitter.EmitUsage(delta, exec.Usage)

	calls := resp.ToolCalls
	results := make([]aisdk.ToolResult, len(calls))
	dispatched := make([]bool, len(calls))

	final := resp.Text()
	signal := IndicatesCompletion(final)
	if i := taskDoneIndex(calls); i >= 0 {
		results[i] = r.execute(ctx, []aisdk.ToolCall{calls[i]})[0]
		dispatched[i] = true
		if results[i].Success {
			signal = true
			if final == "" {
				final = results[i].Result
			}
		}
	}

	if signal {
		if e.predicate == nil || e.predicate(resp) {
			step.ToolCalls, step.ToolResults = pick(calls, results, dispatched)
			exec.FinalResult = &final
			exec.Success = true
			exec.State = AgentCompleted
			r.setStepState(&step, StepCompleted)
			return step, nil, true
		}
		r.logger.Info("completion rejected", "step", n)
		exec.State = AgentRunning
		// Every call of the reply still needs a result in the history.
		for i, call := range calls {
			if !dispatched[i] {
				results[i] = aisdk.NewToolFailure(call, RejectedCallMessage)
			}
		}
		if len(calls) > 0 {
			step.ToolCalls, step.ToolResults = calls, results
		}
		next := append(ToolMessages(results), aisdk.UserMessage(e.incomplete))
		return step, next, false
	}

	if len(calls) == 0 {
		return step, []aisdk.Message{aisdk.UserMessage(NoToolCallsMessage)}, false
	}

	step.ToolCalls = calls
	r.setStepState(&step, StepCallingTool)

	var pending []aisdk.ToolCall
	for i, call := range calls {
		if !dispatched[i] {
			pending = append(pending, call)
		}
	}
	out := r.execute(ctx, pending)
	for i, j := 0, 0; i < len(calls); i++ {
		if !dispatched[i] {
			results[i] = out[j]
			j++
		}
	}
	step.ToolResults = results

	next := ToolMessages(results)
	if reflection := Reflect(results); reflection != "" {
		step.Reflection = reflection
		r.setStepState(&step, StepReflecting)
		next = append(next, aisdk.AssistantMessage(reflection))
	}
	return step, next, false
}

// execute dispatches calls and reports them as events.
func (r *run) execute(ctx context.Context, calls []aisdk.ToolCall) []aisdk.ToolResult {
	tb := r.engine.toolbox
	for _, call := range calls {
		desc := call.Name
		if tool, ok := tb.GetTool(call.Name); ok {
			desc = tool.DescriptiveMessage(call.Arguments)
		}
		r.emitter.EmitToolCall(call, desc)
	}
	results := tb.Dispatch(ctx, calls)
	for _, res := range results {
		r.emitter.EmitToolResult(res)
		if !res.Success {
			r.logger.Debug("tool call failed", "tool", res.Name, "error", res.Error)
		}
	}
	return results
}

func (r *run) setStepState(step *Step, state StepState) {
	step.State = state
	r.emitter.EmitState(r.exec.State, state)
}

// finalize marks step completed and appends it to the execution.
func (r *run) finalize(ctx context.Context, step Step) {
	e := r.engine
	step.Outcome = step.State
	step.State = StepCompleted
	r.exec.Steps = append(r.exec.Steps, step)

	e.metrics.ObserveStep(string(step.Outcome))
	r.emitter.EmitStep(step)
	if e.recorder != nil {
		if err := e.recorder.RecordStep(context.WithoutCancel(ctx), r.exec.ID, step); err != nil {
			r.logger.Warn("failed to record step", "step", step.Number, "error", err)
		}
	}
}

func pick(calls []aisdk.ToolCall, results []aisdk.ToolResult, keep []bool) ([]aisdk.ToolCall, []aisdk.ToolResult) {
	var outCalls []aisdk.ToolCall
	var outResults []aisdk.ToolResult
	for i := range calls {
		if keep[i] {
			outCalls = append(outCalls, calls[i])
			outResults = append(outResults, results[i])
		}
	}
	return outCalls, outResults
}
