package executor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/elee1766/gotrae/src/aisdk"
)

// EventType identifies an engine event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventOutput      EventType = "output"
	EventToolCall    EventType = "tool_call"
	EventToolResult  EventType = "tool_result"
	EventUsage       EventType = "usage"
	EventStep        EventType = "step"
	EventError       EventType = "error"
	EventComplete    EventType = "complete"
)

// Event is the base interface for all engine events.
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetExecutionID() string
	GetStepNumber() int
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"execution_id"`
	StepNumber  int       `json:"step_number"`
}

func (e BaseEvent) GetType() EventType      { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetExecutionID() string  { return e.ExecutionID }
func (e BaseEvent) GetStepNumber() int      { return e.StepNumber }

// StateChangeEvent reports a new execution or step state.
type StateChangeEvent struct {
	BaseEvent
	AgentState AgentState `json:"agent_state"`
	StepState  StepState  `json:"step_state,omitempty"`
}

// OutputEvent carries model text. Delta is set for streamed fragments.
type OutputEvent struct {
	BaseEvent
	Content string `json:"content"`
	Delta   bool   `json:"delta"`
}

// ToolCallEvent is sent before a tool call is dispatched.
type ToolCallEvent struct {
	BaseEvent
	Call        aisdk.ToolCall `json:"tool_call"`
	Description string         `json:"description"`
}

// ToolResultEvent is sent for every tool result.
type ToolResultEvent struct {
	BaseEvent
	Result aisdk.ToolResult `json:"tool_result"`
}

// UsageEvent reports the usage of one model call and the running total.
type UsageEvent struct {
	BaseEvent
	Delta aisdk.Usage `json:"delta"`
	Total aisdk.Usage `json:"total"`
}

// StepEvent carries a finalized step.
type StepEvent struct {
	BaseEvent
	Step Step `json:"step"`
}

// ErrorEvent reports an absorbed failure.
type ErrorEvent struct {
	BaseEvent
	Err     error  `json:"-"`
	Context string `json:"context"`
}

// CompleteEvent ends the event stream of an execution.
type CompleteEvent struct {
	BaseEvent
	Success     bool          `json:"success"`
	FinalResult string        `json:"final_result"`
	Steps       int           `json:"steps"`
	Usage       aisdk.Usage   `json:"usage"`
	Duration    time.Duration `json:"duration"`
}

// EventSink receives engine events.
type EventSink interface {
	// Send delivers an event. It may block.
	Send(event Event) error
	Close() error
}

// EventProcessor consumes events from a ChannelEventSink.
type EventProcessor interface {
	Process(event Event) error
	Close() error
}

// ChannelEventSink implements EventSink with a bounded channel drained by a
// single goroutine. Send blocks while the buffer is full.
type ChannelEventSink struct {
	events     chan Event
	processors []EventProcessor
	logger     *slog.Logger

	mu        sync.RWMutex
	closed    bool
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannelEventSink creates a new channel-based event sink
func NewChannelEventSink(bufferSize int, processors ...EventProcessor) *ChannelEventSink {
	if bufferSize < 1 {
		bufferSize = 1
	}
	sink := &ChannelEventSink{
		events:     make(chan Event, bufferSize),
		processors: processors,
		logger:     slog.Default().With("component", "event_sink"),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go sink.processEvents()
	return sink
}

// Send sends an event to the sink
func (s *ChannelEventSink) Send(event Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.events <- event:
		return nil
	case <-s.quit:
		return ErrSinkClosed
	}
}

// Close stops accepting events, waits for buffered events to be processed
// and closes the processors.
func (s *ChannelEventSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.quit)
		<-s.done

		for _, p := range s.processors {
			if err := p.Close(); err != nil {
				s.logger.Warn("failed to close event processor", "error", err)
			}
		}
	})
	return nil
}

func (s *ChannelEventSink) processEvents() {
	defer close(s.done)
	for {
		select {
		case event := <-s.events:
			s.dispatch(event)
		case <-s.quit:
			for {
				select {
				case event := <-s.events:
					s.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (s *ChannelEventSink) dispatch(event Event) {
	for _, processor := range s.processors {
		if err := processor.Process(event); err != nil {
			s.logger.Warn("failed to process event", "type", event.GetType(), "error", err)
		}
	}
}

// ProcessorFunc adapts a function to EventProcessor.
type ProcessorFunc func(Event) error

func (f ProcessorFunc) Process(event Event) error { return f(event) }
func (f ProcessorFunc) Close() error              { return nil }
