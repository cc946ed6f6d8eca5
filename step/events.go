// Package step implements the recognize-then-act execution primitive.
package step

import "time"

// EventKind identifies the type of lifecycle event emitted by a step runner.
type EventKind string

const (
	// EventListStarting is emitted when a candidate list begins evaluation.
	EventListStarting EventKind = "list.starting"

	// EventListSucceeded is emitted when a candidate in the list produced a match.
	EventListSucceeded EventKind = "list.succeeded"

	// EventListFailed is emitted when the list is exhausted without a match.
	EventListFailed EventKind = "list.failed"

	// EventRecognitionStarting is emitted before a candidate's recognizer runs.
	EventRecognitionStarting EventKind = "recognition.starting"

	// EventRecognitionSucceeded is emitted when a recognizer returns a match region.
	EventRecognitionSucceeded EventKind = "recognition.succeeded"

	// EventRecognitionFailed is emitted when a recognizer returns no match.
	EventRecognitionFailed EventKind = "recognition.failed"

	// EventActionStarting is emitted before a matched node is actuated.
	EventActionStarting EventKind = "action.starting"

	// EventActionSucceeded is emitted when the actuator reports completion.
	EventActionSucceeded EventKind = "action.succeeded"

	// EventActionFailed is emitted when the actuator reports failure.
	EventActionFailed EventKind = "action.failed"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured, streamable record of what happened during a step.
// Events should be kept small; committed records live in the telemetry
// cache, events only reference them by id.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// RunID is the unique identifier for this run.
	RunID string

	// Node is the node the event concerns: the current node for list
	// events, the candidate for recognition events, the acted-on node
	// for action events.
	Node string

	// StepID is the committed step identifier. It is 0 in
	// action.starting and carries the real id in action end events.
	StepID int64

	// RecoID is the recognition identifier. It is 0 in
	// recognition.starting and carries the real id in end events.
	RecoID int64

	// Candidates is the candidate list under evaluation (list events only).
	Candidates []string

	// Time is when the event occurred.
	Time time.Time

	// Seq is a monotonic sequence number per run (1-indexed).
	Seq uint64

	// Payload contains event-specific data. Keep this small.
	Payload map[string]any

	// TraceID is the OpenTelemetry trace ID (hex-encoded, empty when OTel inactive).
	TraceID string

	// SpanID is the OpenTelemetry span ID (hex-encoded, empty when OTel inactive).
	SpanID string
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID string) Event {
	return Event{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithNode sets the node name on the event.
func (e Event) WithNode(node string) Event {
	e.Node = node
	return e
}

// WithStepID sets the step identifier on the event.
func (e Event) WithStepID(id int64) Event {
	e.StepID = id
	return e
}

// WithRecoID sets the recognition identifier on the event.
func (e Event) WithRecoID(id int64) Event {
	e.RecoID = id
	return e
}

// WithCandidates sets the candidate list on the event.
// The list is copied; events outlive the step that emitted them.
func (e Event) WithCandidates(names []string) Event {
	e.Candidates = append([]string(nil), names...)
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventEmitter is a function type for emitting events.
// The runner provides an emitter to components that need to emit
// intermediate events.
type EventEmitter func(Event)

// EventEmitterDecorator wraps an emitter to add cross-cutting behavior.
// Typical uses include enriching emitted events (for example with trace metadata).
type EventEmitterDecorator func(EventEmitter) EventEmitter

// EventPublisher can publish events to external subscribers.
// This interface is satisfied by bus.EventBus, allowing the step
// package to distribute events without importing the bus package.
type EventPublisher interface {
	Publish(event Event)
}

// EventHandler is a function type for handling events.
// Implementations can log, store, or forward events as needed.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// The channel should have sufficient buffer to avoid blocking.
// Events are dropped if the channel is full or closed.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full
		}
	}
}
