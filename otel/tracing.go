// Package otel provides OpenTelemetry integration for sightflow step events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sightline-labs/sightflow/step"
)

// TracingHandler translates sightflow step events into OpenTelemetry spans.
// It maintains maps of active list, recognition, and action spans, creating
// and ending them based on event kind. Recognition and action spans become
// children of the surrounding candidate-list span when one is active.
type TracingHandler struct {
	tracer trace.Tracer

	mu          sync.RWMutex
	listSpans   map[string]trace.Span       // runID -> span
	listCtxs    map[string]context.Context  // runID -> context (for child spans)
	recoSpans   map[string]trace.Span       // runID:node -> span
	actionSpans map[string]trace.Span       // runID:node -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from step events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:      tracer,
		listSpans:   make(map[string]trace.Span),
		listCtxs:    make(map[string]context.Context),
		recoSpans:   make(map[string]trace.Span),
		actionSpans: make(map[string]trace.Span),
	}
}

// Handle processes a step event and creates or ends spans accordingly.
// It implements step.EventHandler semantics.
func (h *TracingHandler) Handle(e step.Event) {
	switch e.Kind {
	case step.EventListStarting:
		h.handleListStarting(e)
	case step.EventListSucceeded, step.EventListFailed:
		h.handleListEnded(e)
	case step.EventRecognitionStarting:
		h.handleRecognitionStarting(e)
	case step.EventRecognitionSucceeded, step.EventRecognitionFailed:
		h.handleRecognitionEnded(e)
	case step.EventActionStarting:
		h.handleActionStarting(e)
	case step.EventActionSucceeded, step.EventActionFailed:
		h.handleActionEnded(e)
	}
}

// handleListStarting creates a span covering one candidate-list evaluation.
func (h *TracingHandler) handleListStarting(e step.Event) {
	ctx, span := h.tracer.Start(context.Background(), "list:"+e.Node,
		trace.WithAttributes(
			attribute.String("sightflow.run_id", e.RunID),
			attribute.String("sightflow.node", e.Node),
			attribute.Int("sightflow.candidates", len(e.Candidates)),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.listSpans[e.RunID] = span
	h.listCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

// handleListEnded ends the candidate-list span. A list that exhausted
// its candidates is a miss, not an error; the span stays Ok either way.
func (h *TracingHandler) handleListEnded(e step.Event) {
	h.mu.Lock()
	span, ok := h.listSpans[e.RunID]
	if ok {
		delete(h.listSpans, e.RunID)
		delete(h.listCtxs, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.Bool("sightflow.matched", e.Kind == step.EventListSucceeded),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleRecognitionStarting creates a span for one candidate evaluation,
// parented under the active list span when present.
func (h *TracingHandler) handleRecognitionStarting(e step.Event) {
	h.mu.RLock()
	parentCtx, ok := h.listCtxs[e.RunID]
	h.mu.RUnlock()

	if !ok {
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "recognition:"+e.Node,
		trace.WithAttributes(
			attribute.String("sightflow.run_id", e.RunID),
			attribute.String("sightflow.node", e.Node),
		),
		trace.WithTimestamp(e.Time),
	)

	key := e.RunID + ":" + e.Node
	h.mu.Lock()
	h.recoSpans[key] = span
	h.mu.Unlock()
}

// handleRecognitionEnded ends the recognition span. A miss is a normal
// outcome and keeps Ok status; the matched attribute tells them apart.
func (h *TracingHandler) handleRecognitionEnded(e step.Event) {
	key := e.RunID + ":" + e.Node

	h.mu.Lock()
	span, ok := h.recoSpans[key]
	if ok {
		delete(h.recoSpans, key)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.Bool("sightflow.matched", e.Kind == step.EventRecognitionSucceeded),
			attribute.Int64("sightflow.reco_id", e.RecoID),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleActionStarting creates a span for one action step, parented
// under the active list span when present.
func (h *TracingHandler) handleActionStarting(e step.Event) {
	h.mu.RLock()
	parentCtx, ok := h.listCtxs[e.RunID]
	h.mu.RUnlock()

	if !ok {
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "action:"+e.Node,
		trace.WithAttributes(
			attribute.String("sightflow.run_id", e.RunID),
			attribute.String("sightflow.node", e.Node),
		),
		trace.WithTimestamp(e.Time),
	)

	key := e.RunID + ":" + e.Node
	h.mu.Lock()
	h.actionSpans[key] = span
	h.mu.Unlock()
}

// handleActionEnded ends the action span with Ok or Error status.
func (h *TracingHandler) handleActionEnded(e step.Event) {
	key := e.RunID + ":" + e.Node

	h.mu.Lock()
	span, ok := h.actionSpans[key]
	if ok {
		delete(h.actionSpans, key)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.Int64("sightflow.step_id", e.StepID),
		)
		if e.Kind == step.EventActionFailed {
			span.SetStatus(codes.Error, "action failed")
			span.RecordError(
				spanError("action failed: "+e.Node),
				trace.WithTimestamp(e.Time),
			)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveSpanContext returns the SpanContext for the active span
// identified by runID and node. Action spans take precedence over
// recognition spans. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveSpanContext(runID, node string) trace.SpanContext {
	key := runID + ":" + node

	h.mu.RLock()
	span, ok := h.actionSpans[key]
	if !ok {
		span, ok = h.recoSpans[key]
	}
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveListSpanContext returns the SpanContext for the active
// candidate-list span of a run. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveListSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.listSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
