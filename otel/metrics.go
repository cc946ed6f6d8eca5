package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sightline-labs/sightflow/step"
)

// MetricsHandler translates sightflow step events into OpenTelemetry metrics.
// It records counters for recognition outcomes and action executions, and
// histograms for recognition and action durations derived from the
// starting/ended event pairs.
type MetricsHandler struct {
	recoHits       metric.Int64Counter
	recoMisses     metric.Int64Counter
	actions        metric.Int64Counter
	actionFailures metric.Int64Counter
	recoDuration   metric.Float64Histogram
	actionDuration metric.Float64Histogram

	mu           sync.Mutex
	recoStarts   map[string]time.Time // runID:node -> starting event time
	actionStarts map[string]time.Time // runID:node -> starting event time
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording sightflow step metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	recoHits, err := meter.Int64Counter("sightflow.recognition.hits",
		metric.WithDescription("Number of recognitions that produced a match"),
	)
	if err != nil {
		return nil, err
	}

	recoMisses, err := meter.Int64Counter("sightflow.recognition.misses",
		metric.WithDescription("Number of recognitions that produced no match"),
	)
	if err != nil {
		return nil, err
	}

	actions, err := meter.Int64Counter("sightflow.action.executions",
		metric.WithDescription("Number of action executions"),
	)
	if err != nil {
		return nil, err
	}

	actionFailures, err := meter.Int64Counter("sightflow.action.failures",
		metric.WithDescription("Number of failed action executions"),
	)
	if err != nil {
		return nil, err
	}

	recoDur, err := meter.Float64Histogram("sightflow.recognition.duration",
		metric.WithDescription("Duration of a single candidate recognition in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	actionDur, err := meter.Float64Histogram("sightflow.action.duration",
		metric.WithDescription("Duration of a single action execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		recoHits:       recoHits,
		recoMisses:     recoMisses,
		actions:        actions,
		actionFailures: actionFailures,
		recoDuration:   recoDur,
		actionDuration: actionDur,
		recoStarts:     make(map[string]time.Time),
		actionStarts:   make(map[string]time.Time),
	}, nil
}

// Handle processes a step event and records the appropriate metrics.
// It implements step.EventHandler semantics.
func (h *MetricsHandler) Handle(e step.Event) {
	switch e.Kind {
	case step.EventRecognitionStarting:
		h.recordStart(h.recoStarts, e)
	case step.EventRecognitionSucceeded:
		h.handleRecognitionEnded(e, true)
	case step.EventRecognitionFailed:
		h.handleRecognitionEnded(e, false)
	case step.EventActionStarting:
		h.recordStart(h.actionStarts, e)
	case step.EventActionSucceeded:
		h.handleActionEnded(e, true)
	case step.EventActionFailed:
		h.handleActionEnded(e, false)
	}
}

// recordStart remembers when a starting event arrived so the matching
// end event can derive a duration.
func (h *MetricsHandler) recordStart(starts map[string]time.Time, e step.Event) {
	h.mu.Lock()
	starts[e.RunID+":"+e.Node] = e.Time
	h.mu.Unlock()
}

// takeStart removes and returns the recorded start time for an event,
// if one exists. Gating can flip between a pair's two events, so a
// missing start is tolerated.
func (h *MetricsHandler) takeStart(starts map[string]time.Time, e step.Event) (time.Time, bool) {
	key := e.RunID + ":" + e.Node
	h.mu.Lock()
	defer h.mu.Unlock()
	start, ok := starts[key]
	if ok {
		delete(starts, key)
	}
	return start, ok
}

// handleRecognitionEnded counts the outcome and records duration when
// the starting event was seen.
func (h *MetricsHandler) handleRecognitionEnded(e step.Event, hit bool) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node", e.Node),
	)

	if hit {
		h.recoHits.Add(ctx, 1, attrs)
	} else {
		h.recoMisses.Add(ctx, 1, attrs)
	}

	if start, ok := h.takeStart(h.recoStarts, e); ok {
		h.recoDuration.Record(ctx, e.Time.Sub(start).Seconds(), attrs)
	}
}

// handleActionEnded counts the execution and records duration when the
// starting event was seen.
func (h *MetricsHandler) handleActionEnded(e step.Event, completed bool) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node", e.Node),
	)

	h.actions.Add(ctx, 1, attrs)
	if !completed {
		h.actionFailures.Add(ctx, 1, attrs)
	}

	if start, ok := h.takeStart(h.actionStarts, e); ok {
		h.actionDuration.Record(ctx, e.Time.Sub(start).Seconds(), attrs)
	}
}
