package otel

import (
	"github.com/sightline-labs/sightflow/step"
)

// EnrichEmitter wraps an EventEmitter with OpenTelemetry trace context.
// When events are emitted, it looks up the active span from the TracingHandler
// and populates the TraceID and SpanID fields on the event.
//
// For node-level events (where Node is set), the recognition or action span
// is checked first. If none is found, it falls back to the candidate-list
// span. When no span is active, the event passes through unchanged.
func EnrichEmitter(emit step.EventEmitter, tracing *TracingHandler) step.EventEmitter {
	return func(e step.Event) {
		// For node-level events, try the node's span first.
		if e.Node != "" {
			sc := tracing.ActiveSpanContext(e.RunID, e.Node)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		// Fallback to the list-level span.
		if e.TraceID == "" && e.RunID != "" {
			sc := tracing.ActiveListSpanContext(e.RunID)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		emit(e)
	}
}
