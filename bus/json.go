package bus

import (
	"time"

	"github.com/sightline-labs/sightflow/step"
)

// EventJSON converts an event to a JSON-encodable map with stable
// snake_case keys. Optional fields are omitted when empty so consumers
// see compact messages. The MQTT bridge publishes this shape; tooling
// that re-serializes stored events should use it too.
func EventJSON(e step.Event) map[string]any {
	msg := map[string]any{
		"kind":    string(e.Kind),
		"run_id":  e.RunID,
		"node":    e.Node,
		"step_id": e.StepID,
		"reco_id": e.RecoID,
		"seq":     e.Seq,
		"time":    e.Time.UTC().Format(time.RFC3339Nano),
	}
	if len(e.Candidates) > 0 {
		msg["candidates"] = e.Candidates
	}
	if len(e.Payload) > 0 {
		msg["payload"] = e.Payload
	}
	if e.TraceID != "" {
		msg["trace_id"] = e.TraceID
	}
	if e.SpanID != "" {
		msg["span_id"] = e.SpanID
	}
	return msg
}
