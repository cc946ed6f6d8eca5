package step

import (
	"context"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/sightline-labs/sightflow/core"
)

func TestContextWithEmitter_Roundtrip(t *testing.T) {
	var got Event
	emit := func(e Event) { got = e }

	ctx := ContextWithEmitter(context.Background(), emit)
	EmitterFromContext(ctx)(NewEvent(EventListStarting, "run-1"))

	if got.Kind != EventListStarting {
		t.Errorf("emitted kind = %s, want %s", got.Kind, EventListStarting)
	}
	if got.RunID != "run-1" {
		t.Errorf("emitted run id = %q, want 'run-1'", got.RunID)
	}
}

func TestEmitterFromContext_NoEmitter(t *testing.T) {
	emit := EmitterFromContext(context.Background())
	if emit == nil {
		t.Fatal("EmitterFromContext should never return nil")
	}
	// Must not panic.
	emit(NewEvent(EventListStarting, "run-1"))
}

// fixedExec serves a static definition.
type fixedExec struct {
	def core.Definition
}

func (f *fixedExec) NodeConfig(name string) (core.NodeConfig, bool) {
	cfg, ok := f.def[name]
	return cfg, ok
}

func (f *fixedExec) Override(def core.Definition) bool {
	f.def = def
	return true
}

func TestRunner_InjectsEmitterIntoContext(t *testing.T) {
	var events []Event
	session := NewSession(SessionConfig{
		Handler: func(e Event) { events = append(events, e) },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	exec := &fixedExec{def: core.Definition{
		"probe": {Name: "probe", Enabled: true},
	}}

	// The recognizer emits a custom event through the injected emitter.
	// Custom events flow regardless of the lifecycle gating.
	recognizer := core.RecognizerFunc(func(ctx context.Context, cfg core.NodeConfig) core.Recognition {
		EmitterFromContext(ctx)(NewEvent(EventKind("probe.sample"), "").WithNode(cfg.Name))
		return core.Recognition{Node: cfg.Name}
	})

	runner := session.NewRunner(RunnerConfig{
		Entry: "probe",
		Exec:  exec,
		Recognizer: func(core.ExecContext, image.Image) core.Recognizer {
			return recognizer
		},
	})

	runner.RunRecognition(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)), []string{"probe"})

	if len(events) != 1 {
		t.Fatalf("handler got %d events, want the custom one", len(events))
	}
	if events[0].Kind != EventKind("probe.sample") {
		t.Errorf("kind = %s, want probe.sample", events[0].Kind)
	}
	if events[0].Seq == 0 {
		t.Error("custom events should get per-run sequence numbers")
	}
}
