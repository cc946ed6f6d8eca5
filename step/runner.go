package step

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/sightline-labs/sightflow/core"
)

// ErrNoController is returned by Screencap when the runner was built
// without a controller.
var ErrNoController = errors.New("no controller configured")

// Runner executes recognize-then-act steps for a single run.
//
// A runner's methods are intended to be called sequentially by one
// goroutine. Concurrency happens across runners, which share the
// owning session's cache and id counters.
type Runner struct {
	session *Session
	runID   string
	entry   string
	current string

	exec          core.ExecContext
	controller    core.Controller
	newRecognizer core.RecognizerFactory
	newActuator   core.ActuatorFactory

	emit   EventEmitter
	seq    atomic.Uint64
	logger *slog.Logger
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// Entry returns the name of the node the run started from.
func (r *Runner) Entry() string {
	return r.entry
}

// Session returns the owning session.
func (r *Runner) Session() *Session {
	return r.session
}

// Current returns the node whose candidate list is being evaluated.
// It starts as the entry node.
func (r *Runner) Current() string {
	return r.current
}

// SetCurrent updates the current node. Traversal loops call this as
// they move through the pipeline.
func (r *Runner) SetCurrent(node string) {
	r.current = node
}

// Override replaces the pipeline definition wholesale.
// It reports whether the new definition was installed.
func (r *Runner) Override(def core.Definition) bool {
	if r.exec == nil {
		return false
	}
	return r.exec.Override(def)
}

// Screencap captures a frame from the runner's controller.
func (r *Runner) Screencap(ctx context.Context) (image.Image, error) {
	if r.controller == nil {
		return nil, ErrNoController
	}
	return r.controller.Capture(ctx)
}

// RunRecognition evaluates the candidates in order against the given
// frame and returns the first match. Disabled candidates are skipped
// without invoking their recognizer, and the first match short-circuits
// the rest of the list. When no candidate matches, or when the runner
// has no execution context or the frame is empty, the empty outcome is
// returned.
func (r *Runner) RunRecognition(ctx context.Context, img image.Image, candidates []string) core.Recognition {
	if r.exec == nil {
		r.logger.Error("recognition without execution context", "candidates", candidates)
		return core.Recognition{}
	}
	if img == nil || img.Bounds().Empty() {
		r.logger.Error("recognition with empty image", "candidates", candidates)
		return core.Recognition{}
	}

	listFocus := false
	if cfg, ok := r.exec.NodeConfig(r.current); ok {
		listFocus = cfg.Focus
	}
	listGate := r.session.Debug() || listFocus
	if listGate {
		r.emit(NewEvent(EventListStarting, r.runID).
			WithNode(r.current).
			WithCandidates(candidates))
	}

	// Recognizers can emit their own events through the context.
	ctx = ContextWithEmitter(ctx, r.emit)

	rec := r.newRecognizer(r.exec, img)
	for _, name := range candidates {
		cfg, ok := r.exec.NodeConfig(name)
		if !ok {
			r.logger.Warn("unknown candidate", "node", name)
			continue
		}
		if !cfg.Enabled {
			r.logger.Debug("candidate disabled", "node", name)
			continue
		}

		gate := r.session.Debug() || cfg.Focus
		if gate {
			r.emit(NewEvent(EventRecognitionStarting, r.runID).
				WithNode(name))
		}

		res := rec.Recognize(ctx, cfg)
		if res.Node == "" {
			res.Node = name
		}

		if res.Matched() {
			if gate {
				r.emit(NewEvent(EventRecognitionSucceeded, r.runID).
					WithNode(name).
					WithRecoID(res.RecoID))
			}
			r.logger.Info("recognition hit", "node", name, "reco_id", res.RecoID)
			if listGate {
				r.emit(NewEvent(EventListSucceeded, r.runID).
					WithNode(r.current).
					WithCandidates(candidates))
			}
			return res
		}

		if gate {
			r.emit(NewEvent(EventRecognitionFailed, r.runID).
				WithNode(name).
				WithRecoID(res.RecoID))
		}
	}

	if listGate {
		r.emit(NewEvent(EventListFailed, r.runID).
			WithNode(r.current).
			WithCandidates(candidates))
	}
	return core.Recognition{}
}

// RunAction actuates the matched node and commits the step record.
// The record is committed whether or not the actuator succeeds; only
// its Completed flag differs. An unmatched recognition is a no-op:
// nothing is stored, no events are emitted, and no step id is consumed.
func (r *Runner) RunAction(ctx context.Context, rec core.Recognition) core.StepRecord {
	if r.exec == nil {
		r.logger.Error("action without execution context", "node", rec.Node)
		return core.StepRecord{}
	}
	if !rec.Matched() {
		r.logger.Error("action without match region", "node", rec.Node)
		return core.StepRecord{}
	}

	cfg, ok := r.exec.NodeConfig(rec.Node)
	if !ok {
		cfg.Name = rec.Node
	}

	gate := r.session.Debug() || cfg.Focus
	if gate {
		r.emit(NewEvent(EventActionStarting, r.runID).
			WithNode(rec.Node))
	}

	act := r.newActuator(r.exec)
	completed := act.Run(ContextWithEmitter(ctx, r.emit), *rec.Region, rec.RecoID, cfg)

	record := core.StepRecord{
		ID:        r.session.steps.Next(),
		Node:      rec.Node,
		RecoID:    rec.RecoID,
		Completed: completed,
	}
	r.commit(record)

	if completed {
		r.logger.Debug("action completed", "node", rec.Node, "step_id", record.ID)
	} else {
		r.logger.Warn("action failed", "node", rec.Node, "step_id", record.ID)
	}

	if gate {
		kind := EventActionSucceeded
		if !completed {
			kind = EventActionFailed
		}
		r.emit(NewEvent(kind, r.runID).
			WithNode(rec.Node).
			WithStepID(record.ID))
	}
	return record
}

// commit stores the step record, updates the node's latest step, and
// appends the step to the run record.
func (r *Runner) commit(rec core.StepRecord) {
	cache := r.session.cache
	cache.SetStepRecord(rec.ID, rec)
	cache.SetLatestStep(rec.Node, rec.ID)

	run, ok := cache.RunRecord(r.runID)
	if !ok {
		run = core.RunRecord{ID: r.runID, Entry: r.entry}
	}
	run.Steps = append(run.Steps, rec.ID)
	cache.SetRunRecord(r.runID, run)
}
