package step

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sightline-labs/sightflow/core"
	"github.com/sightline-labs/sightflow/telemetry"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// Debug turns on lifecycle notifications for every node,
	// regardless of per-node focus. It can be changed later via
	// SetDebug.
	Debug bool

	// Cache stores committed records. If nil, a fresh in-memory
	// cache is created.
	Cache *telemetry.Cache

	// Handler receives every emitted event. Optional.
	Handler EventHandler

	// Bus distributes events to subscribers. Optional.
	Bus EventPublisher

	// EmitterDecorator wraps the internal event emitter.
	// If nil, events are emitted without decoration.
	EmitterDecorator EventEmitterDecorator

	// Logger receives engine logs. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Now provides the current time (for testing). If nil, uses time.Now.
	Now func() time.Time
}

// Session owns the state shared by its runners: the telemetry cache,
// the step and recognition id counters, the debug toggle, and the
// event sinks. Counters are session-scoped, so all runners created
// from one session draw ids from the same space.
type Session struct {
	cache    *telemetry.Cache
	steps    Counter
	recos    Counter
	debug    atomic.Bool
	handler  EventHandler
	bus      EventPublisher
	decorate EventEmitterDecorator
	logger   *slog.Logger
	now      func() time.Time
}

// NewSession creates a session with the given configuration.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		cache:    cfg.Cache,
		handler:  cfg.Handler,
		bus:      cfg.Bus,
		decorate: cfg.EmitterDecorator,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if s.cache == nil {
		s.cache = telemetry.NewCache()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.debug.Store(cfg.Debug)
	return s
}

// Cache returns the session's telemetry cache.
func (s *Session) Cache() *telemetry.Cache {
	return s.cache
}

// Debug reports whether debug notifications are on.
func (s *Session) Debug() bool {
	return s.debug.Load()
}

// SetDebug toggles debug notifications. The new value takes effect at
// the next gating decision.
func (s *Session) SetDebug(on bool) {
	s.debug.Store(on)
}

// NextRecoID issues a fresh recognition identifier. Recognizer
// implementations stamp it on the outcomes they produce.
func (s *Session) NextRecoID() int64 {
	return s.recos.Next()
}

// RunnerConfig configures a single run.
type RunnerConfig struct {
	// Entry is the node name the run starts from.
	Entry string

	// RunID identifies the run. If empty, a UUID is generated.
	RunID string

	// Exec looks up node configuration and applies overrides.
	Exec core.ExecContext

	// Controller captures frames for Screencap. Optional; Screencap
	// returns an error when absent.
	Controller core.Controller

	// Recognizer builds recognizers for recognition steps. If nil,
	// every candidate is treated as a miss.
	Recognizer core.RecognizerFactory

	// Actuator builds actuators for action steps. If nil, actions
	// complete as no-ops.
	Actuator core.ActuatorFactory
}

// NewRunner creates a runner bound to this session and commits the
// run's initial record (entry set, no steps yet).
func (s *Session) NewRunner(cfg RunnerConfig) *Runner {
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	newRecognizer := cfg.Recognizer
	if newRecognizer == nil {
		newRecognizer = func(core.ExecContext, image.Image) core.Recognizer {
			return core.RecognizerFunc(func(context.Context, core.NodeConfig) core.Recognition {
				return core.Recognition{}
			})
		}
	}
	newActuator := cfg.Actuator
	if newActuator == nil {
		newActuator = func(core.ExecContext) core.Actuator {
			return core.ActuatorFunc(func(context.Context, core.Rect, int64, core.NodeConfig) bool {
				return true
			})
		}
	}

	r := &Runner{
		session:       s,
		runID:         runID,
		entry:         cfg.Entry,
		current:       cfg.Entry,
		exec:          cfg.Exec,
		controller:    cfg.Controller,
		newRecognizer: newRecognizer,
		newActuator:   newActuator,
		logger:        s.logger.With("run_id", runID),
	}
	r.emit = r.newEmitter()

	s.cache.SetRunRecord(runID, core.RunRecord{ID: runID, Entry: cfg.Entry})
	return r
}

// newEmitter builds the runner's emit function: it stamps per-run
// sequence numbers and emission times and fans events out to the
// session's sinks.
func (r *Runner) newEmitter() EventEmitter {
	emit := func(e Event) {
		e.Seq = r.seq.Add(1)
		e.Time = r.session.now()
		if r.session.bus != nil {
			r.session.bus.Publish(e)
		}
		if r.session.handler != nil {
			r.session.handler(e)
		}
	}
	if r.session.decorate != nil {
		emit = r.session.decorate(emit)
	}
	return emit
}
