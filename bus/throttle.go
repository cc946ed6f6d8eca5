package bus

import (
	"sync"
	"time"

	"github.com/sightline-labs/sightflow/step"
)

// ThrottleConfig controls the behavior of ThrottledEmitter.
type ThrottleConfig struct {
	// CoalesceInterval is how often to flush coalesced miss events.
	// Default: 100ms
	CoalesceInterval time.Duration
}

// throttleKey identifies the coalescing bucket for an event.
type throttleKey struct {
	runID string
	node  string
}

// ThrottledEmitter wraps a step.EventEmitter and coalesces high-frequency
// recognition.failed events. Polling loops re-evaluate candidate lists many
// times per second, producing a steady stream of misses per node; only the
// latest miss for each (run, node) pair is kept within each coalesce
// interval. All other kinds pass through immediately. A background ticker
// flushes coalesced misses at the configured interval.
type ThrottledEmitter struct {
	emit     step.EventEmitter
	interval time.Duration

	mu      sync.Mutex
	pending map[throttleKey]step.Event // (run, node) -> latest miss event
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewThrottledEmitter creates a new ThrottledEmitter that wraps the given
// emitter and coalesces EventRecognitionFailed events at the configured interval.
func NewThrottledEmitter(emit step.EventEmitter, cfg ThrottleConfig) *ThrottledEmitter {
	interval := cfg.CoalesceInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	te := &ThrottledEmitter{
		emit:     emit,
		interval: interval,
		pending:  make(map[throttleKey]step.Event),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go te.run()

	return te
}

// Emit sends an event through the throttled emitter. Non-miss events pass
// through immediately to the wrapped emitter. Miss events
// (EventRecognitionFailed) are coalesced: only the latest miss per
// (run, node) pair is kept and flushed at the configured interval.
func (te *ThrottledEmitter) Emit(e step.Event) {
	if e.Kind != step.EventRecognitionFailed {
		// Non-miss events pass through immediately.
		te.emit(e)
		return
	}

	// Miss events are coalesced per (run, node).
	te.mu.Lock()
	defer te.mu.Unlock()

	if te.closed {
		return
	}

	te.pending[throttleKey{runID: e.RunID, node: e.Node}] = e
}

// Close flushes any pending miss events and stops the background ticker.
// It is safe to call Close multiple times.
func (te *ThrottledEmitter) Close() {
	te.mu.Lock()
	if te.closed {
		te.mu.Unlock()
		return
	}
	te.closed = true
	te.mu.Unlock()

	// Signal the background goroutine to stop.
	close(te.stopCh)

	// Wait for the background goroutine to finish.
	<-te.doneCh
}

// run is the background goroutine that periodically flushes coalesced misses.
func (te *ThrottledEmitter) run() {
	defer close(te.doneCh)

	ticker := time.NewTicker(te.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			te.flush()
		case <-te.stopCh:
			// Flush any remaining pending events before exiting.
			te.flush()
			return
		}
	}
}

// flush sends all pending coalesced miss events to the wrapped emitter
// and clears the pending map.
func (te *ThrottledEmitter) flush() {
	te.mu.Lock()
	if len(te.pending) == 0 {
		te.mu.Unlock()
		return
	}

	// Swap out the pending map so we can release the lock during emission.
	toFlush := te.pending
	te.pending = make(map[throttleKey]step.Event)
	te.mu.Unlock()

	for _, e := range toFlush {
		te.emit(e)
	}
}
