// Package telemetry stores the execution records produced by step runners.
//
// The cache is the hot-path store: committed step records, run records,
// and the latest committed step per node, all in process memory. Entries
// are inserted or overwritten through set operations and read through
// get operations; nothing is ever deleted. Lifetime matches the owning
// session.
package telemetry

import (
	"sync"

	"github.com/sightline-labs/sightflow/core"
)

// Cache is an in-memory telemetry store.
// All methods are safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	steps  map[int64]core.StepRecord
	runs   map[string]core.RunRecord
	latest map[string]int64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		steps:  make(map[int64]core.StepRecord),
		runs:   make(map[string]core.RunRecord),
		latest: make(map[string]int64),
	}
}

// SetStepRecord inserts or overwrites the record for a step id.
func (c *Cache) SetStepRecord(id int64, rec core.StepRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[id] = rec
}

// StepRecord returns the record committed under the given step id.
func (c *Cache) StepRecord(id int64) (core.StepRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.steps[id]
	return rec, ok
}

// SetRunRecord inserts or overwrites the record for a run id.
// The record's step list is copied so later mutation by the caller
// cannot alias the stored value.
func (c *Cache) SetRunRecord(id string, rec core.RunRecord) {
	rec.Steps = cloneSteps(rec.Steps)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[id] = rec
}

// RunRecord returns the record for a run id. The returned step list
// is a copy.
func (c *Cache) RunRecord(id string) (core.RunRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.runs[id]
	if !ok {
		return core.RunRecord{}, false
	}
	rec.Steps = cloneSteps(rec.Steps)
	return rec, true
}

// SetLatestStep records the most recent step id committed for a node.
func (c *Cache) SetLatestStep(node string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[node] = id
}

// LatestStep returns the most recent step id committed for a node.
func (c *Cache) LatestStep(node string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.latest[node]
	return id, ok
}

func cloneSteps(steps []int64) []int64 {
	if steps == nil {
		return nil
	}
	out := make([]int64, len(steps))
	copy(out, steps)
	return out
}
