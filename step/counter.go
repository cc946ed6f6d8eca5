package step

import "sync/atomic"

// Counter issues monotonically increasing identifiers.
// The zero value is ready to use. The first id is 1; 0 is never
// issued, so callers can use 0 as a not-yet-assigned placeholder.
// Safe for concurrent use.
type Counter struct {
	n atomic.Int64
}

// Next returns the next identifier.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Current returns the most recently issued identifier, 0 when none.
func (c *Counter) Current() int64 {
	return c.n.Load()
}
