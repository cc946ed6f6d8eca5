// Package pipeline holds pipeline definitions and the execution context
// that step runners consult during a run.
package pipeline

import (
	"sync"

	"github.com/sightline-labs/sightflow/core"
)

// Context is the live pipeline configuration for a run. Node lookups
// read it; an override replaces it wholesale. Safe for concurrent use.
type Context struct {
	mu  sync.RWMutex
	def core.Definition
}

// NewContext creates a context over the given definition.
// The definition is normalized: each node's Name is filled from its key.
func NewContext(def core.Definition) *Context {
	return &Context{def: normalize(def)}
}

// NodeConfig returns the configuration for the named node.
func (c *Context) NodeConfig(name string) (core.NodeConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.def[name]
	return cfg, ok
}

// Override replaces the entire definition. A nil definition is
// rejected and leaves the current one installed.
func (c *Context) Override(def core.Definition) bool {
	if def == nil {
		return false
	}
	nd := normalize(def)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.def = nd
	return true
}

// Definition returns a copy of the installed definition.
func (c *Context) Definition() core.Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(core.Definition, len(c.def))
	for name, cfg := range c.def {
		out[name] = cfg
	}
	return out
}

// normalize copies the definition, filling each node's Name from its key.
func normalize(def core.Definition) core.Definition {
	out := make(core.Definition, len(def))
	for name, cfg := range def {
		cfg.Name = name
		out[name] = cfg
	}
	return out
}

// Ensure interface compliance at compile time.
var _ core.ExecContext = (*Context)(nil)
