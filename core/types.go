// Package core provides the foundational types and interfaces for sightflow pipelines.
//
// This package contains:
//   - Core types: Rect, NodeConfig, Recognition, StepRecord, RunRecord
//   - Interfaces: Controller, Recognizer, Actuator, ExecContext
//   - Definition, the pipeline configuration carrier
package core

// Params carries recognizer or actuator parameters.
// The engine treats these as opaque; recognizer and actuator
// implementations interpret them.
type Params map[string]any

// Rect is a rectangular region in image coordinates.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// NodeConfig is the configuration of a single pipeline node.
type NodeConfig struct {
	// Name is the node's unique name within the pipeline.
	Name string `json:"name" yaml:"name"`

	// Enabled controls whether the node participates in recognition.
	// Disabled nodes are skipped without invoking their recognizer.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Focus opts the node into lifecycle notifications even when
	// debug mode is off.
	Focus bool `json:"focus" yaml:"focus"`

	// Recognition holds recognizer parameters (opaque to the engine).
	Recognition Params `json:"recognition,omitempty" yaml:"recognition,omitempty"`

	// Action holds actuator parameters (opaque to the engine).
	Action Params `json:"action,omitempty" yaml:"action,omitempty"`
}

// Definition is a full pipeline definition keyed by node name.
type Definition map[string]NodeConfig

// Recognition is the outcome of a recognition step.
// The zero value is the empty outcome: no node, RecoID 0, no region.
type Recognition struct {
	// Node is the name of the matched node (empty for the empty outcome).
	Node string `json:"node"`

	// RecoID identifies the recognition attempt that produced this outcome.
	RecoID int64 `json:"reco_id"`

	// Region is the matched area, nil when nothing matched.
	Region *Rect `json:"region,omitempty"`
}

// Matched reports whether the recognition produced a match region.
func (r Recognition) Matched() bool {
	return r.Region != nil
}

// StepRecord is the committed result of one action step.
type StepRecord struct {
	// ID is the step identifier (never 0 for a committed record).
	ID int64 `json:"id"`

	// Node is the name of the acted-on node.
	Node string `json:"node"`

	// RecoID is the recognition that triggered this step.
	RecoID int64 `json:"reco_id"`

	// Completed reports whether the actuator succeeded.
	Completed bool `json:"completed"`
}

// RunRecord aggregates the steps committed during a run.
type RunRecord struct {
	// ID is the run identifier.
	ID string `json:"id"`

	// Entry is the name of the node the run started from.
	Entry string `json:"entry"`

	// Steps holds committed step identifiers in commit order.
	Steps []int64 `json:"steps"`
}
