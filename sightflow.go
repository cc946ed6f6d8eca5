// Package sightflow implements the recognize-then-act step engine used
// by vision-driven automation pipelines.
//
// This file provides re-exports for the types and constructors from the
// core, step, pipeline, and telemetry subpackages so small programs can
// depend on a single import.
//
// For new code, consider importing subpackages directly for clearer
// dependencies:
//
//	import "github.com/sightline-labs/sightflow/core"
//	import "github.com/sightline-labs/sightflow/step"
//	import "github.com/sightline-labs/sightflow/pipeline"
package sightflow

import (
	"context"

	"github.com/sightline-labs/sightflow/core"
	"github.com/sightline-labs/sightflow/pipeline"
	"github.com/sightline-labs/sightflow/step"
	"github.com/sightline-labs/sightflow/telemetry"
)

// =============================================================================
// Core Package Re-exports
// =============================================================================

// Type aliases from core package
type (
	// Params carries recognizer or actuator parameters.
	Params = core.Params

	// Rect is a rectangular region in image coordinates.
	Rect = core.Rect

	// NodeConfig is the configuration of a single pipeline node.
	NodeConfig = core.NodeConfig

	// Definition is a full pipeline definition keyed by node name.
	Definition = core.Definition

	// Recognition is the outcome of a recognition step.
	Recognition = core.Recognition

	// StepRecord is the committed result of one action step.
	StepRecord = core.StepRecord

	// RunRecord aggregates the steps committed during a run.
	RunRecord = core.RunRecord

	// Controller captures frames from a device or window.
	Controller = core.Controller

	// Recognizer evaluates one node's recognition against a frame.
	Recognizer = core.Recognizer

	// Actuator performs a node's action against a matched region.
	Actuator = core.Actuator

	// ExecContext looks up node configuration and applies overrides.
	ExecContext = core.ExecContext

	// RecognizerFactory builds the recognizer for one recognition step.
	RecognizerFactory = core.RecognizerFactory

	// ActuatorFactory builds the actuator for one action step.
	ActuatorFactory = core.ActuatorFactory

	// ControllerFunc adapts a function to the Controller interface.
	ControllerFunc = core.ControllerFunc

	// RecognizerFunc adapts a function to the Recognizer interface.
	RecognizerFunc = core.RecognizerFunc

	// ActuatorFunc adapts a function to the Actuator interface.
	ActuatorFunc = core.ActuatorFunc
)

// =============================================================================
// Step Package Re-exports
// =============================================================================

// Type aliases from step package
type (
	// Session owns the id counters, the telemetry cache, and the event sinks.
	Session = step.Session

	// SessionConfig configures a Session.
	SessionConfig = step.SessionConfig

	// Runner executes recognize-then-act steps for a single run.
	Runner = step.Runner

	// RunnerConfig configures a single run.
	RunnerConfig = step.RunnerConfig

	// Counter issues strictly increasing identifiers.
	Counter = step.Counter

	// EventKind identifies the type of lifecycle event emitted by a runner.
	EventKind = step.EventKind

	// Event is a structured, streamable record of what happened during a step.
	Event = step.Event

	// EventEmitter is a function type for emitting events.
	EventEmitter = step.EventEmitter

	// EventEmitterDecorator wraps an emitter to add cross-cutting behavior.
	EventEmitterDecorator = step.EventEmitterDecorator

	// EventHandler is a function type for handling events.
	EventHandler = step.EventHandler
)

// EventKind constants
const (
	EventListStarting         = step.EventListStarting
	EventListSucceeded        = step.EventListSucceeded
	EventListFailed           = step.EventListFailed
	EventRecognitionStarting  = step.EventRecognitionStarting
	EventRecognitionSucceeded = step.EventRecognitionSucceeded
	EventRecognitionFailed    = step.EventRecognitionFailed
	EventActionStarting       = step.EventActionStarting
	EventActionSucceeded      = step.EventActionSucceeded
	EventActionFailed         = step.EventActionFailed
)

// Step package errors
var (
	ErrNoController = step.ErrNoController
)

// Step package constructors
var (
	NewSession          = step.NewSession
	NewEvent            = step.NewEvent
	MultiEventHandler   = step.MultiEventHandler
	ChannelEventHandler = step.ChannelEventHandler
)

// =============================================================================
// Pipeline and Telemetry Package Re-exports
// =============================================================================

// Type aliases from pipeline and telemetry packages
type (
	// PipelineContext is the live execution context over a pipeline definition.
	PipelineContext = pipeline.Context

	// Diagnostic represents a validation error or warning.
	Diagnostic = pipeline.Diagnostic

	// Cache stores committed step and run records.
	Cache = telemetry.Cache
)

// Pipeline and telemetry package constructors
var (
	NewPipelineContext = pipeline.NewContext
	LoadPipeline       = pipeline.Load
	ParsePipeline      = pipeline.Parse
	ValidatePipeline   = pipeline.Validate
	NewCache           = telemetry.NewCache
)

// =============================================================================
// Convenience helper functions
// =============================================================================

// CycleResult is what one recognize-then-act cycle produced.
type CycleResult struct {
	// Recognition is the recognition outcome, empty when nothing matched.
	Recognition Recognition

	// Record is the committed step record; meaningful only when Acted is true.
	Record StepRecord

	// Acted reports whether an action step ran.
	Acted bool
}

// RunCycle captures a frame, evaluates the candidates in order, and
// actuates the first match. A cycle where nothing matches is not an
// error; Acted on the result reports whether an action step ran.
func RunCycle(ctx context.Context, r *Runner, candidates []string) (CycleResult, error) {
	img, err := r.Screencap(ctx)
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{Recognition: r.RunRecognition(ctx, img, candidates)}
	if res.Recognition.Matched() {
		res.Record = r.RunAction(ctx, res.Recognition)
		res.Acted = true
	}
	return res, nil
}
