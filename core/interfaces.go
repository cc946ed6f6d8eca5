package core

import (
	"context"
	"image"
)

// Controller supplies captured frames to recognition steps.
// Implementations wrap whatever produces images: a device screen,
// a window grabber, a test fixture.
type Controller interface {
	// Capture returns the most recent frame.
	Capture(ctx context.Context) (image.Image, error)
}

// Recognizer evaluates one candidate node against a captured frame.
// Implementations interpret the node's Recognition params and return
// the outcome; a nil Region means no match.
type Recognizer interface {
	Recognize(ctx context.Context, cfg NodeConfig) Recognition
}

// Actuator performs a node's action against a matched region.
// The returned bool reports whether the action completed.
type Actuator interface {
	Run(ctx context.Context, region Rect, recoID int64, cfg NodeConfig) bool
}

// ExecContext is the pipeline-facing surface a step runner consumes:
// node configuration lookup plus wholesale definition replacement.
type ExecContext interface {
	// NodeConfig returns the configuration for the named node.
	NodeConfig(name string) (NodeConfig, bool)

	// Override replaces the entire pipeline definition.
	// It reports whether the new definition was installed.
	Override(def Definition) bool
}

// RecognizerFactory builds a recognizer over an execution context and
// the frame under evaluation. Called once per recognition step; the
// same recognizer is reused across all candidates of that step.
type RecognizerFactory func(exec ExecContext, img image.Image) Recognizer

// ActuatorFactory builds an actuator over an execution context.
// Called once per action step.
type ActuatorFactory func(exec ExecContext) Actuator

// ControllerFunc adapts a capture function to the Controller interface.
type ControllerFunc func(ctx context.Context) (image.Image, error)

// Capture implements Controller.
func (f ControllerFunc) Capture(ctx context.Context) (image.Image, error) {
	return f(ctx)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, cfg NodeConfig) Recognition

// Recognize implements Recognizer.
func (f RecognizerFunc) Recognize(ctx context.Context, cfg NodeConfig) Recognition {
	return f(ctx, cfg)
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, region Rect, recoID int64, cfg NodeConfig) bool

// Run implements Actuator.
func (f ActuatorFunc) Run(ctx context.Context, region Rect, recoID int64, cfg NodeConfig) bool {
	return f(ctx, region, recoID, cfg)
}
