// Package bus provides an event distribution system for sightflow step
// execution. It allows components to publish and subscribe to step
// lifecycle events, enabling decoupled communication between the
// execution engine and observers such as loggers, UIs, and monitoring
// systems.
package bus

import "github.com/sightline-labs/sightflow/step"

// EventBus distributes events to subscribers.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(event step.Event)

	// Subscribe registers a subscriber for a specific run.
	// Returns a Subscription that must be closed when done.
	Subscribe(runID string) Subscription

	// SubscribeAll registers a subscriber that receives events from all runs.
	// Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan step.Event

	// Close unsubscribes and releases resources.
	Close() error
}
