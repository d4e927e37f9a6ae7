package domain

import "time"

// StepEvent is emitted when a step starts or finishes.
type StepEvent struct {
	// ReleaseID references the release the step belongs to.
	ReleaseID string `json:"release_id"`

	// Step identifies the step.
	Step StepName `json:"step"`

	// Status is RUNNING when the step starts and SUCCEEDED or FAILED when it ends.
	Status Status `json:"status"`

	// Attempt is the attempt number, starting at 1.
	Attempt int `json:"attempt"`

	// Timestamp is when the event was generated.
	Timestamp time.Time `json:"timestamp"`

	// Error is set for FAILED events.
	Error string `json:"error,omitempty"`
}

// EventSink receives step events. Implementations must not block.
type EventSink interface {
	Emit(event StepEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(StepEvent)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(event StepEvent) {
	f(event)
}
