// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Batch lifecycle
	BatchStarted   EventType = "batch.started"
	BatchCompleted EventType = "batch.completed"

	// Per-item progress
	ItemSubmitted EventType = "item.submitted"
	ItemResolved  EventType = "item.resolved"
)

// AllTypes lists every event type the mint pipeline emits.
var AllTypes = []EventType{BatchStarted, ItemSubmitted, ItemResolved, BatchCompleted}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType `json:"type"`
	EventTime time.Time `json:"time"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now().UTC()}
}

// BatchStartedEvent is emitted once the batch has been split into built items and failures.
type BatchStartedEvent struct {
	BaseEvent
	BatchID string `json:"batch_id"`
	Items   int    `json:"items"`
}

// ItemSubmittedEvent is emitted after the first successful submission of an item.
type ItemSubmittedEvent struct {
	BaseEvent
	BatchID   string `json:"batch_id"`
	Index     int    `json:"index"`
	Signature string `json:"signature"`
}

// ItemResolvedEvent carries the terminal outcome of one item.
type ItemResolvedEvent struct {
	BaseEvent
	BatchID      string  `json:"batch_id"`
	Index        int     `json:"index"`
	Label        string  `json:"label,omitempty"`
	Signature    string  `json:"signature,omitempty"`
	Outcome      string  `json:"outcome"`
	Source       string  `json:"source,omitempty"`
	Slot         uint64  `json:"slot,omitempty"`
	ErrorCode    *uint32 `json:"error_code,omitempty"`
	Error        string  `json:"error,omitempty"`
	Rebroadcasts int     `json:"rebroadcasts"`
}

// BatchCompletedEvent summarizes the batch.
type BatchCompletedEvent struct {
	BaseEvent
	BatchID        string `json:"batch_id"`
	Classification string `json:"classification"`
	Submitted      int    `json:"submitted"`
	Successes      int    `json:"successes"`
	Failures       int    `json:"failures"`
	BuildFailures  int    `json:"build_failures"`
}
