package events

import (
	"encoding/json"
	"time"
)

// Event is the contract for field events fanned out to external consumers.
type Event interface {
	// EventType returns the event code (e.g. "session_added").
	EventType() string

	// Payload returns the serialized event data.
	Payload() json.RawMessage

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// FieldEvent is the standard implementation carrying pre-serialized data.
type FieldEvent struct {
	Type       string
	Data       json.RawMessage
	OccurredAt time.Time
}

func NewFieldEvent(eventType string, data json.RawMessage) FieldEvent {
	return FieldEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

func (e FieldEvent) EventType() string {
	return e.Type
}

func (e FieldEvent) Payload() json.RawMessage {
	return e.Data
}

func (e FieldEvent) Timestamp() time.Time {
	return e.OccurredAt
}
