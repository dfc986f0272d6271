package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate and published once the
// aggregate has been saved.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	SchoolID() uuid.UUID
}

// AggregateRef names the aggregate an event was raised on
type AggregateRef struct {
	ID   uuid.UUID `json:"id"`
	Type string    `json:"type"`
}

// BaseDomainEvent is embedded by concrete events to satisfy DomainEvent
type BaseDomainEvent struct {
	ID        uuid.UUID    `json:"id"`
	Type      string       `json:"type"`
	At        time.Time    `json:"occurred_at"`
	Aggregate AggregateRef `json:"aggregate"`
	School    uuid.UUID    `json:"school_id"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate.ID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Aggregate.Type }
func (e *BaseDomainEvent) SchoolID() uuid.UUID    { return e.School }

// NewBaseDomainEvent stamps a new event with a fresh ID and the current time
func NewBaseDomainEvent(eventType, aggType string, aggID, schoolID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		At:        time.Now(),
		Aggregate: AggregateRef{ID: aggID, Type: aggType},
		School:    schoolID,
	}
}
