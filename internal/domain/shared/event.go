package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to an aggregate
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
}

// EventMeta is embedded by concrete events
type EventMeta struct {
	ID        uuid.UUID `json:"event_id"`
	Type      string    `json:"event_type"`
	At        time.Time `json:"occurred_at"`
	Aggregate uuid.UUID `json:"aggregate_id"`
}

// NewEventMeta stamps a new event of eventType raised by aggregateID
func NewEventMeta(eventType string, aggregateID uuid.UUID) EventMeta {
	return EventMeta{ID: uuid.New(), Type: eventType, At: time.Now(), Aggregate: aggregateID}
}

func (e *EventMeta) EventID() uuid.UUID     { return e.ID }
func (e *EventMeta) EventType() string      { return e.Type }
func (e *EventMeta) OccurredAt() time.Time  { return e.At }
func (e *EventMeta) AggregateID() uuid.UUID { return e.Aggregate }

// EventHandler consumes published events
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants; empty means all
	EventTypes() []string
}

// EventPublisher publishes events after the originating write committed
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
