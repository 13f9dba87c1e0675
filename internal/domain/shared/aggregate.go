package shared

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate carries identity, timestamps and the optimistic-lock version of
// an aggregate root, plus the events raised since it was loaded
type Aggregate struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version starts at 1 and advances on every successful write
	Version int

	pending []DomainEvent
}

// NewAggregate starts a new aggregate at version 1
func NewAggregate() Aggregate {
	now := time.Now()
	return Aggregate{ID: uuid.New(), CreatedAt: now, UpdatedAt: now, Version: 1}
}

// Touch stamps UpdatedAt with the current time
func (a *Aggregate) Touch() {
	a.UpdatedAt = time.Now()
}

// RecordEvent queues an event for publication once the aggregate is saved
func (a *Aggregate) RecordEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the queued events in the order they were raised
func (a *Aggregate) PendingEvents() []DomainEvent {
	return a.pending
}

// ClearEvents drops the queued events
func (a *Aggregate) ClearEvents() {
	a.pending = nil
}
