package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
)

// AggregateModel holds the columns shared by versioned aggregate tables
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
}

func (m *AggregateModel) fromAggregate(a shared.Aggregate) {
	m.ID = a.ID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.Version = a.Version
}

func (m *AggregateModel) aggregate() shared.Aggregate {
	return shared.Aggregate{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt, Version: m.Version}
}
