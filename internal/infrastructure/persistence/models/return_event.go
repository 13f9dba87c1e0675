package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/supply"
)

// ReturnEventModel is the persistence model for the append-only return audit trail
type ReturnEventModel struct {
	ID               uuid.UUID           `gorm:"type:uuid;primary_key"`
	UsageRecordID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	SupplyCode       string              `gorm:"type:varchar(50);not null"`
	Quantity         int                 `gorm:"not null"`
	Reason           supply.ReturnReason `gorm:"type:varchar(20);not null;index"`
	ReturnedByUserID string              `gorm:"type:varchar(100);not null"`
	ReturnedAt       time.Time           `gorm:"not null;index"`
	Note             string              `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ReturnEventModel) TableName() string {
	return "return_events"
}

// ToDomain converts the persistence model to a domain ReturnEvent
func (m *ReturnEventModel) ToDomain() supply.ReturnEvent {
	return supply.ReturnEvent{
		ID:               m.ID,
		UsageRecordID:    m.UsageRecordID,
		SupplyCode:       m.SupplyCode,
		Quantity:         m.Quantity,
		Reason:           m.Reason,
		ReturnedByUserID: m.ReturnedByUserID,
		ReturnedAt:       m.ReturnedAt,
		Note:             m.Note,
	}
}

// ReturnEventModelFromDomain creates a persistence model from a domain ReturnEvent
func ReturnEventModelFromDomain(e *supply.ReturnEvent) *ReturnEventModel {
	return &ReturnEventModel{
		ID:               e.ID,
		UsageRecordID:    e.UsageRecordID,
		SupplyCode:       e.SupplyCode,
		Quantity:         e.Quantity,
		Reason:           e.Reason,
		ReturnedByUserID: e.ReturnedByUserID,
		ReturnedAt:       e.ReturnedAt,
		Note:             e.Note,
	}
}

// AllModels lists every model for AutoMigrate in tests and local setups
func AllModels() []any {
	return []any{
		&SupplyCatalogModel{},
		&UsageRecordModel{},
		&UsageLineEntryModel{},
		&ReturnEventModel{},
		&DispensedRecordModel{},
		&DispensedFeedStateModel{},
	}
}
