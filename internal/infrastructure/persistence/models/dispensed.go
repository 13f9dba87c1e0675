package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/supply"
)

// DispensedRecordModel is one row of the dispensing feed
type DispensedRecordModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	SupplyCode        string    `gorm:"type:varchar(50);not null;index:idx_dispensed_code_at,priority:1"`
	DepartmentCode    string    `gorm:"type:varchar(50);not null;index"`
	QuantityDispensed int       `gorm:"not null"`
	DispensedAt       time.Time `gorm:"not null;index:idx_dispensed_code_at,priority:2"`
	SourceRef         string    `gorm:"type:varchar(100)"`
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DispensedRecordModel) TableName() string {
	return "dispensed_records"
}

// ToDomain converts the persistence model to a domain DispensedRecord
func (m *DispensedRecordModel) ToDomain() supply.DispensedRecord {
	return supply.DispensedRecord{
		SupplyCode:        m.SupplyCode,
		DepartmentCode:    m.DepartmentCode,
		QuantityDispensed: m.QuantityDispensed,
		DispensedAt:       m.DispensedAt,
	}
}

// DispensedFeedStateModel tracks how far the dispensing feed has been loaded
type DispensedFeedStateModel struct {
	Source        string    `gorm:"type:varchar(50);primaryKey"`
	SyncedThrough time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DispensedFeedStateModel) TableName() string {
	return "dispensed_feed_state"
}
