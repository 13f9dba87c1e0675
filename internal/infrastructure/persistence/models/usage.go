package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/shopspring/decimal"
)

// UsageRecordModel is the persistence model for the UsageRecord aggregate root
type UsageRecordModel struct {
	AggregateModel
	PatientHN        string               `gorm:"type:varchar(20);not null;index"`
	PatientNameTH    string               `gorm:"type:varchar(200)"`
	PatientNameEN    string               `gorm:"type:varchar(200)"`
	UsageDateTime    time.Time            `gorm:"column:usage_datetime;not null;index"`
	UsageType        string               `gorm:"type:varchar(50);not null"`
	Purpose          string               `gorm:"type:varchar(500)"`
	DepartmentCode   string               `gorm:"type:varchar(50);not null;index"`
	RecordedByUserID string               `gorm:"type:varchar(100);not null"`
	Subtotal         decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Tax              decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Total            decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Currency         string               `gorm:"type:varchar(3);not null"`
	BillingStatus    supply.BillingStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Voided           bool                 `gorm:"not null;default:false"`
	VoidedAt         *time.Time
	VoidedBy         string                `gorm:"type:varchar(100)"`
	VoidReason       string                `gorm:"type:varchar(500)"`
	Lines            []UsageLineEntryModel `gorm:"foreignKey:UsageRecordID;references:ID"`
}

// TableName returns the table name for GORM
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// ToDomain converts the persistence model to a domain UsageRecord
func (m *UsageRecordModel) ToDomain() *supply.UsageRecord {
	r := &supply.UsageRecord{
		Aggregate:        m.aggregate(),
		PatientHN:        m.PatientHN,
		PatientNameTH:    m.PatientNameTH,
		PatientNameEN:    m.PatientNameEN,
		UsageDateTime:    m.UsageDateTime,
		UsageType:        m.UsageType,
		Purpose:          m.Purpose,
		DepartmentCode:   m.DepartmentCode,
		RecordedByUserID: m.RecordedByUserID,
		Billing: supply.Billing{
			Subtotal: m.Subtotal,
			Tax:      m.Tax,
			Total:    m.Total,
			Currency: m.Currency,
			Status:   m.BillingStatus,
		},
		Voided:     m.Voided,
		VoidedAt:   m.VoidedAt,
		VoidedBy:   m.VoidedBy,
		VoidReason: m.VoidReason,
		Lines:      make([]supply.UsageLineEntry, len(m.Lines)),
	}
	for i := range m.Lines {
		r.Lines[i] = m.Lines[i].ToDomain()
	}
	return r
}

// FromDomain populates the persistence model from a domain UsageRecord.
// Line rows get fresh ids; repositories replace the full line set on write.
func (m *UsageRecordModel) FromDomain(r *supply.UsageRecord) {
	m.fromAggregate(r.Aggregate)
	m.PatientHN = r.PatientHN
	m.PatientNameTH = r.PatientNameTH
	m.PatientNameEN = r.PatientNameEN
	m.UsageDateTime = r.UsageDateTime
	m.UsageType = r.UsageType
	m.Purpose = r.Purpose
	m.DepartmentCode = r.DepartmentCode
	m.RecordedByUserID = r.RecordedByUserID
	m.Subtotal = r.Billing.Subtotal
	m.Tax = r.Billing.Tax
	m.Total = r.Billing.Total
	m.Currency = r.Billing.Currency
	m.BillingStatus = r.Billing.Status
	m.Voided = r.Voided
	m.VoidedAt = r.VoidedAt
	m.VoidedBy = r.VoidedBy
	m.VoidReason = r.VoidReason
	m.Lines = make([]UsageLineEntryModel, len(r.Lines))
	for i := range r.Lines {
		m.Lines[i] = UsageLineEntryModelFromDomain(r.ID, r.Lines[i])
	}
}

// UsageRecordModelFromDomain creates a new persistence model from a domain UsageRecord
func UsageRecordModelFromDomain(r *supply.UsageRecord) *UsageRecordModel {
	m := &UsageRecordModel{}
	m.FromDomain(r)
	return m
}

// UsageLineEntryModel is the persistence model for one line of a usage record
type UsageLineEntryModel struct {
	ID               uuid.UUID              `gorm:"type:uuid;primary_key"`
	UsageRecordID    uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_usage_line_record_code,priority:1"`
	LineNo           int                    `gorm:"not null"`
	SupplyCode       string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_usage_line_record_code,priority:2;index"`
	SupplyName       string                 `gorm:"type:varchar(200);not null"`
	Unit             string                 `gorm:"type:varchar(20);not null"`
	QuantityUsed     int                    `gorm:"not null"`
	QuantityReturned int                    `gorm:"not null;default:0"`
	UnitPrice        decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	PriceSource      supply.PriceSourceKind `gorm:"type:varchar(20);not null;default:'catalog'"`
	TotalPrice       decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	ExpiryDate       *time.Time
}

// TableName returns the table name for GORM
func (UsageLineEntryModel) TableName() string {
	return "usage_line_entries"
}

// ToDomain converts the persistence model to a domain UsageLineEntry
func (m *UsageLineEntryModel) ToDomain() supply.UsageLineEntry {
	return supply.UsageLineEntry{
		LineNo:           m.LineNo,
		SupplyCode:       m.SupplyCode,
		SupplyName:       m.SupplyName,
		Unit:             m.Unit,
		QuantityUsed:     m.QuantityUsed,
		QuantityReturned: m.QuantityReturned,
		UnitPrice:        m.UnitPrice,
		PriceSource:      m.PriceSource,
		TotalPrice:       m.TotalPrice,
		ExpiryDate:       m.ExpiryDate,
	}
}

// UsageLineEntryModelFromDomain creates a line row for recordID
func UsageLineEntryModelFromDomain(recordID uuid.UUID, l supply.UsageLineEntry) UsageLineEntryModel {
	return UsageLineEntryModel{
		ID:               uuid.New(),
		UsageRecordID:    recordID,
		LineNo:           l.LineNo,
		SupplyCode:       l.SupplyCode,
		SupplyName:       l.SupplyName,
		Unit:             l.Unit,
		QuantityUsed:     l.QuantityUsed,
		QuantityReturned: l.QuantityReturned,
		UnitPrice:        l.UnitPrice,
		PriceSource:      l.PriceSource,
		TotalPrice:       l.TotalPrice,
		ExpiryDate:       l.ExpiryDate,
	}
}
