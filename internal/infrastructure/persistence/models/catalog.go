package models

import (
	"time"

	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/shopspring/decimal"
)

// SupplyCatalogModel is the persistence model for a catalog entry
type SupplyCatalogModel struct {
	Code      string          `gorm:"type:varchar(50);primaryKey"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Category  string          `gorm:"type:varchar(100);not null;default:'';index"`
	Unit      string          `gorm:"type:varchar(20);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Active    bool            `gorm:"not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SupplyCatalogModel) TableName() string {
	return "supply_catalog"
}

// ToDomain converts the persistence model to a domain CatalogEntry
func (m *SupplyCatalogModel) ToDomain() *supply.CatalogEntry {
	return &supply.CatalogEntry{
		Code:      m.Code,
		Name:      m.Name,
		Category:  m.Category,
		Unit:      m.Unit,
		UnitPrice: m.UnitPrice,
		Active:    m.Active,
	}
}

// SupplyCatalogModelFromDomain creates a persistence model from a CatalogEntry
func SupplyCatalogModelFromDomain(e *supply.CatalogEntry) *SupplyCatalogModel {
	return &SupplyCatalogModel{
		Code:      e.Code,
		Name:      e.Name,
		Category:  e.Category,
		Unit:      e.Unit,
		UnitPrice: e.UnitPrice,
		Active:    e.Active,
	}
}
