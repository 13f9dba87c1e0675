package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerSnapshotProvider implements LedgerSnapshotProvider on the
// usage_records table
type GormLedgerSnapshotProvider struct {
	db *gorm.DB
}

// NewGormLedgerSnapshotProvider creates a new GormLedgerSnapshotProvider
func NewGormLedgerSnapshotProvider(db *gorm.DB) *GormLedgerSnapshotProvider {
	return &GormLedgerSnapshotProvider{db: db}
}

// OpenRecordsByBillingStatus counts non-voided records per billing status
func (p *GormLedgerSnapshotProvider) OpenRecordsByBillingStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		BillingStatus string `gorm:"column:billing_status"`
		Count         int64  `gorm:"column:count"`
	}
	err := p.db.WithContext(ctx).
		Table("usage_records").
		Select("billing_status, COUNT(*) AS count").
		Where("voided = ?", false).
		Group("billing_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.BillingStatus] = r.Count
	}
	return counts, nil
}
