package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultDispensedFeed is the feed name tracked in dispensed_feed_state
const DefaultDispensedFeed = "pharmacy"

// DefaultDispensedRowLimit bounds one FetchDispensed read
const DefaultDispensedRowLimit = 50000

// GormDispensedSource reads dispensing data loaded into dispensed_records.
//
// A batch is reported incomplete when the feed watermark in
// dispensed_feed_state lags behind the window end, or when the row limit cut
// the result short. Without a watermark row the table is taken as complete.
type GormDispensedSource struct {
	db       *gorm.DB
	feed     string
	rowLimit int
}

// DispensedSourceOption configures GormDispensedSource
type DispensedSourceOption func(*GormDispensedSource)

// WithFeed sets the feed name whose watermark is consulted
func WithFeed(name string) DispensedSourceOption {
	return func(s *GormDispensedSource) {
		s.feed = name
	}
}

// WithRowLimit caps the number of rows read per fetch
func WithRowLimit(n int) DispensedSourceOption {
	return func(s *GormDispensedSource) {
		if n > 0 {
			s.rowLimit = n
		}
	}
}

// NewGormDispensedSource creates a new GormDispensedSource
func NewGormDispensedSource(db *gorm.DB, opts ...DispensedSourceOption) *GormDispensedSource {
	s := &GormDispensedSource{db: db, feed: DefaultDispensedFeed, rowLimit: DefaultDispensedRowLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchDispensed returns dispensed records inside window
func (s *GormDispensedSource) FetchDispensed(ctx context.Context, window supply.Window, filter supply.ReconciliationFilter) (supply.DispensedBatch, error) {
	db := s.db.WithContext(ctx)

	var rows []models.DispensedRecordModel
	query := db.Model(&models.DispensedRecordModel{}).
		Where("dispensed_at >= ? AND dispensed_at < ?", window.Start, window.End)
	if filter.DepartmentCode != "" {
		query = query.Where("UPPER(department_code) = ?", strings.ToUpper(filter.DepartmentCode))
	}
	if len(filter.SupplyCodes) > 0 {
		query = query.Where("supply_code IN ?", filter.SupplyCodes)
	}
	if err := query.Order("dispensed_at ASC, id ASC").Limit(s.rowLimit + 1).Find(&rows).Error; err != nil {
		return supply.DispensedBatch{}, translateTimeout(DependencyDispensed, err)
	}

	complete := true
	if len(rows) > s.rowLimit {
		rows = rows[:s.rowLimit]
		complete = false
	}

	var state models.DispensedFeedStateModel
	err := db.First(&state, "source = ?", s.feed).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return supply.DispensedBatch{}, translateTimeout(DependencyDispensed, err)
	case state.SyncedThrough.Before(window.End):
		complete = false
	}

	records := make([]supply.DispensedRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return supply.DispensedBatch{Records: records, Complete: complete}, nil
}

// Append loads dispensed records and advances the feed watermark to
// syncedThrough in one transaction. A zero syncedThrough leaves the watermark
// untouched.
func (s *GormDispensedSource) Append(ctx context.Context, records []supply.DispensedRecord, sourceRef string, syncedThrough time.Time) error {
	now := time.Now()
	rows := make([]models.DispensedRecordModel, len(records))
	for i, rec := range records {
		rows[i] = models.DispensedRecordModel{
			ID:                uuid.New(),
			SupplyCode:        rec.SupplyCode,
			DepartmentCode:    rec.DepartmentCode,
			QuantityDispensed: rec.QuantityDispensed,
			DispensedAt:       rec.DispensedAt,
			SourceRef:         sourceRef,
			CreatedAt:         now,
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if syncedThrough.IsZero() {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"synced_through", "updated_at"}),
		}).Create(&models.DispensedFeedStateModel{
			Source:        s.feed,
			SyncedThrough: syncedThrough,
			UpdatedAt:     now,
		}).Error
	})
}

var _ supply.DispensedSource = (*GormDispensedSource)(nil)
