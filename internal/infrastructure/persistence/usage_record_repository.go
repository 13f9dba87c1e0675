package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const usageRecordResource = "usage record"

// GormUsageRecordRepository implements supply.UsageRecordRepository using GORM
type GormUsageRecordRepository struct {
	db *gorm.DB
}

// NewGormUsageRecordRepository creates a new GormUsageRecordRepository
func NewGormUsageRecordRepository(db *gorm.DB) *GormUsageRecordRepository {
	return &GormUsageRecordRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// FindByID finds a usage record with its lines. Voided records are returned.
func (r *GormUsageRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*supply.UsageRecord, error) {
	var m models.UsageRecordModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", preloadLines).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(usageRecordResource, id.String())
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll returns one page of usage records matching filter
func (r *GormUsageRecordRepository) FindAll(ctx context.Context, filter shared.Filter) ([]supply.UsageRecord, error) {
	filter = filter.Normalize()
	var rows []models.UsageRecordModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.UsageRecordModel{}), filter).
		Preload("Lines", preloadLines).
		Order(usageRecordSort.clause(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]supply.UsageRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records, nil
}

// Count counts usage records matching filter
func (r *GormUsageRecordRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.UsageRecordModel{}), filter.Normalize())
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save inserts a new usage record together with its lines
func (r *GormUsageRecordRepository) Save(ctx context.Context, record *supply.UsageRecord) error {
	m := models.UsageRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Create(m).Error; err != nil {
			return fmt.Errorf("insert usage record: %w", err)
		}
		if len(m.Lines) > 0 {
			if err := tx.Create(&m.Lines).Error; err != nil {
				return fmt.Errorf("insert usage lines: %w", err)
			}
		}
		return nil
	})
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormUsageRecordRepository) SaveWithLock(ctx context.Context, record *supply.UsageRecord) error {
	var next int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		next, err = r.updateWithLock(tx, record)
		return err
	})
	if err != nil {
		return err
	}
	record.Version = next
	return nil
}

// SaveWithReturn saves the record with optimistic locking and appends the
// return event in the same transaction
func (r *GormUsageRecordRepository) SaveWithReturn(ctx context.Context, record *supply.UsageRecord, ev *supply.ReturnEvent) error {
	var next int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if next, err = r.updateWithLock(tx, record); err != nil {
			return err
		}
		if err := tx.Create(models.ReturnEventModelFromDomain(ev)).Error; err != nil {
			return fmt.Errorf("insert return event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	record.Version = next
	return nil
}

// updateWithLock writes record if the stored version equals record.Version
// and returns the new version. The line set is replaced.
func (r *GormUsageRecordRepository) updateWithLock(tx *gorm.DB, record *supply.UsageRecord) (int, error) {
	var currentVersion int
	res := tx.Model(&models.UsageRecordModel{}).
		Where("id = ?", record.ID).
		Select("version").
		Scan(&currentVersion)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, shared.NewNotFoundError(usageRecordResource, record.ID.String())
	}
	if currentVersion != record.Version {
		return 0, shared.NewConflictError(usageRecordResource, record.ID.String(), record.Version)
	}

	next := currentVersion + 1
	m := models.UsageRecordModelFromDomain(record)
	result := tx.Model(&models.UsageRecordModel{}).
		Where("id = ? AND version = ?", record.ID, currentVersion).
		Updates(map[string]interface{}{
			"purpose":        m.Purpose,
			"subtotal":       m.Subtotal,
			"tax":            m.Tax,
			"total":          m.Total,
			"currency":       m.Currency,
			"billing_status": m.BillingStatus,
			"voided":         m.Voided,
			"voided_at":      m.VoidedAt,
			"voided_by":      m.VoidedBy,
			"void_reason":    m.VoidReason,
			"version":        next,
			"updated_at":     m.UpdatedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, shared.NewConflictError(usageRecordResource, record.ID.String(), record.Version)
	}

	if err := tx.Where("usage_record_id = ?", record.ID).Delete(&models.UsageLineEntryModel{}).Error; err != nil {
		return 0, fmt.Errorf("delete usage lines: %w", err)
	}
	if len(m.Lines) > 0 {
		if err := tx.Create(&m.Lines).Error; err != nil {
			return 0, fmt.Errorf("insert usage lines: %w", err)
		}
	}
	return next, nil
}

type usageTotalRow struct {
	SupplyCode       string
	QuantityUsed     int64
	QuantityReturned int64
}

// UsageTotals aggregates non-voided line quantities by supply code for records
// whose usage time falls in window. On PostgreSQL the read runs in a
// repeatable-read, read-only transaction.
func (r *GormUsageRecordRepository) UsageTotals(ctx context.Context, window supply.Window, filter supply.ReconciliationFilter) ([]supply.UsageTotal, error) {
	var rows []usageTotalRow
	read := func(tx *gorm.DB) error {
		query := tx.Table("usage_line_entries AS l").
			Select("l.supply_code AS supply_code, SUM(l.quantity_used) AS quantity_used, SUM(l.quantity_returned) AS quantity_returned").
			Joins("JOIN usage_records AS r ON r.id = l.usage_record_id").
			Where("r.voided = ?", false).
			Where("r.usage_datetime >= ? AND r.usage_datetime < ?", window.Start, window.End)
		if filter.DepartmentCode != "" {
			query = query.Where("UPPER(r.department_code) = ?", strings.ToUpper(filter.DepartmentCode))
		}
		if len(filter.SupplyCodes) > 0 {
			query = query.Where("l.supply_code IN ?", filter.SupplyCodes)
		}
		return query.Group("l.supply_code").Order("l.supply_code ASC").Scan(&rows).Error
	}

	db := r.db.WithContext(ctx)
	var err error
	if isPostgres(db) {
		err = db.Transaction(read, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	} else {
		err = read(db)
	}
	if err != nil {
		return nil, translateTimeout(DependencyLedger, err)
	}

	totals := make([]supply.UsageTotal, len(rows))
	for i, row := range rows {
		totals[i] = supply.UsageTotal{
			SupplyCode:       row.SupplyCode,
			QuantityUsed:     int(row.QuantityUsed),
			QuantityReturned: int(row.QuantityReturned),
		}
	}
	return totals, nil
}

// applyFilter applies the usage record filter keys
func (r *GormUsageRecordRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	f := filter.Filters
	if v, ok := f[supply.FilterPatientHN].(string); ok && v != "" {
		query = query.Where("patient_hn = ?", v)
	}
	if v, ok := f[supply.FilterDepartmentCode].(string); ok && v != "" {
		query = query.Where("UPPER(department_code) = ?", strings.ToUpper(v))
	}
	if v, ok := f[supply.FilterBillingStatus].(string); ok && v != "" {
		query = query.Where("billing_status = ?", v)
	}
	if v, ok := f[supply.FilterUsageType].(string); ok && v != "" {
		query = query.Where("usage_type = ?", v)
	}
	if v, ok := f[supply.FilterDateFrom].(time.Time); ok && !v.IsZero() {
		query = query.Where("usage_datetime >= ?", v)
	}
	if v, ok := f[supply.FilterDateTo].(time.Time); ok && !v.IsZero() {
		query = query.Where("usage_datetime < ?", v)
	}
	if includeVoided, _ := f[supply.FilterIncludeVoided].(bool); !includeVoided {
		query = query.Where("voided = ?", false)
	}
	return query
}

var _ supply.UsageRecordRepository = (*GormUsageRecordRepository)(nil)
