package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReturnEventRepository reads the return audit trail
type GormReturnEventRepository struct {
	db *gorm.DB
}

// NewGormReturnEventRepository creates a new GormReturnEventRepository
func NewGormReturnEventRepository(db *gorm.DB) *GormReturnEventRepository {
	return &GormReturnEventRepository{db: db}
}

// FindAll returns one page of return events, newest first by default
func (r *GormReturnEventRepository) FindAll(ctx context.Context, filter shared.Filter) ([]supply.ReturnEvent, error) {
	filter = filter.Normalize()
	var rows []models.ReturnEventModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ReturnEventModel{}), filter).
		Order(returnEventSort.clause(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toReturnEvents(rows), nil
}

// Count counts return events matching filter
func (r *GormReturnEventRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ReturnEventModel{}), filter.Normalize())
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByUsageRecord returns every return event of one record in the order recorded
func (r *GormReturnEventRepository) FindByUsageRecord(ctx context.Context, recordID uuid.UUID) ([]supply.ReturnEvent, error) {
	var rows []models.ReturnEventModel
	if err := r.db.WithContext(ctx).
		Where("usage_record_id = ?", recordID).
		Order("returned_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toReturnEvents(rows), nil
}

func (r *GormReturnEventRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	f := filter.Filters
	if v, ok := f[supply.ReturnFilterUsageRecordID].(uuid.UUID); ok && v != uuid.Nil {
		query = query.Where("return_events.usage_record_id = ?", v)
	}
	if v, ok := f[supply.ReturnFilterReason].(string); ok && v != "" {
		query = query.Where("return_events.reason = ?", v)
	}
	if v, ok := f[supply.ReturnFilterFrom].(time.Time); ok && !v.IsZero() {
		query = query.Where("return_events.returned_at >= ?", v)
	}
	if v, ok := f[supply.ReturnFilterTo].(time.Time); ok && !v.IsZero() {
		query = query.Where("return_events.returned_at < ?", v)
	}

	dept, _ := f[supply.ReturnFilterDepartmentCode].(string)
	hn, _ := f[supply.ReturnFilterPatientHN].(string)
	if dept != "" || hn != "" {
		query = query.Joins("JOIN usage_records ON usage_records.id = return_events.usage_record_id")
		if dept != "" {
			query = query.Where("UPPER(usage_records.department_code) = ?", strings.ToUpper(dept))
		}
		if hn != "" {
			query = query.Where("usage_records.patient_hn = ?", hn)
		}
	}
	return query
}

func toReturnEvents(rows []models.ReturnEventModel) []supply.ReturnEvent {
	events := make([]supply.ReturnEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events
}

var _ supply.ReturnEventRepository = (*GormReturnEventRepository)(nil)
