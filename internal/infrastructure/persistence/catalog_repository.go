package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCatalogRepository implements supply.CatalogRepository on table supply_catalog
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// Resolve finds the catalog entry for code, active or not
func (r *GormCatalogRepository) Resolve(ctx context.Context, code string) (*supply.CatalogEntry, error) {
	var m models.SupplyCatalogModel
	if err := r.db.WithContext(ctx).First(&m, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("supply", code)
		}
		return nil, translateTimeout(DependencyCatalog, err)
	}
	return m.ToDomain(), nil
}

// FindAll returns one page of catalog entries ordered by code by default
func (r *GormCatalogRepository) FindAll(ctx context.Context, filter shared.Filter) ([]supply.CatalogEntry, error) {
	filter = filter.Normalize()
	var rows []models.SupplyCatalogModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SupplyCatalogModel{}), filter).
		Order(catalogSort.clause(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateTimeout(DependencyCatalog, err)
	}
	entries := make([]supply.CatalogEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}

// Count counts catalog entries matching filter
func (r *GormCatalogRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SupplyCatalogModel{}), filter.Normalize())
	if err := query.Count(&count).Error; err != nil {
		return 0, translateTimeout(DependencyCatalog, err)
	}
	return count, nil
}

// Save inserts or updates a catalog entry keyed by code
func (r *GormCatalogRepository) Save(ctx context.Context, entry *supply.CatalogEntry) error {
	m := models.SupplyCatalogModelFromDomain(entry)
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "unit", "unit_price", "active", "updated_at"}),
	}).Create(m).Error
}

func (r *GormCatalogRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	f := filter.Filters
	if v, ok := f[supply.CatalogFilterCategory].(string); ok && v != "" {
		query = query.Where("category = ?", v)
	}
	if v, ok := f[supply.CatalogFilterActive].(bool); ok {
		query = query.Where("active = ?", v)
	}
	if v, ok := f[supply.CatalogFilterSearch].(string); ok && strings.TrimSpace(v) != "" {
		like := "%" + strings.ToLower(strings.TrimSpace(v)) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	return query
}

var _ supply.CatalogRepository = (*GormCatalogRepository)(nil)
