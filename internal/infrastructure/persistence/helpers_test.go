package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory SQLite database with the full schema. The
// pool is pinned to one connection so every query sees the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB) *GormCatalogRepository {
	t.Helper()
	repo := NewGormCatalogRepository(db)
	ctx := context.Background()
	for _, e := range []struct {
		code, name, unit, price string
	}{
		{"SUP-001", "Gauze 4x4", "pack", "5.00"},
		{"SUP-002", "Syringe 5ml", "piece", "12.50"},
		{"SUP-003", "IV set", "set", "45.00"},
	} {
		entry, err := supply.NewCatalogEntry(e.code, e.name, "general", e.unit, decimal.RequireFromString(e.price))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, entry))
	}
	return repo
}

func testCalculator(t *testing.T) *supply.BillingCalculator {
	t.Helper()
	calc, err := supply.NewBillingCalculator(supply.DefaultTaxPolicy())
	require.NoError(t, err)
	return calc
}

var baseUsageTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordOpt func(*supply.UsageDraft)

func withDepartment(dept string) recordOpt {
	return func(d *supply.UsageDraft) { d.DepartmentCode = dept }
}

func withPatient(hn string) recordOpt {
	return func(d *supply.UsageDraft) { d.PatientHN = hn }
}

func withUsageTime(t time.Time) recordOpt {
	return func(d *supply.UsageDraft) { d.UsageDateTime = t }
}

func buildRecord(t *testing.T, catalog supply.CatalogLookup, lines []supply.LineDraft, opts ...recordOpt) *supply.UsageRecord {
	t.Helper()
	draft := supply.UsageDraft{
		PatientHN:        "HN0001",
		PatientNameEN:    "Somchai Jaidee",
		UsageDateTime:    baseUsageTime,
		UsageType:        "OPD",
		DepartmentCode:   "ER",
		RecordedByUserID: "nurse-01",
		Lines:            lines,
	}
	for _, opt := range opts {
		opt(&draft)
	}
	built, err := supply.BuildLines(context.Background(), catalog, draft.Lines)
	require.NoError(t, err)
	rec, err := supply.NewUsageRecord(draft, built, testCalculator(t))
	require.NoError(t, err)
	return rec
}

func line(code string, qty int) supply.LineDraft {
	return supply.LineDraft{SupplyCode: code, QuantityUsed: qty}
}

func sharedFilter(filters map[string]interface{}) shared.Filter {
	f := shared.DefaultFilter()
	for k, v := range filters {
		f.Filters[k] = v
	}
	return f
}
