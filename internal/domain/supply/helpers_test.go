package supply

import (
	"context"
	"testing"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mapCatalog map[string]CatalogEntry

func (m mapCatalog) Resolve(_ context.Context, code string) (*CatalogEntry, error) {
	e, ok := m[code]
	if !ok {
		return nil, shared.NewNotFoundError("supply", code)
	}
	return &e, nil
}

func testCatalog() mapCatalog {
	return mapCatalog{
		"SUP-001": {Code: "SUP-001", Name: "Gauze 4x4", Category: "dressing", Unit: "pack", UnitPrice: decimal.RequireFromString("5.00"), Active: true},
		"SUP-002": {Code: "SUP-002", Name: "Syringe 5ml", Category: "injection", Unit: "piece", UnitPrice: decimal.RequireFromString("12.50"), Active: true},
		"SUP-OLD": {Code: "SUP-OLD", Name: "Retired", Category: "misc", Unit: "piece", UnitPrice: decimal.RequireFromString("1.00"), Active: false},
	}
}

func testDraft(lines ...LineDraft) UsageDraft {
	return UsageDraft{
		PatientHN:        "HN0001",
		PatientNameTH:    "สมชาย ใจดี",
		PatientNameEN:    "Somchai Jaidee",
		UsageDateTime:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		UsageType:        "OPD",
		Purpose:          "wound dressing",
		DepartmentCode:   "ER",
		RecordedByUserID: "nurse-01",
		Lines:            lines,
	}
}

func zeroTaxCalculator(t *testing.T) *BillingCalculator {
	t.Helper()
	calc, err := NewBillingCalculator(DefaultTaxPolicy())
	require.NoError(t, err)
	return calc
}

func newTestRecord(t *testing.T, lines ...LineDraft) *UsageRecord {
	t.Helper()
	draft := testDraft(lines...)
	built, err := BuildLines(context.Background(), testCatalog(), draft.Lines)
	require.NoError(t, err)
	rec, err := NewUsageRecord(draft, built, zeroTaxCalculator(t))
	require.NoError(t, err)
	return rec
}
