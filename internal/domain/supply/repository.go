package supply

import (
	"context"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
)

// Usage record filter keys
const (
	FilterPatientHN      = "patient_hn"
	FilterDepartmentCode = "department_code"
	FilterBillingStatus  = "billing_status"
	FilterUsageType      = "usage_type"
	FilterDateFrom       = "date_from"
	FilterDateTo         = "date_to"
	FilterIncludeVoided  = "include_voided"
)

// UsageRecordRepository persists usage records together with their lines.
// Every write is a single transaction covering the record and all its lines.
type UsageRecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*UsageRecord, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]UsageRecord, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save inserts a new record with its lines
	Save(ctx context.Context, record *UsageRecord) error
	// SaveWithLock updates an existing record if its stored version still
	// equals record.Version, replacing its lines. A mismatch yields
	// *shared.ConflictError. On success record.Version is advanced.
	SaveWithLock(ctx context.Context, record *UsageRecord) error
	// SaveWithReturn behaves like SaveWithLock and appends ev in the same
	// transaction
	SaveWithReturn(ctx context.Context, record *UsageRecord, ev *ReturnEvent) error

	// UsageTotals aggregates non-voided line quantities by supply code for
	// records whose usage time falls in window. It reads a consistent snapshot.
	UsageTotals(ctx context.Context, window Window, filter ReconciliationFilter) ([]UsageTotal, error)
}
