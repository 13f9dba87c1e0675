package supply

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
)

// ReturnReason is why supplies went back to stock
type ReturnReason string

const (
	ReturnReasonUnused    ReturnReason = "unused"
	ReturnReasonDamaged   ReturnReason = "damaged"
	ReturnReasonExpired   ReturnReason = "expired"
	ReturnReasonWrongItem ReturnReason = "wrong_item"
	ReturnReasonOther     ReturnReason = "other"
)

// IsValid checks if the reason is known
func (r ReturnReason) IsValid() bool {
	switch r {
	case ReturnReasonUnused, ReturnReasonDamaged, ReturnReasonExpired, ReturnReasonWrongItem, ReturnReasonOther:
		return true
	}
	return false
}

// ReturnEvent is an append-only audit entry of one return
type ReturnEvent struct {
	ID               uuid.UUID
	UsageRecordID    uuid.UUID
	SupplyCode       string
	Quantity         int
	Reason           ReturnReason
	ReturnedByUserID string
	ReturnedAt       time.Time
	Note             string
}

// NewReturnEvent creates the audit entry for req against recordID
func NewReturnEvent(recordID uuid.UUID, req ReturnRequest) *ReturnEvent {
	return &ReturnEvent{
		ID:               uuid.New(),
		UsageRecordID:    recordID,
		SupplyCode:       req.SupplyCode,
		Quantity:         req.Quantity,
		Reason:           req.Reason,
		ReturnedByUserID: req.Actor,
		ReturnedAt:       time.Now(),
		Note:             req.Note,
	}
}

// validate checks fields unrelated to line quantities
func (req ReturnRequest) validate() *shared.ValidationError {
	verr := shared.NewValidationError()
	if strings.TrimSpace(req.SupplyCode) == "" {
		verr.Add("supply_code", "is required")
	}
	if !req.Reason.IsValid() {
		verr.Add("reason", "must be one of unused, damaged, expired, wrong_item, other")
	}
	if req.Reason == ReturnReasonOther && strings.TrimSpace(req.Note) == "" {
		verr.Add("note", "is required when reason is other")
	}
	if strings.TrimSpace(req.Actor) == "" {
		verr.Add("returned_by_user_id", "is required")
	}
	return verr
}

// Return history filter keys
const (
	ReturnFilterUsageRecordID  = "usage_record_id"
	ReturnFilterDepartmentCode = "department_code"
	ReturnFilterPatientHN      = "patient_hn"
	ReturnFilterReason         = "reason"
	ReturnFilterFrom           = "returned_from"
	ReturnFilterTo             = "returned_to"
)

// ReturnEventRepository reads the return audit trail. Events are written by
// UsageRecordRepository.SaveWithReturn together with the record.
type ReturnEventRepository interface {
	FindAll(ctx context.Context, filter shared.Filter) ([]ReturnEvent, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	FindByUsageRecord(ctx context.Context, recordID uuid.UUID) ([]ReturnEvent, error)
}
