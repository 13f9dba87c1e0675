package supply

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UsageRecord is the aggregate root for one patient/encounter usage submission
type UsageRecord struct {
	shared.Aggregate
	PatientHN        string
	PatientNameTH    string
	PatientNameEN    string
	UsageDateTime    time.Time
	UsageType        string
	Purpose          string
	DepartmentCode   string
	RecordedByUserID string
	Lines            []UsageLineEntry
	Billing          Billing
	Voided           bool
	VoidedAt         *time.Time
	VoidedBy         string
	VoidReason       string
}

// NewUsageRecord creates a draft-billed usage record from a validated draft
// and its priced lines
func NewUsageRecord(draft UsageDraft, lines []UsageLineEntry, calc *BillingCalculator) (*UsageRecord, error) {
	if verr := draft.Validate(); verr.HasErrors() {
		return nil, verr
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError(shared.FieldError{Field: "supplies", Message: "at least one supply line is required"})
	}

	r := &UsageRecord{
		Aggregate:        shared.NewAggregate(),
		PatientHN:        strings.TrimSpace(draft.PatientHN),
		PatientNameTH:    draft.PatientNameTH,
		PatientNameEN:    draft.PatientNameEN,
		UsageDateTime:    draft.UsageDateTime,
		UsageType:        draft.UsageType,
		Purpose:          draft.Purpose,
		DepartmentCode:   draft.DepartmentCode,
		RecordedByUserID: draft.RecordedByUserID,
		Lines:            renumber(lines),
		Billing: Billing{
			Currency: calc.Currency(),
			Status:   BillingStatusDraft,
		},
	}
	r.applyBilling(calc)
	r.RecordEvent(NewUsageSubmittedEvent(r))
	return r, nil
}

// FindLine returns the line for supplyCode
func (r *UsageRecord) FindLine(supplyCode string) (*UsageLineEntry, bool) {
	for i := range r.Lines {
		if r.Lines[i].SupplyCode == supplyCode {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

// Amend replaces the line set wholesale. Supply codes present in both sets
// keep their returned quantity; a line with returns may not be dropped or
// reduced below what was already returned.
func (r *UsageRecord) Amend(lines []UsageLineEntry, actor string, calc *BillingCalculator) error {
	if err := r.ensureMutable(); err != nil {
		return err
	}
	if len(lines) == 0 {
		return shared.NewValidationError(shared.FieldError{Field: "supplies", Message: "at least one supply line is required"})
	}

	next := renumber(lines)
	for _, old := range r.Lines {
		if old.QuantityReturned == 0 {
			continue
		}
		replaced := false
		for i := range next {
			if next[i].SupplyCode != old.SupplyCode {
				continue
			}
			replaced = true
			if next[i].QuantityUsed < old.QuantityReturned {
				return shared.NewInvalidQuantityError(old.State(), next[i].QuantityUsed,
					"quantity used cannot drop below the quantity already returned")
			}
			next[i].QuantityReturned = old.QuantityReturned
			next[i].recalculate()
		}
		if !replaced {
			return shared.NewInvalidQuantityError(old.State(), 0,
				"a line with recorded returns cannot be removed")
		}
	}

	previousSubtotal := r.Billing.Subtotal
	r.Lines = next
	r.applyBilling(calc)
	r.Touch()
	r.RecordEvent(NewUsageAmendedEvent(r, previousSubtotal, actor))
	return nil
}

// ReturnRequest describes a return against one line of the record
type ReturnRequest struct {
	SupplyCode string
	Quantity   int
	Reason     ReturnReason
	Note       string
	Actor      string
}

// RecordReturn increments the line's returned quantity, re-derives billing
// and returns the audit event to persist alongside the record
func (r *UsageRecord) RecordReturn(req ReturnRequest, calc *BillingCalculator) (*ReturnEvent, error) {
	if err := r.ensureMutable(); err != nil {
		return nil, err
	}
	if verr := req.validate(); verr.HasErrors() {
		return nil, verr
	}
	line, ok := r.FindLine(req.SupplyCode)
	if !ok {
		return nil, shared.NewNotFoundError("usage line", fmt.Sprintf("%s/%s", r.ID, req.SupplyCode))
	}
	if err := line.applyReturn(req.Quantity); err != nil {
		return nil, err
	}

	r.applyBilling(calc)
	r.Touch()

	ev := NewReturnEvent(r.ID, req)
	r.RecordEvent(NewReturnRecordedEvent(r, ev))
	return ev, nil
}

// TransitionBilling moves billing status forward
func (r *UsageRecord) TransitionBilling(target BillingStatus, actor string) error {
	if r.Voided {
		return shared.NewDomainError(shared.CodeInvalidState, "usage record is voided")
	}
	if !target.IsValid() {
		return shared.NewValidationError(shared.FieldError{Field: "status", Message: fmt.Sprintf("unknown billing status %q", target)})
	}
	if !r.Billing.Status.CanTransitionTo(target) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("billing status cannot move from %s to %s", r.Billing.Status, target))
	}
	from := r.Billing.Status
	r.Billing.Status = target
	r.Touch()
	r.RecordEvent(NewBillingStatusChangedEvent(r, from, actor))
	return nil
}

// Void soft-deletes the record. Voided records stay readable for audit.
func (r *UsageRecord) Void(reason, actor string) error {
	if r.Voided {
		return shared.NewDomainError(shared.CodeInvalidState, "usage record is already voided")
	}
	if r.Billing.Status == BillingStatusSettled {
		return shared.NewDomainError(shared.CodeInvalidState, "settled usage records cannot be voided")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError(shared.FieldError{Field: "reason", Message: "is required"})
	}
	now := time.Now()
	r.Voided = true
	r.VoidedAt = &now
	r.VoidedBy = actor
	r.VoidReason = reason
	r.UpdatedAt = now
	r.RecordEvent(NewUsageVoidedEvent(r))
	return nil
}

// CheckInvariants verifies the quantity bounds and the subtotal identity
func (r *UsageRecord) CheckInvariants() error {
	sum := decimal.Zero
	for _, l := range r.Lines {
		if l.QuantityReturned < 0 || l.QuantityReturned > l.QuantityUsed {
			return fmt.Errorf("line %s: returned %d outside [0, %d]", l.SupplyCode, l.QuantityReturned, l.QuantityUsed)
		}
		sum = sum.Add(l.TotalPrice)
	}
	if !sum.Equal(r.Billing.Subtotal) {
		return fmt.Errorf("subtotal %s does not equal sum of lines %s", r.Billing.Subtotal, sum)
	}
	return nil
}

// TotalReturned returns the returned quantity across all lines
func (r *UsageRecord) TotalReturned() int {
	n := 0
	for _, l := range r.Lines {
		n += l.QuantityReturned
	}
	return n
}

func (r *UsageRecord) ensureMutable() error {
	if r.Voided {
		return shared.NewDomainError(shared.CodeInvalidState, "usage record is voided")
	}
	if !r.Billing.Status.AllowsLineChanges() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("usage record lines are locked while billing status is %s", r.Billing.Status))
	}
	return nil
}

func (r *UsageRecord) applyBilling(calc *BillingCalculator) {
	totals := calc.Recompute(r.Lines)
	r.Billing.Subtotal = totals.Subtotal
	r.Billing.Tax = totals.Tax
	r.Billing.Total = totals.Total
	if r.Billing.Currency == "" {
		r.Billing.Currency = calc.Currency()
	}
}

func renumber(lines []UsageLineEntry) []UsageLineEntry {
	out := make([]UsageLineEntry, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].LineNo = i + 1
		out[i].recalculate()
	}
	return out
}

// RecordIDFromString parses a usage record id
func RecordIDFromString(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(shared.FieldError{Field: "id", Message: "must be a UUID"})
	}
	return id, nil
}
