package supply

import (
	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants for UsageRecord
const (
	EventTypeUsageSubmitted            = "UsageSubmitted"
	EventTypeUsageAmended              = "UsageAmended"
	EventTypeReturnRecorded            = "ReturnRecorded"
	EventTypeUsageBillingStatusChanged = "UsageBillingStatusChanged"
	EventTypeUsageVoided               = "UsageVoided"
)

// UsageSubmittedEvent is raised when a usage record is first stored
type UsageSubmittedEvent struct {
	shared.EventMeta
	RecordID       uuid.UUID       `json:"record_id"`
	PatientHN      string          `json:"patient_hn"`
	DepartmentCode string          `json:"department_code"`
	RecordedBy     string          `json:"recorded_by"`
	LineCount      int             `json:"line_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
}

// NewUsageSubmittedEvent creates a new UsageSubmittedEvent
func NewUsageSubmittedEvent(r *UsageRecord) *UsageSubmittedEvent {
	return &UsageSubmittedEvent{
		EventMeta:      shared.NewEventMeta(EventTypeUsageSubmitted, r.ID),
		RecordID:       r.ID,
		PatientHN:      r.PatientHN,
		DepartmentCode: r.DepartmentCode,
		RecordedBy:     r.RecordedByUserID,
		LineCount:      len(r.Lines),
		Subtotal:       r.Billing.Subtotal,
		Total:          r.Billing.Total,
	}
}

// UsageAmendedEvent is raised when the line set of a record is replaced
type UsageAmendedEvent struct {
	shared.EventMeta
	RecordID         uuid.UUID       `json:"record_id"`
	DepartmentCode   string          `json:"department_code"`
	AmendedBy        string          `json:"amended_by"`
	LineCount        int             `json:"line_count"`
	PreviousSubtotal decimal.Decimal `json:"previous_subtotal"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Total            decimal.Decimal `json:"total"`
}

// NewUsageAmendedEvent creates a new UsageAmendedEvent
func NewUsageAmendedEvent(r *UsageRecord, previousSubtotal decimal.Decimal, actor string) *UsageAmendedEvent {
	return &UsageAmendedEvent{
		EventMeta:        shared.NewEventMeta(EventTypeUsageAmended, r.ID),
		RecordID:         r.ID,
		DepartmentCode:   r.DepartmentCode,
		AmendedBy:        actor,
		LineCount:        len(r.Lines),
		PreviousSubtotal: previousSubtotal,
		Subtotal:         r.Billing.Subtotal,
		Total:            r.Billing.Total,
	}
}

// ReturnRecordedEvent is raised when a return is recorded against a line
type ReturnRecordedEvent struct {
	shared.EventMeta
	RecordID       uuid.UUID       `json:"record_id"`
	ReturnID       uuid.UUID       `json:"return_id"`
	SupplyCode     string          `json:"supply_code"`
	Quantity       int             `json:"quantity"`
	Reason         ReturnReason    `json:"reason"`
	DepartmentCode string          `json:"department_code"`
	ReturnedBy     string          `json:"returned_by"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

// NewReturnRecordedEvent creates a new ReturnRecordedEvent
func NewReturnRecordedEvent(r *UsageRecord, ev *ReturnEvent) *ReturnRecordedEvent {
	return &ReturnRecordedEvent{
		EventMeta:      shared.NewEventMeta(EventTypeReturnRecorded, r.ID),
		RecordID:       r.ID,
		ReturnID:       ev.ID,
		SupplyCode:     ev.SupplyCode,
		Quantity:       ev.Quantity,
		Reason:         ev.Reason,
		DepartmentCode: r.DepartmentCode,
		ReturnedBy:     ev.ReturnedByUserID,
		Subtotal:       r.Billing.Subtotal,
	}
}

// UsageBillingStatusChangedEvent is raised on every billing status move
type UsageBillingStatusChangedEvent struct {
	shared.EventMeta
	RecordID  uuid.UUID     `json:"record_id"`
	From      BillingStatus `json:"from"`
	To        BillingStatus `json:"to"`
	ChangedBy string        `json:"changed_by"`
}

// NewBillingStatusChangedEvent creates a new UsageBillingStatusChangedEvent
func NewBillingStatusChangedEvent(r *UsageRecord, from BillingStatus, actor string) *UsageBillingStatusChangedEvent {
	return &UsageBillingStatusChangedEvent{
		EventMeta: shared.NewEventMeta(EventTypeUsageBillingStatusChanged, r.ID),
		RecordID:  r.ID,
		From:      from,
		To:        r.Billing.Status,
		ChangedBy: actor,
	}
}

// UsageVoidedEvent is raised when a record is soft-deleted
type UsageVoidedEvent struct {
	shared.EventMeta
	RecordID uuid.UUID `json:"record_id"`
	Reason   string    `json:"reason"`
	VoidedBy string    `json:"voided_by"`
}

// NewUsageVoidedEvent creates a new UsageVoidedEvent
func NewUsageVoidedEvent(r *UsageRecord) *UsageVoidedEvent {
	return &UsageVoidedEvent{
		EventMeta: shared.NewEventMeta(EventTypeUsageVoided, r.ID),
		RecordID:  r.ID,
		Reason:    r.VoidReason,
		VoidedBy:  r.VoidedBy,
	}
}
