package supply

import (
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/shopspring/decimal"
)

// LineRequest is one supply line of a submission or amendment. A non-nil
// UnitPriceOverride replaces the catalog price for this line.
type LineRequest struct {
	SupplyCode        string           `json:"supply_code"`
	QuantityUsed      int              `json:"quantity_used"`
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
	ExpiryDate        *time.Time       `json:"expiry_date,omitempty"`
}

func (r LineRequest) toDraft() supply.LineDraft {
	price := supply.CatalogPrice()
	if r.UnitPriceOverride != nil {
		price = supply.OverridePrice(*r.UnitPriceOverride)
	}
	return supply.LineDraft{
		SupplyCode:   r.SupplyCode,
		QuantityUsed: r.QuantityUsed,
		Price:        price,
		ExpiryDate:   r.ExpiryDate,
	}
}

func toLineDrafts(lines []LineRequest) []supply.LineDraft {
	drafts := make([]supply.LineDraft, len(lines))
	for i, l := range lines {
		drafts[i] = l.toDraft()
	}
	return drafts
}

// SubmitUsageRequest records supplies used for one patient encounter
type SubmitUsageRequest struct {
	PatientHN        string        `json:"patient_hn"`
	PatientNameTH    string        `json:"patient_name_th"`
	PatientNameEN    string        `json:"patient_name_en"`
	UsageDateTime    time.Time     `json:"usage_datetime"`
	UsageType        string        `json:"usage_type"`
	Purpose          string        `json:"purpose"`
	DepartmentCode   string        `json:"department_code"`
	RecordedByUserID string        `json:"recorded_by_user_id"`
	Supplies         []LineRequest `json:"supplies"`
}

// ToDraft converts the request to the domain draft
func (r SubmitUsageRequest) ToDraft() supply.UsageDraft {
	return supply.UsageDraft{
		PatientHN:        r.PatientHN,
		PatientNameTH:    r.PatientNameTH,
		PatientNameEN:    r.PatientNameEN,
		UsageDateTime:    r.UsageDateTime,
		UsageType:        r.UsageType,
		Purpose:          r.Purpose,
		DepartmentCode:   r.DepartmentCode,
		RecordedByUserID: r.RecordedByUserID,
		Lines:            toLineDrafts(r.Supplies),
	}
}

// AmendUsageRequest replaces the line set of a record. ExpectedVersion 0
// skips the caller-side version check; the write is still version guarded.
type AmendUsageRequest struct {
	ExpectedVersion int           `json:"expected_version"`
	Supplies        []LineRequest `json:"supplies"`
}

// TransitionBillingRequest moves the billing status forward
type TransitionBillingRequest struct {
	Status string `json:"status" binding:"required"`
}

// VoidUsageRequest soft-deletes a record
type VoidUsageRequest struct {
	Reason string `json:"reason"`
}

// RecordReturnRequest returns a quantity of one line back to stock
type RecordReturnRequest struct {
	SupplyCode string `json:"supply_code"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
	Note       string `json:"note"`
}

// UsageListFilter is the query of the usage record list
type UsageListFilter struct {
	PatientHN      string     `form:"patient_hn"`
	DepartmentCode string     `form:"department_code"`
	BillingStatus  string     `form:"billing_status"`
	UsageType      string     `form:"usage_type"`
	DateFrom       *time.Time `form:"date_from" time_format:"2006-01-02T15:04:05Z07:00"`
	DateTo         *time.Time `form:"date_to" time_format:"2006-01-02T15:04:05Z07:00"`
	IncludeVoided  bool       `form:"include_voided"`
	Page           int        `form:"page"`
	Limit          int        `form:"limit"`
	OrderBy        string     `form:"order_by"`
	OrderDir       string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts to a repository filter
func (f UsageListFilter) ToFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.Limit,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if f.PatientHN != "" {
		filter.Filters[supply.FilterPatientHN] = f.PatientHN
	}
	if f.DepartmentCode != "" {
		filter.Filters[supply.FilterDepartmentCode] = f.DepartmentCode
	}
	if f.BillingStatus != "" {
		filter.Filters[supply.FilterBillingStatus] = f.BillingStatus
	}
	if f.UsageType != "" {
		filter.Filters[supply.FilterUsageType] = f.UsageType
	}
	if f.DateFrom != nil {
		filter.Filters[supply.FilterDateFrom] = *f.DateFrom
	}
	if f.DateTo != nil {
		filter.Filters[supply.FilterDateTo] = *f.DateTo
	}
	if f.IncludeVoided {
		filter.Filters[supply.FilterIncludeVoided] = true
	}
	return filter.Normalize()
}

// ReturnHistoryFilter is the query of the return history
type ReturnHistoryFilter struct {
	UsageRecordID  string     `form:"usage_record_id"`
	DepartmentCode string     `form:"department_code"`
	PatientHN      string     `form:"patient_hn"`
	Reason         string     `form:"reason"`
	From           *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To             *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page           int        `form:"page"`
	Limit          int        `form:"limit"`
	OrderDir       string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts to a repository filter, validating the record id
func (f ReturnHistoryFilter) ToFilter() (shared.Filter, error) {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.Limit,
		OrderDir: f.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	verr := shared.NewValidationError()
	if f.UsageRecordID != "" {
		id, err := uuid.Parse(f.UsageRecordID)
		if err != nil {
			verr.Add("usage_record_id", "must be a UUID")
		} else {
			filter.Filters[supply.ReturnFilterUsageRecordID] = id
		}
	}
	if f.Reason != "" {
		if !supply.ReturnReason(f.Reason).IsValid() {
			verr.Add("reason", "must be one of unused, damaged, expired, wrong_item, other")
		} else {
			filter.Filters[supply.ReturnFilterReason] = f.Reason
		}
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		verr.Add("to", "must be after from")
	}
	if err := verr.ErrOrNil(); err != nil {
		return shared.Filter{}, err
	}
	if f.DepartmentCode != "" {
		filter.Filters[supply.ReturnFilterDepartmentCode] = f.DepartmentCode
	}
	if f.PatientHN != "" {
		filter.Filters[supply.ReturnFilterPatientHN] = f.PatientHN
	}
	if f.From != nil {
		filter.Filters[supply.ReturnFilterFrom] = *f.From
	}
	if f.To != nil {
		filter.Filters[supply.ReturnFilterTo] = *f.To
	}
	return filter.Normalize(), nil
}

// ReconciliationQuery is the input of a comparison
type ReconciliationQuery struct {
	WindowStart    time.Time `form:"window_start" time_format:"2006-01-02T15:04:05Z07:00"`
	WindowEnd      time.Time `form:"window_end" time_format:"2006-01-02T15:04:05Z07:00"`
	DepartmentCode string    `form:"department_code"`
	SupplyCodes    []string  `form:"supply_code"`
}

// CatalogListFilter is the query of the catalog list
type CatalogListFilter struct {
	Category   string `form:"category"`
	Search     string `form:"search"`
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// UsageLineResponse is one line of a usage record
type UsageLineResponse struct {
	LineNo           int             `json:"line_no"`
	SupplyCode       string          `json:"supply_code"`
	SupplyName       string          `json:"supply_name"`
	Unit             string          `json:"unit"`
	QuantityUsed     int             `json:"quantity_used"`
	QuantityReturned int             `json:"quantity_returned"`
	MaxReturnable    int             `json:"max_returnable"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	PriceSource      string          `json:"price_source"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
}

// BillingResponse is the billing block of a usage record
type BillingResponse struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

// UsageRecordResponse represents a usage record in API responses
type UsageRecordResponse struct {
	ID               uuid.UUID           `json:"id"`
	PatientHN        string              `json:"patient_hn"`
	PatientNameTH    string              `json:"patient_name_th,omitempty"`
	PatientNameEN    string              `json:"patient_name_en,omitempty"`
	UsageDateTime    time.Time           `json:"usage_datetime"`
	UsageType        string              `json:"usage_type"`
	Purpose          string              `json:"purpose,omitempty"`
	DepartmentCode   string              `json:"department_code"`
	RecordedByUserID string              `json:"recorded_by_user_id"`
	Supplies         []UsageLineResponse `json:"supplies"`
	Billing          BillingResponse     `json:"billing"`
	Voided           bool                `json:"voided"`
	VoidedAt         *time.Time          `json:"voided_at,omitempty"`
	VoidedBy         string              `json:"voided_by,omitempty"`
	VoidReason       string              `json:"void_reason,omitempty"`
	Version          int                 `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ToUsageRecordResponse converts a domain record
func ToUsageRecordResponse(r *supply.UsageRecord) UsageRecordResponse {
	lines := make([]UsageLineResponse, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = UsageLineResponse{
			LineNo:           l.LineNo,
			SupplyCode:       l.SupplyCode,
			SupplyName:       l.SupplyName,
			Unit:             l.Unit,
			QuantityUsed:     l.QuantityUsed,
			QuantityReturned: l.QuantityReturned,
			MaxReturnable:    l.MaxReturnable(),
			UnitPrice:        l.UnitPrice,
			PriceSource:      string(l.PriceSource),
			TotalPrice:       l.TotalPrice,
			ExpiryDate:       l.ExpiryDate,
		}
	}
	return UsageRecordResponse{
		ID:               r.ID,
		PatientHN:        r.PatientHN,
		PatientNameTH:    r.PatientNameTH,
		PatientNameEN:    r.PatientNameEN,
		UsageDateTime:    r.UsageDateTime,
		UsageType:        r.UsageType,
		Purpose:          r.Purpose,
		DepartmentCode:   r.DepartmentCode,
		RecordedByUserID: r.RecordedByUserID,
		Supplies:         lines,
		Billing: BillingResponse{
			Subtotal: r.Billing.Subtotal,
			Tax:      r.Billing.Tax,
			Total:    r.Billing.Total,
			Currency: r.Billing.Currency,
			Status:   r.Billing.Status.String(),
		},
		Voided:     r.Voided,
		VoidedAt:   r.VoidedAt,
		VoidedBy:   r.VoidedBy,
		VoidReason: r.VoidReason,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// ReturnEventResponse represents a return event in API responses
type ReturnEventResponse struct {
	ID               uuid.UUID `json:"id"`
	UsageRecordID    uuid.UUID `json:"usage_record_id"`
	SupplyCode       string    `json:"supply_code"`
	Quantity         int       `json:"quantity"`
	Reason           string    `json:"reason"`
	Note             string    `json:"note,omitempty"`
	ReturnedByUserID string    `json:"returned_by_user_id"`
	ReturnedAt       time.Time `json:"returned_at"`
}

// ToReturnEventResponse converts a domain return event
func ToReturnEventResponse(e *supply.ReturnEvent) ReturnEventResponse {
	return ReturnEventResponse{
		ID:               e.ID,
		UsageRecordID:    e.UsageRecordID,
		SupplyCode:       e.SupplyCode,
		Quantity:         e.Quantity,
		Reason:           string(e.Reason),
		Note:             e.Note,
		ReturnedByUserID: e.ReturnedByUserID,
		ReturnedAt:       e.ReturnedAt,
	}
}

// RecordReturnResponse is the outcome of a return: the event and the
// record as it stands afterwards
type RecordReturnResponse struct {
	Return      ReturnEventResponse `json:"return"`
	UsageRecord UsageRecordResponse `json:"usage_record"`
}

// ReconciliationResultResponse is one row of a comparison
type ReconciliationResultResponse struct {
	SupplyCode     string    `json:"supply_code"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	TotalDispensed int       `json:"total_dispensed"`
	TotalUsed      int       `json:"total_used"`
	TotalReturned  int       `json:"total_returned"`
	Difference     int       `json:"difference"`
	Status         string    `json:"status"`
}

// ReconciliationReportResponse is the outcome of a comparison
type ReconciliationReportResponse struct {
	WindowStart       time.Time                      `json:"window_start"`
	WindowEnd         time.Time                      `json:"window_end"`
	Complete          bool                           `json:"complete"`
	IncompleteSources []string                       `json:"incomplete_sources"`
	Discrepancies     int                            `json:"discrepancies"`
	Results           []ReconciliationResultResponse `json:"results"`
	GeneratedAt       time.Time                      `json:"generated_at"`
}

// ToReconciliationReportResponse converts a domain report
func ToReconciliationReportResponse(r *supply.ReconciliationReport) ReconciliationReportResponse {
	results := make([]ReconciliationResultResponse, len(r.Results))
	for i, res := range r.Results {
		results[i] = ReconciliationResultResponse{
			SupplyCode:     res.SupplyCode,
			WindowStart:    res.WindowStart,
			WindowEnd:      res.WindowEnd,
			TotalDispensed: res.TotalDispensed,
			TotalUsed:      res.TotalUsed,
			TotalReturned:  res.TotalReturned,
			Difference:     res.Difference,
			Status:         string(res.Status),
		}
	}
	sources := r.IncompleteSources
	if sources == nil {
		sources = []string{}
	}
	return ReconciliationReportResponse{
		WindowStart:       r.Window.Start,
		WindowEnd:         r.Window.End,
		Complete:          r.Complete,
		IncompleteSources: sources,
		Discrepancies:     r.Discrepancies(),
		Results:           results,
		GeneratedAt:       r.GeneratedAt,
	}
}

// CatalogEntryResponse represents a catalog entry in API responses
type CatalogEntryResponse struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
}

// ToCatalogEntryResponse converts a domain catalog entry
func ToCatalogEntryResponse(e *supply.CatalogEntry) CatalogEntryResponse {
	return CatalogEntryResponse{
		Code:      e.Code,
		Name:      e.Name,
		Category:  e.Category,
		Unit:      e.Unit,
		UnitPrice: e.UnitPrice,
		Active:    e.Active,
	}
}
