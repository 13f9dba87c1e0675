package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleRecord(id uuid.UUID) *appsupply.UsageRecordResponse {
	return &appsupply.UsageRecordResponse{
		ID:             id,
		PatientHN:      "HN-0001",
		UsageType:      "OPD",
		DepartmentCode: "ER",
		Supplies: []appsupply.UsageLineResponse{{
			LineNo: 1, SupplyCode: "SUP-001", QuantityUsed: 10, MaxReturnable: 10,
			UnitPrice: decimal.NewFromInt(5), TotalPrice: decimal.NewFromInt(50),
		}},
		Billing: appsupply.BillingResponse{Subtotal: decimal.NewFromInt(50), Total: decimal.NewFromInt(50), Currency: "THB", Status: "pending"},
		Version: 1,
	}
}

func TestUsageHandler_Submit(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))
	id := uuid.New()

	body := map[string]any{
		"patient_hn":      "HN-0001",
		"patient_name_en": "Somchai",
		"usage_datetime":  "2026-03-01T09:00:00Z",
		"usage_type":      "OPD",
		"department_code": "ER",
		"supplies":        []map[string]any{{"supply_code": "SUP-001", "quantity_used": 10}},
	}
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(req appsupply.SubmitUsageRequest) bool {
		return req.PatientHN == "HN-0001" &&
			req.RecordedByUserID == "nurse-7" &&
			req.UsageDateTime.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) &&
			len(req.Supplies) == 1 && req.Supplies[0].QuantityUsed == 10
	})).Return(sampleRecord(id), nil)

	w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records", body, "nurse-7")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	rec := decode[appsupply.UsageRecordResponse](t, resp.Data)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "50", rec.Billing.Subtotal.String())
	svc.AssertExpectations(t)
}

func TestUsageHandler_Submit_ValidationListsEveryField(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))

	svc.On("Submit", mock.Anything, mock.Anything).Return(nil, shared.NewValidationError(
		shared.FieldError{Field: "patient_hn", Message: "is required"},
		shared.FieldError{Field: "supplies[0].quantity_used", Message: "must be greater than 0"},
	))

	w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records", map[string]any{"supplies": []any{}}, "nurse-7")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	fields := decode[[]shared.FieldError](t, resp.Error.Details)
	assert.Len(t, fields, 2)
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestUsageHandler_Submit_MalformedBody(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))

	w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records", map[string]any{"supplies": "none"}, "nurse-7")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestUsageHandler_Submit_CatalogTimeout(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))

	svc.On("Submit", mock.Anything, mock.Anything).
		Return(nil, shared.NewDependencyTimeoutError("catalog", errors.New("context deadline exceeded")))

	w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records", map[string]any{"patient_hn": "HN-1"}, "nurse-7")

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, shared.CodeDependencyTimeout, resp.Error.Code)
	assert.JSONEq(t, `{"dependency":"catalog","retryable":true}`, string(resp.Error.Details))
}

func TestUsageHandler_Get(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))
	id := uuid.New()

	t.Run("found", func(t *testing.T) {
		svc.On("Get", mock.Anything, id).Return(sampleRecord(id), nil).Once()
		w, resp := do(t, r, http.MethodGet, "/api/v1/usage-records/"+id.String(), nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, decode[appsupply.UsageRecordResponse](t, resp.Data).ID)
	})

	t.Run("not found", func(t *testing.T) {
		svc.On("Get", mock.Anything, id).Return(nil, shared.NewNotFoundError("usage_record", id.String())).Once()
		w, resp := do(t, r, http.MethodGet, "/api/v1/usage-records/"+id.String(), nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, shared.CodeNotFound, resp.Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w, resp := do(t, r, http.MethodGet, "/api/v1/usage-records/not-a-uuid", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	})

	t.Run("internal error is hidden", func(t *testing.T) {
		svc.On("Get", mock.Anything, id).Return(nil, errors.New("pq: connection reset")).Once()
		w, resp := do(t, r, http.MethodGet, "/api/v1/usage-records/"+id.String(), nil, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, resp.Error.Message, "pq")
	})
}

func TestUsageHandler_List(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))

	page := shared.Filter{Page: 2, PageSize: 1}
	svc.On("List", mock.Anything, mock.MatchedBy(func(f appsupply.UsageListFilter) bool {
		return f.DepartmentCode == "ER" && f.Page == 2 && f.Limit == 1 && f.IncludeVoided &&
			f.DateFrom != nil && f.DateFrom.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	})).Return([]appsupply.UsageRecordResponse{*sampleRecord(uuid.New())}, int64(3), page, nil)

	w, resp := do(t, r, http.MethodGet,
		"/api/v1/usage-records?department_code=ER&page=2&limit=1&include_voided=true&date_from=2026-03-01T00:00:00Z", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Len(t, decode[[]appsupply.UsageRecordResponse](t, resp.Data), 1)
}

func TestUsageHandler_List_BadOrderDir(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))

	w, resp := do(t, r, http.MethodGet, "/api/v1/usage-records?order_dir=sideways", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode[[]shared.FieldError](t, resp.Error.Details)
	require.Len(t, fields, 1)
	assert.Equal(t, "order_dir", fields[0].Field)
}

func TestUsageHandler_Amend(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))
	id := uuid.New()
	body := map[string]any{
		"expected_version": 3,
		"supplies":         []map[string]any{{"supply_code": "SUP-001", "quantity_used": 4}},
	}

	t.Run("requires actor", func(t *testing.T) {
		w, resp := do(t, r, http.MethodPut, "/api/v1/usage-records/"+id.String()+"/lines", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(resp.Error.Details), "X-User-ID")
	})

	t.Run("conflict", func(t *testing.T) {
		svc.On("Amend", mock.Anything, id, 3, mock.Anything, "nurse-7").
			Return(nil, shared.NewConflictError("usage_record", id.String(), 3)).Once()

		w, resp := do(t, r, http.MethodPut, "/api/v1/usage-records/"+id.String()+"/lines", body, "nurse-7")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, shared.CodeConcurrencyConflict, resp.Error.Code)
	})

	t.Run("dropping a returned line", func(t *testing.T) {
		line := shared.LineState{SupplyCode: "SUP-001", QuantityUsed: 10, QuantityReturned: 6, MaxReturnable: 4}
		svc.On("Amend", mock.Anything, id, 3, mock.Anything, "nurse-7").
			Return(nil, shared.NewInvalidQuantityError(line, 4, "quantity_used below quantity_returned")).Once()

		w, resp := do(t, r, http.MethodPut, "/api/v1/usage-records/"+id.String()+"/lines", body, "nurse-7")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeInvalidQuantity, resp.Error.Code)
	})

	t.Run("ok", func(t *testing.T) {
		svc.On("Amend", mock.Anything, id, 3, mock.MatchedBy(func(lines []appsupply.LineRequest) bool {
			return len(lines) == 1 && lines[0].QuantityUsed == 4
		}), "nurse-7").Return(sampleRecord(id), nil).Once()

		w, _ := do(t, r, http.MethodPut, "/api/v1/usage-records/"+id.String()+"/lines", body, "nurse-7")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestUsageHandler_TransitionBilling(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))
	id := uuid.New()

	t.Run("status required", func(t *testing.T) {
		w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records/"+id.String()+"/billing-status", map[string]any{}, "clerk-1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(resp.Error.Details), `"status"`)
	})

	t.Run("backwards move", func(t *testing.T) {
		svc.On("TransitionBilling", mock.Anything, id, "pending", "clerk-1").Return(nil, shared.ErrInvalidState).Once()
		w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records/"+id.String()+"/billing-status",
			map[string]any{"status": "pending"}, "clerk-1")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeInvalidState, resp.Error.Code)
	})

	t.Run("ok", func(t *testing.T) {
		rec := sampleRecord(id)
		rec.Billing.Status = "billed"
		svc.On("TransitionBilling", mock.Anything, id, "billed", "clerk-1").Return(rec, nil).Once()
		w, resp := do(t, r, http.MethodPost, "/api/v1/usage-records/"+id.String()+"/billing-status",
			map[string]any{"status": "billed"}, "clerk-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "billed", decode[appsupply.UsageRecordResponse](t, resp.Data).Billing.Status)
	})
}

func TestUsageHandler_Void(t *testing.T) {
	svc := new(MockUsageService)
	r := newTestRouter(NewUsageHandler(svc))
	id := uuid.New()

	rec := sampleRecord(id)
	rec.Voided = true
	svc.On("Void", mock.Anything, id, "duplicate entry", "nurse-7").Return(rec, nil).Once()
	svc.On("Void", mock.Anything, id, "", "nurse-7").Return(rec, nil).Once()

	w, resp := do(t, r, http.MethodDelete, "/api/v1/usage-records/"+id.String(), map[string]any{"reason": "duplicate entry"}, "nurse-7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[appsupply.UsageRecordResponse](t, resp.Data).Voided)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/usage-records/"+id.String(), nil, "nurse-7")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
