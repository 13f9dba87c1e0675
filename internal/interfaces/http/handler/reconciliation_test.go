package handler

import (
	"errors"
	"net/http"
	"testing"
	"time"

	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestReconciliationHandler_Compare(t *testing.T) {
	svc := new(MockReconciliationService)
	r := newTestRouter(NewReconciliationHandler(svc))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	report := &appsupply.ReconciliationReportResponse{
		WindowStart:       start,
		WindowEnd:         end,
		Complete:          true,
		IncompleteSources: []string{},
		Discrepancies:     1,
		Results: []appsupply.ReconciliationResultResponse{{
			SupplyCode: "SUP-001", WindowStart: start, WindowEnd: end,
			TotalDispensed: 40, TotalUsed: 27, Difference: 13, Status: "discrepancy",
		}},
	}
	svc.On("Compare", mock.Anything, mock.MatchedBy(func(q appsupply.ReconciliationQuery) bool {
		return q.WindowStart.Equal(start) && q.WindowEnd.Equal(end) &&
			q.DepartmentCode == "ER" && assert.ObjectsAreEqual([]string{"SUP-001", "SUP-002"}, q.SupplyCodes)
	})).Return(report, nil)

	w, resp := do(t, r, http.MethodGet,
		"/api/v1/reconciliation?window_start=2026-03-01T00:00:00Z&window_end=2026-03-02T00:00:00Z&department_code=ER&supply_code=SUP-001&supply_code=SUP-002",
		nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	out := decode[appsupply.ReconciliationReportResponse](t, resp.Data)
	assert.Equal(t, 13, out.Results[0].Difference)
	assert.True(t, out.Complete)
}

func TestReconciliationHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"inverted window", shared.NewValidationError(shared.FieldError{Field: "window_end", Message: "must be after window_start"}), http.StatusBadRequest},
		{"ledger timeout", shared.NewDependencyTimeoutError("ledger", errors.New("deadline")), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReconciliationService)
			r := newTestRouter(NewReconciliationHandler(svc))
			svc.On("Compare", mock.Anything, mock.Anything).Return(nil, tt.err)

			w, _ := do(t, r, http.MethodGet, "/api/v1/reconciliation?window_start=2026-03-02T00:00:00Z&window_end=2026-03-01T00:00:00Z", nil, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestReconciliationHandler_BadTimestamp(t *testing.T) {
	svc := new(MockReconciliationService)
	r := newTestRouter(NewReconciliationHandler(svc))

	w, resp := do(t, r, http.MethodGet, "/api/v1/reconciliation?window_start=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	svc.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
}
