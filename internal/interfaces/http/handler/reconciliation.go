package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appsupply "github.com/medsupply/backend/internal/application/supply"
)

// ReconciliationService compares dispensed and used quantities
type ReconciliationService interface {
	Compare(ctx context.Context, q appsupply.ReconciliationQuery) (*appsupply.ReconciliationReportResponse, error)
}

// ReconciliationHandler handles the reconciliation endpoint
type ReconciliationHandler struct {
	BaseHandler
	reconciliation ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliation ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation}
}

// RegisterRoutes mounts the reconciliation routes
func (h *ReconciliationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reconciliation", h.Compare)
}

// Compare godoc
//
//	@Summary		Compare dispensed against used quantities
//	@Description	The window is half-open [window_start, window_end). A report with
//	@Description	complete=false lists the sources that could not be read in full.
//	@Tags			reconciliation
//	@Produce		json
//	@Param			window_start	query		string		true	"Window start (RFC 3339)"
//	@Param			window_end		query		string		true	"Window end (RFC 3339)"
//	@Param			department_code	query		string		false	"Department"
//	@Param			supply_code		query		[]string	false	"Supply codes"	collectionFormat(multi)
//	@Success		200				{object}	dto.Response{data=appsupply.ReconciliationReportResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		504				{object}	dto.Response
//	@Router			/reconciliation [get]
func (h *ReconciliationHandler) Compare(c *gin.Context) {
	var q appsupply.ReconciliationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.HandleBindError(c, err)
		return
	}

	report, err := h.reconciliation.Compare(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
