package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/interfaces/http/middleware"
)

// UsageService is the usage ledger as seen by the HTTP layer
type UsageService interface {
	Submit(ctx context.Context, req appsupply.SubmitUsageRequest) (*appsupply.UsageRecordResponse, error)
	Amend(ctx context.Context, id uuid.UUID, expectedVersion int, lines []appsupply.LineRequest, actor string) (*appsupply.UsageRecordResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*appsupply.UsageRecordResponse, error)
	List(ctx context.Context, filter appsupply.UsageListFilter) ([]appsupply.UsageRecordResponse, int64, shared.Filter, error)
	TransitionBilling(ctx context.Context, id uuid.UUID, status, actor string) (*appsupply.UsageRecordResponse, error)
	Void(ctx context.Context, id uuid.UUID, reason, actor string) (*appsupply.UsageRecordResponse, error)
}

// UsageHandler handles usage record endpoints
type UsageHandler struct {
	BaseHandler
	usage UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// RegisterRoutes mounts the usage record routes
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/usage-records")
	g.POST("", h.Submit)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/lines", h.Amend)
	g.POST("/:id/billing-status", h.TransitionBilling)
	g.DELETE("/:id", h.Void)
}

// Submit godoc
//
//	@Summary	Record supplies used for a patient encounter
//	@Tags		usage-records
//	@Accept		json
//	@Produce	json
//	@Param		request	body		appsupply.SubmitUsageRequest	true	"Usage submission"
//	@Success	201		{object}	dto.Response{data=appsupply.UsageRecordResponse}
//	@Failure	400		{object}	dto.Response
//	@Failure	504		{object}	dto.Response
//	@Router		/usage-records [post]
func (h *UsageHandler) Submit(c *gin.Context) {
	var req appsupply.SubmitUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	if req.RecordedByUserID == "" {
		req.RecordedByUserID = middleware.GetActor(c)
	}

	record, err := h.usage.Submit(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, record)
}

// List godoc
//
//	@Summary	List usage records
//	@Tags		usage-records
//	@Produce	json
//	@Param		patient_hn		query		string	false	"Patient hospital number"
//	@Param		department_code	query		string	false	"Department"
//	@Param		billing_status	query		string	false	"Billing status"
//	@Param		include_voided	query		bool	false	"Include voided records"
//	@Param		page			query		int		false	"Page (1-based)"
//	@Param		limit			query		int		false	"Page size (max 100)"
//	@Success	200				{object}	dto.Response{data=[]appsupply.UsageRecordResponse}
//	@Router		/usage-records [get]
func (h *UsageHandler) List(c *gin.Context) {
	var filter appsupply.UsageListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.HandleBindError(c, err)
		return
	}

	items, total, page, err := h.usage.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Page(c, items, total, page)
}

// Get godoc
//
//	@Summary	Get a usage record
//	@Tags		usage-records
//	@Produce	json
//	@Param		id	path		string	true	"Usage record ID"
//	@Success	200	{object}	dto.Response{data=appsupply.UsageRecordResponse}
//	@Failure	404	{object}	dto.Response
//	@Router		/usage-records/{id} [get]
func (h *UsageHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	record, err := h.usage.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// Amend godoc
//
//	@Summary		Replace the supply lines of a usage record
//	@Description	expected_version must match the stored version when set
//	@Tags			usage-records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Usage record ID"
//	@Param			request	body		appsupply.AmendUsageRequest	true	"New line set"
//	@Success		200		{object}	dto.Response{data=appsupply.UsageRecordResponse}
//	@Failure		409		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Router			/usage-records/{id}/lines [put]
func (h *UsageHandler) Amend(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req appsupply.AmendUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	record, err := h.usage.Amend(c.Request.Context(), id, req.ExpectedVersion, req.Supplies, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// TransitionBilling godoc
//
//	@Summary	Move the billing status of a usage record forward
//	@Tags		usage-records
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string								true	"Usage record ID"
//	@Param		request	body		appsupply.TransitionBillingRequest	true	"Target status"
//	@Success	200		{object}	dto.Response{data=appsupply.UsageRecordResponse}
//	@Failure	422		{object}	dto.Response
//	@Router		/usage-records/{id}/billing-status [post]
func (h *UsageHandler) TransitionBilling(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req appsupply.TransitionBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	record, err := h.usage.TransitionBilling(c.Request.Context(), id, req.Status, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// Void godoc
//
//	@Summary	Void a usage record
//	@Tags		usage-records
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string						true	"Usage record ID"
//	@Param		request	body		appsupply.VoidUsageRequest	false	"Reason"
//	@Success	200		{object}	dto.Response{data=appsupply.UsageRecordResponse}
//	@Router		/usage-records/{id} [delete]
func (h *UsageHandler) Void(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req appsupply.VoidUsageRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.HandleBindError(c, err)
			return
		}
	}

	record, err := h.usage.Void(c.Request.Context(), id, req.Reason, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}
