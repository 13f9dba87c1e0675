package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/shared"
)

// ReturnService is the return processor as seen by the HTTP layer
type ReturnService interface {
	RecordReturn(ctx context.Context, recordID uuid.UUID, req appsupply.RecordReturnRequest, actor string) (*appsupply.RecordReturnResponse, error)
	History(ctx context.Context, filter appsupply.ReturnHistoryFilter) ([]appsupply.ReturnEventResponse, int64, shared.Filter, error)
	ForRecord(ctx context.Context, recordID uuid.UUID) ([]appsupply.ReturnEventResponse, error)
}

// ReturnHandler handles supply return endpoints
type ReturnHandler struct {
	BaseHandler
	returns ReturnService
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(returns ReturnService) *ReturnHandler {
	return &ReturnHandler{returns: returns}
}

// RegisterRoutes mounts the return routes
func (h *ReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage-records/:id/returns", h.RecordReturn)
	rg.GET("/usage-records/:id/returns", h.ForRecord)
	rg.GET("/returns", h.History)
}

// RecordReturn godoc
//
//	@Summary		Return unused supplies of a usage record
//	@Description	The quantity may not exceed quantity_used minus what was already returned
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Usage record ID"
//	@Param			request	body		appsupply.RecordReturnRequest	true	"Return"
//	@Success		201		{object}	dto.Response{data=appsupply.RecordReturnResponse}
//	@Failure		404		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		422		{object}	dto.Response
//	@Router			/usage-records/{id}/returns [post]
func (h *ReturnHandler) RecordReturn(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req appsupply.RecordReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	resp, err := h.returns.RecordReturn(c.Request.Context(), id, req, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ForRecord lists the returns of one usage record, oldest first
func (h *ReturnHandler) ForRecord(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	events, err := h.returns.ForRecord(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, events)
}

// History godoc
//
//	@Summary	Search return events
//	@Tags		returns
//	@Produce	json
//	@Param		usage_record_id	query		string	false	"Usage record ID"
//	@Param		department_code	query		string	false	"Department"
//	@Param		reason			query		string	false	"Return reason"
//	@Param		from			query		string	false	"Returned at or after (RFC 3339)"
//	@Param		to				query		string	false	"Returned before (RFC 3339)"
//	@Success	200				{object}	dto.Response{data=[]appsupply.ReturnEventResponse}
//	@Router		/returns [get]
func (h *ReturnHandler) History(c *gin.Context) {
	var filter appsupply.ReturnHistoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.HandleBindError(c, err)
		return
	}

	items, total, page, err := h.returns.History(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Page(c, items, total, page)
}
