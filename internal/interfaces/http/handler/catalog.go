package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/shared"
)

// CatalogService reads the supply catalog
type CatalogService interface {
	Get(ctx context.Context, code string) (*appsupply.CatalogEntryResponse, error)
	List(ctx context.Context, filter appsupply.CatalogListFilter) ([]appsupply.CatalogEntryResponse, int64, shared.Filter, error)
}

// CatalogHandler handles catalog endpoints
type CatalogHandler struct {
	BaseHandler
	catalog CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// RegisterRoutes mounts the catalog routes
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/catalog", h.List)
	rg.GET("/catalog/:code", h.Get)
}

// Get godoc
//
//	@Summary	Look up a supply by code
//	@Tags		catalog
//	@Produce	json
//	@Param		code	path		string	true	"Supply code"
//	@Success	200		{object}	dto.Response{data=appsupply.CatalogEntryResponse}
//	@Failure	404		{object}	dto.Response
//	@Failure	504		{object}	dto.Response
//	@Router		/catalog/{code} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	entry, err := h.catalog.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// List returns a page of catalog entries
func (h *CatalogHandler) List(c *gin.Context) {
	var filter appsupply.CatalogListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.HandleBindError(c, err)
		return
	}

	items, total, page, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Page(c, items, total, page)
}
