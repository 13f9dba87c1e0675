// Package handler implements the HTTP endpoints of the usage ledger,
// returns, reconciliation and catalog.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/infrastructure/logger"
	"github.com/medsupply/backend/internal/interfaces/http/dto"
	"github.com/medsupply/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Page sends one page of a list with its pagination meta
func (h *BaseHandler) Page(c *gin.Context, data any, total int64, page shared.Filter) {
	c.JSON(http.StatusOK, dto.NewPageResponse(data, total, page))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// HandleError writes the error envelope for err. Errors that map to 500 are
// logged with the request logger; their text never reaches the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, code, message, details := dto.ErrorInfoFor(err)
	if status >= http.StatusInternalServerError && code != shared.CodeDependencyTimeout {
		logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, dto.NewErrorResponse(code, message, middleware.GetRequestID(c), details))
}

// HandleBindError reports a request that could not be decoded
func (h *BaseHandler) HandleBindError(c *gin.Context, err error) {
	h.HandleError(c, middleware.BindingError(err))
}

// parseID reads a UUID path parameter, writing a validation error on failure
func (h *BaseHandler) parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.HandleError(c, shared.NewValidationError(shared.FieldError{Field: param, Message: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}

// requireActor reads the acting user, writing a validation error when the
// header is missing
func (h *BaseHandler) requireActor(c *gin.Context) (string, bool) {
	actor := middleware.GetActor(c)
	if actor == "" {
		h.HandleError(c, shared.NewValidationError(shared.FieldError{Field: middleware.ActorHeader, Message: "is required"}))
		return "", false
	}
	return actor, true
}
