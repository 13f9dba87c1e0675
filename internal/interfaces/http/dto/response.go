package dto

import (
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
)

// Response is the envelope of every API response. Exactly one of Data and
// Error is set; Meta accompanies list endpoints.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *PageMeta  `json:"meta,omitempty"`
}

// ErrorInfo describes a failed request. Details is one of the typed payloads
// in errors.go.
type ErrorInfo struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PageMeta describes the page of a list response
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPageMeta computes page metadata for total rows under a normalized filter
func NewPageMeta(total int64, page shared.Filter) *PageMeta {
	meta := &PageMeta{Total: total, Page: page.Page, PageSize: page.PageSize}
	if page.PageSize > 0 {
		size := int64(page.PageSize)
		meta.TotalPages = int((total + size - 1) / size)
	}
	return meta
}

// NewSuccessResponse wraps data
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewPageResponse wraps one page of a list
func NewPageResponse(data any, total int64, page shared.Filter) Response {
	return Response{Success: true, Data: data, Meta: NewPageMeta(total, page)}
}

// NewErrorResponse builds the failure envelope stamped with the current time
func NewErrorResponse(code, message, requestID string, details any) Response {
	return Response{Error: &ErrorInfo{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}}
}
