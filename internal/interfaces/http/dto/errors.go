package dto

import (
	"errors"
	"net/http"

	"github.com/medsupply/backend/internal/domain/shared"
)

// Transport-level error codes. Domain codes are passed through unchanged.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:          http.StatusBadRequest,
	shared.CodeInvalidInput:        http.StatusBadRequest,
	shared.CodeNotFound:            http.StatusNotFound,
	shared.CodeInvalidQuantity:     http.StatusUnprocessableEntity,
	shared.CodeInvalidState:        http.StatusUnprocessableEntity,
	shared.CodeConcurrencyConflict: http.StatusConflict,
	shared.CodeDependencyTimeout:   http.StatusGatewayTimeout,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeRouteNotFound:   http.StatusNotFound,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the status for code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// QuantityDetails is the error payload of an invalid quantity
type QuantityDetails struct {
	Line      shared.LineState `json:"line"`
	Requested int              `json:"requested"`
	Reason    string           `json:"reason"`
}

// ConflictDetails is the error payload of a version conflict
type ConflictDetails struct {
	Resource        string `json:"resource"`
	ID              string `json:"id"`
	ExpectedVersion int    `json:"expected_version"`
}

// TimeoutDetails is the error payload of a dependency timeout
type TimeoutDetails struct {
	Dependency string `json:"dependency"`
	Retryable  bool   `json:"retryable"`
}

// NotFoundDetails is the error payload of a missing resource
type NotFoundDetails struct {
	Resource string `json:"resource"`
	Key      string `json:"key"`
}

// ErrorInfoFor maps err to a status, code, client message and typed
// details. Errors outside the domain hierarchy become a 500 with a generic
// message; the caller logs the original.
func ErrorInfoFor(err error) (status int, code, message string, details interface{}) {
	var (
		verr  *shared.ValidationError
		qerr  *shared.InvalidQuantityError
		cerr  *shared.ConflictError
		terr  *shared.DependencyTimeoutError
		nerr  *shared.NotFoundError
		dverr *shared.DomainError
	)
	switch {
	case errors.As(err, &verr):
		code, message, details = shared.CodeValidation, "Request validation failed", verr.Fields
	case errors.As(err, &qerr):
		code, message = shared.CodeInvalidQuantity, qerr.Error()
		details = QuantityDetails{Line: qerr.Line, Requested: qerr.Requested, Reason: qerr.Reason}
	case errors.As(err, &cerr):
		code, message = shared.CodeConcurrencyConflict, cerr.Error()
		details = ConflictDetails{Resource: cerr.Resource, ID: cerr.ID, ExpectedVersion: cerr.ExpectedVersion}
	case errors.As(err, &terr):
		code, message = shared.CodeDependencyTimeout, "Dependency "+terr.Dependency+" did not respond in time"
		details = TimeoutDetails{Dependency: terr.Dependency, Retryable: terr.Retryable()}
	case errors.As(err, &nerr):
		code, message = shared.CodeNotFound, nerr.Error()
		details = NotFoundDetails{Resource: nerr.Resource, Key: nerr.Key}
	case errors.As(err, &dverr):
		code, message = dverr.Code, dverr.Message
	default:
		code, message = ErrCodeInternal, "An unexpected error occurred"
	}
	return GetHTTPStatus(code), code, message, details
}
