package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bindLine struct {
	SupplyCode string `json:"supply_code" binding:"required"`
	Quantity   int    `json:"quantity" binding:"gt=0"`
}

type bindRequest struct {
	Status string     `json:"status" binding:"required,oneof=pending billed"`
	Lines  []bindLine `json:"lines" binding:"dive"`
}

func bind(t *testing.T, body string, limit int64) error {
	t.Helper()
	SetupValidator()

	var bindErr error
	r := gin.New()
	r.Use(BodyLimit(limit))
	r.POST("/test", func(c *gin.Context) {
		var req bindRequest
		bindErr = c.ShouldBindJSON(&req)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	serve(r, req)
	return bindErr
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
	out := make(map[string]string)
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestBindingError_FieldErrors(t *testing.T) {
	err := bind(t, `{"status":"paid","lines":[{"supply_code":"","quantity":0}]}`, 1<<20)
	require.Error(t, err)

	fields := fieldsOf(t, BindingError(err))
	assert.Equal(t, "must be one of: pending billed", fields["status"])
	assert.Equal(t, "is required", fields["lines[0].supply_code"])
	assert.Equal(t, "must be greater than 0", fields["lines[0].quantity"])
}

func TestBindingError_Malformed(t *testing.T) {
	fields := fieldsOf(t, BindingError(bind(t, `{"status":`, 1<<20)))
	assert.Contains(t, fields, "body")

	fields = fieldsOf(t, BindingError(bind(t, `{"status":"pending","lines":[{"supply_code":"A","quantity":"two"}]}`, 1<<20)))
	assert.Contains(t, fields, "lines.quantity")
}

func TestBindingError_TooLarge(t *testing.T) {
	err := BindingError(bind(t, `{"status":"`+strings.Repeat("x", 100)+`"}`, 32))

	status, code, _, _ := dto.ErrorInfoFor(err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, dto.ErrCodePayloadTooLarge, code)
}
