package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestProfiling(t *testing.T) {
	var route, method string
	var labelled bool
	handler := func(c *gin.Context) {
		route, labelled = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		method, _ = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelMethod)
		c.Status(http.StatusOK)
	}

	r := gin.New()
	r.Use(Profiling(DefaultProfilingConfig()))
	r.GET("/api/v1/usage-records/:id", handler)
	r.GET("/api/v1/health", handler)

	serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/usage-records/123", nil))
	assert.True(t, labelled)
	assert.Equal(t, "/api/v1/usage-records/:id", route)
	assert.Equal(t, http.MethodGet, method)

	serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.False(t, labelled)
}

func TestProfiling_Disabled(t *testing.T) {
	var labelled bool
	r := gin.New()
	r.Use(Profiling(ProfilingConfig{Enabled: false}))
	r.GET("/test", func(c *gin.Context) {
		_, labelled = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		c.Status(http.StatusOK)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.False(t, labelled)
}
