package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("healthy", func(t *testing.T) {
		r := newTestRouter(NewHealthHandler("medsupply", "test", map[string]Pinger{"database": up}))
		w, resp := do(t, r, http.MethodGet, "/api/v1/health", nil, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)
		body := decode[HealthResponse](t, resp.Data)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "up", body.Checks["database"])
	})

	t.Run("database down", func(t *testing.T) {
		r := newTestRouter(NewHealthHandler("medsupply", "test", map[string]Pinger{"database": down, "redis": up}))
		w, resp := do(t, r, http.MethodGet, "/api/v1/health", nil, "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.False(t, resp.Success)
		body := decode[HealthResponse](t, resp.Data)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "down", body.Checks["database"])
		assert.Equal(t, "up", body.Checks["redis"])
	})
}
