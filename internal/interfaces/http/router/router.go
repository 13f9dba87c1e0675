package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medsupply/backend/internal/infrastructure/logger"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"github.com/medsupply/backend/internal/interfaces/http/dto"
	"github.com/medsupply/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup mounts every registrar under /api/<version> and answers unknown
// routes with the error envelope
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(
			dto.ErrCodeRouteNotFound, "No route for "+c.Request.Method+" "+c.Request.URL.Path,
			middleware.GetRequestID(c), nil))
	})
}

// EngineConfig selects the middleware chain of the engine
type EngineConfig struct {
	ServiceName    string
	Logger         *zap.Logger
	MeterProvider  *telemetry.MeterProvider
	TracingEnabled bool
	Profiling      bool
	MaxBodySize    int64
	CORS           middleware.CORSConfig
	TrustedProxies []string
	// QuietPaths are not access-logged unless they fail
	QuietPaths []string
}

// NewEngine builds a gin engine with recovery, request ids, tracing,
// access logging, metrics, profiling labels, security headers, CORS and the
// body limit, in that order
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.TracingEnabled}),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.AccessLog(cfg.Logger, logger.WithActorHeader(middleware.ActorHeader), logger.WithSkipPaths(cfg.QuietPaths...)),
		middleware.HTTPMetrics(cfg.MeterProvider),
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:   cfg.Profiling,
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		}),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	return engine, nil
}
