package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appsupply "github.com/medsupply/backend/internal/application/supply"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/cache"
	"github.com/medsupply/backend/internal/infrastructure/config"
	"github.com/medsupply/backend/internal/infrastructure/event"
	"github.com/medsupply/backend/internal/infrastructure/logger"
	"github.com/medsupply/backend/internal/infrastructure/persistence"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"github.com/medsupply/backend/internal/interfaces/http/handler"
	"github.com/medsupply/backend/internal/interfaces/http/middleware"
	"github.com/medsupply/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			Medical Supply Usage API
//	@version		1.0
//	@description	Supply usage ledger, returns, reconciliation and billing totals

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// The OTel log bridge is created before the logger so both share records
	var logProvider *telemetry.LoggerProvider
	var extraCores []zapcore.Core
	if cfg.Telemetry.LogsEnabled {
		logProvider, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, nil)
		if err != nil {
			panic("Failed to initialize log exporter: " + err.Error())
		}
		extraCores = append(extraCores, telemetry.NewZapOTELCore(logProvider, logger.ParseLevel(cfg.Log.Level)))
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting medical supply API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerURL,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", zap.Error(err))
	}
	if cfg.Telemetry.ProfilingEnabled && cfg.Telemetry.Enabled {
		if err := tp.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles disabled", zap.Error(err))
		}
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, mp, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.MetricsEnabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}

	// Repositories
	catalogRepo := persistence.NewGormCatalogRepository(db.DB)
	usageRepo := persistence.NewGormUsageRecordRepository(db.DB)
	returnRepo := persistence.NewGormReturnEventRepository(db.DB)
	dispensed := persistence.NewGormDispensedSource(db.DB)

	lookupFactory := cache.NewCatalogLookupFactory(cfg.Redis, cfg.Dependencies.CatalogTimeout,
		cache.WithLogger(log), cache.WithLocalTTL(cfg.Redis.CacheTTL))
	catalogLookup, lookupCloser := lookupFactory.Build(catalogRepo)
	defer func() {
		if err := lookupCloser.Close(); err != nil {
			log.Error("Error closing catalog cache", zap.Error(err))
		}
	}()

	calc, err := supply.NewBillingCalculator(supply.TaxPolicy{
		Rate:     cfg.Billing.TaxRate,
		Currency: cfg.Billing.Currency,
	})
	if err != nil {
		log.Fatal("Invalid billing configuration", zap.Error(err))
	}

	supplyMetrics, err := telemetry.NewSupplyMetrics(telemetry.SupplyMetricsConfig{
		Meter:           mp.Meter("medsupply.supply"),
		Logger:          log,
		CollectInterval: cfg.Telemetry.MetricsInterval,
		Snapshot:        telemetry.NewGormLedgerSnapshotProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize supply metrics", zap.Error(err))
	}

	bus := event.NewInMemoryEventBus(log)
	auditHandler := appsupply.NewAuditLogHandler(log)
	bus.Subscribe(auditHandler, auditHandler.EventTypes()...)
	metricsHandler := appsupply.NewMetricsHandler(supplyMetrics)
	bus.Subscribe(metricsHandler, metricsHandler.EventTypes()...)

	// Services
	usageService := appsupply.NewUsageService(usageRepo, catalogLookup, calc, log)
	usageService.SetEventPublisher(bus)
	usageService.SetMetrics(supplyMetrics)
	returnService := appsupply.NewReturnService(usageRepo, returnRepo, calc, log)
	returnService.SetEventPublisher(bus)
	returnService.SetMetrics(supplyMetrics)
	reconciliationService := appsupply.NewReconciliationService(usageRepo, dispensed, log,
		appsupply.WithDispensedTimeout(cfg.Dependencies.DispensedTimeout),
		appsupply.WithLedgerTimeout(cfg.Dependencies.LedgerTimeout),
	)
	reconciliationService.SetMetrics(supplyMetrics)
	catalogService := appsupply.NewCatalogService(catalogLookup, catalogRepo)

	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	if err := bus.Start(runCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	supplyMetrics.StartPeriodicCollection(runCtx)

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		MeterProvider:  mp,
		TracingEnabled: cfg.Telemetry.Enabled,
		Profiling:      cfg.Telemetry.ProfilingEnabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
		QuietPaths:     []string{"/api/v1/health"},
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	middleware.SetupValidator()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get underlying sql.DB", zap.Error(err))
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewHealthHandler(cfg.App.Name, telemetry.ServiceVersion, map[string]handler.Pinger{
		"database": sqlDB,
	}))
	r.Register(handler.NewUsageHandler(usageService))
	r.Register(handler.NewReturnHandler(returnService))
	r.Register(handler.NewReconciliationHandler(reconciliationService))
	r.Register(handler.NewCatalogHandler(catalogService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Drain in-flight events before the exporters go away
	stopBackground()
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	supplyMetrics.Stop()
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler shutdown failed", zap.Error(err))
		}
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if logProvider != nil {
		if err := logProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Log provider shutdown failed", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
