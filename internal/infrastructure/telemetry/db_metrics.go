package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds database metrics configuration
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
}

// DBMetrics is a gorm plugin counting ledger statements. Pool usage is
// observed from sql.DB stats at each collection.
type DBMetrics struct {
	meter     metric.Meter
	queries   *Counter
	latency   *Histogram
	slow      *Counter
	threshold time.Duration
	log       *zap.Logger

	pool     metric.Registration
	stopOnce sync.Once
}

// NewDBMetrics creates the statement instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &DBMetrics{meter: meter, threshold: cfg.SlowQueryThreshold, log: log}
	if m.threshold <= 0 {
		m.threshold = 200 * time.Millisecond
	}

	var err error
	if m.queries, err = NewCounter(meter, "db_query_total", "Statements by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slow, err = NewCounter(meter, "db_slow_query_total", "Statements slower than the threshold, by table", "{query}"); err != nil {
		return nil, err
	}
	m.latency, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery counts one statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, took time.Duration) {
	op := AttrDBOperation.String(orDefault(strings.ToUpper(operation), "UNKNOWN"))
	m.queries.Inc(ctx, op)
	m.latency.RecordDuration(ctx, took, op)
	if took > m.threshold {
		m.slow.Inc(ctx, AttrDBTable.String(orDefault(table, "unknown")))
	}
}

// ObservePool reports the connection pool of sqlDB on every collection
// until Stop.
func (m *DBMetrics) ObservePool(sqlDB *sql.DB) error {
	conns, err := m.meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return instrumentErr("gauge", "db_pool_connections", err)
	}
	limit, err := m.meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return instrumentErr("gauge", "db_pool_connections_max", err)
	}
	waits, err := m.meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Acquisitions that waited for a free connection"), metric.WithUnit("{wait}"))
	if err != nil {
		return instrumentErr("counter", "db_pool_wait_total", err)
	}

	m.pool, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(limit, int64(s.MaxOpenConnections))
		o.ObserveInt64(conns, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, conns, limit, waits)
	return err
}

// Stop unregisters the pool callback. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		if m.pool == nil {
			return
		}
		if err := m.pool.Unregister(); err != nil {
			m.log.Warn("Failed to unregister pool metrics", zap.Error(err))
		}
	})
}

type dbMetricsStartKey struct{}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string { return "db_metrics" }

// Initialize implements gorm.Plugin
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	return registerAround(db, "db_metrics", m.start, m.finish)
}

func (m *DBMetrics) start(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, dbMetricsStartKey{}, time.Now())
}

func (m *DBMetrics) finish(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if began, ok := ctx.Value(dbMetricsStartKey{}).(time.Time); ok {
		m.RecordQuery(ctx, verb(db.Statement.SQL.String()), db.Statement.Table, time.Since(began))
	}
}

// verb is the leading SQL keyword, or OTHER
func verb(sql string) string {
	word, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	switch w := strings.ToUpper(word); w {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return w
	}
	return "OTHER"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// RegisterDBMetrics installs statement and pool metrics on db. It returns
// nil when metrics are disabled. Call Stop on the result at shutdown.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, log *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || !mp.IsEnabled() {
		return nil, nil
	}
	m, err := NewDBMetrics(mp.Meter("db.client"), cfg, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := m.ObservePool(sqlDB); err != nil {
		return nil, err
	}
	if err := db.Use(m); err != nil {
		m.Stop()
		return nil, err
	}
	return m, nil
}
