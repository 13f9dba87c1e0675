package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createUsageRecords(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE usage_records (
		id TEXT PRIMARY KEY,
		billing_status TEXT NOT NULL,
		voided BOOLEAN NOT NULL DEFAULT 0
	)`).Error)
	rows := []struct {
		id, status string
		voided     bool
	}{
		{"r1", "draft", false},
		{"r2", "draft", false},
		{"r3", "billed", false},
		{"r4", "draft", true},
	}
	for _, r := range rows {
		require.NoError(t, db.Exec("INSERT INTO usage_records (id, billing_status, voided) VALUES (?, ?, ?)",
			r.id, r.status, r.voided).Error)
	}
}

func TestGormLedgerSnapshotProvider(t *testing.T) {
	db := openSQLite(t)
	createUsageRecords(t, db)

	counts, err := NewGormLedgerSnapshotProvider(db).OpenRecordsByBillingStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"draft": 2, "billed": 1}, counts)
}

func TestDBMetrics_Plugin(t *testing.T) {
	mp, reader := newTestMeter(t)
	m, err := NewDBMetrics(mp.Meter("db"), DBMetricsConfig{SlowQueryThreshold: time.Hour}, zaptest.NewLogger(t))
	require.NoError(t, err)

	db := openSQLite(t)
	require.NoError(t, db.Use(m))
	createUsageRecords(t, db)

	var n int64
	require.NoError(t, db.Table("usage_records").Count(&n).Error)
	assert.Equal(t, int64(4), n)

	data := collect(t, reader)
	assert.Equal(t, int64(4), total(data["db_query_total"], map[string]string{"db.operation": "INSERT"}))
	assert.Equal(t, int64(1), total(data["db_query_total"], map[string]string{"db.operation": "SELECT"}))
	assert.Zero(t, total(data["db_slow_query_total"], nil))
}

func TestDBMetrics_SlowQueryAndPool(t *testing.T) {
	mp, reader := newTestMeter(t)
	m, err := NewDBMetrics(mp.Meter("db"), DBMetricsConfig{SlowQueryThreshold: time.Millisecond}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordQuery(ctx, "select", "usage_records", 5*time.Millisecond)
	m.RecordQuery(ctx, "", "", 5*time.Millisecond)

	sqlDB, err := openSQLite(t).DB()
	require.NoError(t, err)
	require.NoError(t, m.ObservePool(sqlDB))

	data := collect(t, reader)
	assert.Equal(t, int64(1), total(data["db_query_total"], map[string]string{"db.operation": "SELECT"}))
	assert.Equal(t, int64(1), total(data["db_query_total"], map[string]string{"db.operation": "UNKNOWN"}))
	assert.Equal(t, int64(1), total(data["db_slow_query_total"], map[string]string{"db.table": "usage_records"}))
	assert.Equal(t, int64(1), total(data["db_slow_query_total"], map[string]string{"db.table": "unknown"}))
	assert.Equal(t, int64(1), total(data["db_pool_connections_max"], nil))

	m.Stop()
	m.Stop()
	_, stillObserved := collect(t, reader)["db_pool_connections_max"]
	assert.False(t, stillObserved)
}

func TestVerb(t *testing.T) {
	assert.Equal(t, "SELECT", verb("  select * from usage_records"))
	assert.Equal(t, "INSERT", verb("INSERT INTO return_events"))
	assert.Equal(t, "OTHER", verb("WITH open AS (SELECT 1) SELECT * FROM open"))
	assert.Equal(t, "OTHER", verb(""))
}

func TestRegisterDBMetrics_DisabledProvider(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, nil)
	require.NoError(t, err)
	m, err := RegisterDBMetrics(openSQLite(t), mp, DBMetricsConfig{Enabled: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDBTracingPlugin_After(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, nil)

	ctx, span := tp.Tracer("test").Start(context.Background(), "query")
	ctx = context.WithValue(ctx, queryStartKey{}, time.Now().Add(-time.Second))
	db := &gorm.DB{Config: &gorm.Config{}, Error: errors.New("disk full"), RowsAffected: 2}
	db.Statement = &gorm.Statement{DB: db, Context: ctx, Table: "usage_records"}
	p.after(db)
	span.End()

	s := sr.Ended()[0]
	attrs := map[attribute.Key]attribute.Value{}
	for _, a := range s.Attributes() {
		attrs[a.Key] = a.Value
	}
	assert.Equal(t, int64(2), attrs["db.rows_affected"].AsInt64())
	assert.Equal(t, "usage_records", attrs["db.sql.table"].AsString())
	assert.True(t, attrs["db.slow_query"].AsBool())
	assert.Equal(t, codes.Error, s.Status().Code)
}

func TestRegisterAround(t *testing.T) {
	db := openSQLite(t)
	var calls []string
	before := func(*gorm.DB) { calls = append(calls, "before") }
	after := func(*gorm.DB) { calls = append(calls, "after") }
	require.NoError(t, registerAround(db, "audit", before, after))

	cb := db.Callback()
	for _, kind := range []string{"create", "query", "update", "delete", "row", "raw"} {
		var proc interface{ Get(string) func(*gorm.DB) }
		switch kind {
		case "create":
			proc = cb.Create()
		case "query":
			proc = cb.Query()
		case "update":
			proc = cb.Update()
		case "delete":
			proc = cb.Delete()
		case "row":
			proc = cb.Row()
		case "raw":
			proc = cb.Raw()
		}
		assert.NotNil(t, proc.Get("audit:before_"+kind), kind)
		assert.NotNil(t, proc.Get("audit:after_"+kind), kind)
	}

	require.NoError(t, db.Exec("SELECT 1").Error)
	assert.Equal(t, []string{"before", "after"}, calls)
}

func TestDBTracingPlugin_Register(t *testing.T) {
	db := openSQLite(t)
	assert.NoError(t, NewDBTracingPlugin(DefaultDBTracingConfig(), zaptest.NewLogger(t)).Register(db))

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, NewDBTracingPlugin(cfg, zaptest.NewLogger(t)).Register(db))
	assert.NoError(t, db.Exec("SELECT 1").Error)
}
