package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerSnapshotProvider reads point-in-time ledger figures for gauges
type LedgerSnapshotProvider interface {
	// OpenRecordsByBillingStatus counts non-voided records per billing status
	OpenRecordsByBillingStatus(ctx context.Context) (map[string]int64, error)
}

// SupplyMetricsConfig configures SupplyMetrics
type SupplyMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration
	Snapshot        LedgerSnapshotProvider
}

// SupplyMetrics records usage, return, billing and reconciliation metrics
type SupplyMetrics struct {
	logger *zap.Logger

	usageSubmitted     *Counter
	usageLines         *Counter
	usageBilledAmount  *FloatCounter
	usageAmended       *Counter
	usageVoided        *Counter
	returnsTotal       *Counter
	returnedQuantity   *Counter
	billingTransitions *Counter
	conflicts          *Counter

	reconciliationRuns          *Counter
	reconciliationDuration      *Histogram
	reconciliationDiscrepancies *Gauge
	reconciliationRows          *Gauge

	recordsByStatus *Gauge

	snapshot    LedgerSnapshotProvider
	interval    time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewSupplyMetrics creates every supply instrument on cfg.Meter
func NewSupplyMetrics(cfg SupplyMetricsConfig) (*SupplyMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m := &SupplyMetrics{
		logger:   logger,
		snapshot: cfg.Snapshot,
		interval: interval,
		stopChan: make(chan struct{}),
	}

	counters := []struct {
		dst               **Counter
		name, desc, units string
	}{
		{&m.usageSubmitted, "medsupply_usage_submitted_total", "Usage records submitted", "{records}"},
		{&m.usageLines, "medsupply_usage_lines_total", "Supply lines submitted", "{lines}"},
		{&m.usageAmended, "medsupply_usage_amended_total", "Usage records amended", "{records}"},
		{&m.usageVoided, "medsupply_usage_voided_total", "Usage records voided", "{records}"},
		{&m.returnsTotal, "medsupply_returns_total", "Returns recorded", "{returns}"},
		{&m.returnedQuantity, "medsupply_returned_quantity_total", "Quantity returned to stock", "{units}"},
		{&m.billingTransitions, "medsupply_billing_transitions_total", "Billing status transitions", "{transitions}"},
		{&m.conflicts, "medsupply_version_conflicts_total", "Writes rejected by optimistic versioning", "{conflicts}"},
		{&m.reconciliationRuns, "medsupply_reconciliation_runs_total", "Reconciliation comparisons", "{runs}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(cfg.Meter, c.name, c.desc, c.units); err != nil {
			return nil, err
		}
	}

	if m.usageBilledAmount, err = NewFloatCounter(cfg.Meter, "medsupply_usage_billed_amount_total",
		"Billing total of submitted usage", "{currency}"); err != nil {
		return nil, err
	}
	if m.reconciliationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "medsupply_reconciliation_duration_seconds",
		Description: "Time to fetch and compare dispensed and used quantities",
		Unit:        "s",
		Boundaries:  ReconciliationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.reconciliationDiscrepancies, err = NewGauge(cfg.Meter, "medsupply_reconciliation_discrepancies",
		"Rows with a non-zero difference in the last comparison", "{rows}"); err != nil {
		return nil, err
	}
	if m.reconciliationRows, err = NewGauge(cfg.Meter, "medsupply_reconciliation_rows",
		"Rows in the last comparison", "{rows}"); err != nil {
		return nil, err
	}
	if m.recordsByStatus, err = NewGauge(cfg.Meter, "medsupply_usage_records_open",
		"Non-voided usage records per billing status", "{records}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordUsageSubmitted counts a new record, its lines and its total
func (m *SupplyMetrics) RecordUsageSubmitted(ctx context.Context, department string, lines int, total decimal.Decimal) {
	attr := AttrDepartment.String(department)
	m.usageSubmitted.Inc(ctx, attr)
	m.usageLines.Add(ctx, int64(lines), attr)
	amount, _ := total.Float64()
	m.usageBilledAmount.Add(ctx, amount, attr)
}

// RecordUsageAmended counts an amendment
func (m *SupplyMetrics) RecordUsageAmended(ctx context.Context, department string) {
	m.usageAmended.Inc(ctx, AttrDepartment.String(department))
}

// RecordReturn counts a return and its quantity
func (m *SupplyMetrics) RecordReturn(ctx context.Context, department, reason string, quantity int) {
	m.returnsTotal.Inc(ctx, AttrDepartment.String(department), AttrReason.String(reason))
	m.returnedQuantity.Add(ctx, int64(quantity), AttrDepartment.String(department))
}

// RecordBillingTransition counts a billing status move
func (m *SupplyMetrics) RecordBillingTransition(ctx context.Context, from, to string) {
	m.billingTransitions.Inc(ctx, AttrBillingFrom.String(from), AttrBillingTo.String(to))
}

// RecordUsageVoided counts a void
func (m *SupplyMetrics) RecordUsageVoided(ctx context.Context) {
	m.usageVoided.Inc(ctx)
}

// RecordConflict counts a write rejected for a stale version
func (m *SupplyMetrics) RecordConflict(ctx context.Context, operation string) {
	m.conflicts.Inc(ctx, AttrOperation.String(operation))
}

// RecordReconciliation records one comparison
func (m *SupplyMetrics) RecordReconciliation(ctx context.Context, trigger string, rows, discrepancies int, complete bool, elapsed time.Duration) {
	attrs := []attribute.KeyValue{AttrTrigger.String(trigger), AttrComplete.Bool(complete)}
	m.reconciliationRuns.Inc(ctx, attrs...)
	m.reconciliationDuration.RecordDuration(ctx, elapsed, attrs...)
	m.reconciliationRows.Record(ctx, int64(rows), AttrTrigger.String(trigger))
	m.reconciliationDiscrepancies.Record(ctx, int64(discrepancies), AttrTrigger.String(trigger))
}

// StartPeriodicCollection refreshes the ledger gauges every interval until
// Stop is called or ctx ends. It does nothing without a snapshot provider.
func (m *SupplyMetrics) StartPeriodicCollection(ctx context.Context) {
	if m.snapshot == nil {
		return
	}
	m.collectOnce.Do(func() {
		go m.runPeriodicCollection(ctx)
	})
}

func (m *SupplyMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *SupplyMetrics) collect(ctx context.Context) {
	counts, err := m.snapshot.OpenRecordsByBillingStatus(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect ledger gauges", zap.Error(err))
		return
	}
	for status, n := range counts {
		m.recordsByStatus.Record(ctx, n, AttrBillingStatus.String(status))
	}
}

// Stop ends periodic collection
func (m *SupplyMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
