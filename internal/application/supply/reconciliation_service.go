package supply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reconciliation triggers used as metric labels
const (
	TriggerAPI       = "api"
	TriggerScheduled = "scheduled"
)

const (
	defaultDispensedTimeout = 5 * time.Second
	defaultLedgerTimeout    = 10 * time.Second
)

// ReconciliationService compares dispensed quantities with ledger usage.
// It never writes.
type ReconciliationService struct {
	usageRepo        supply.UsageRecordRepository
	dispensed        supply.DispensedSource
	dispensedTimeout time.Duration
	ledgerTimeout    time.Duration
	metrics          Metrics
	logger           *zap.Logger
	now              func() time.Time
}

// ReconciliationOption configures a ReconciliationService
type ReconciliationOption func(*ReconciliationService)

// WithDispensedTimeout bounds each dispensed-source fetch
func WithDispensedTimeout(d time.Duration) ReconciliationOption {
	return func(s *ReconciliationService) {
		if d > 0 {
			s.dispensedTimeout = d
		}
	}
}

// WithLedgerTimeout bounds the ledger usage read
func WithLedgerTimeout(d time.Duration) ReconciliationOption {
	return func(s *ReconciliationService) {
		if d > 0 {
			s.ledgerTimeout = d
		}
	}
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) ReconciliationOption {
	return func(s *ReconciliationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(usageRepo supply.UsageRecordRepository, dispensed supply.DispensedSource, logger *zap.Logger, opts ...ReconciliationOption) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconciliationService{
		usageRepo:        usageRepo,
		dispensed:        dispensed,
		dispensedTimeout: defaultDispensedTimeout,
		ledgerTimeout:    defaultLedgerTimeout,
		metrics:          noopMetrics{},
		logger:           logger,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMetrics sets the business metrics recorder
func (s *ReconciliationService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Compare validates the query window and runs one comparison
func (s *ReconciliationService) Compare(ctx context.Context, q ReconciliationQuery) (*ReconciliationReportResponse, error) {
	window, err := supply.NewWindow(q.WindowStart, q.WindowEnd)
	if err != nil {
		return nil, err
	}
	report, err := s.Run(ctx, window, supply.ReconciliationFilter{
		DepartmentCode: q.DepartmentCode,
		SupplyCodes:    q.SupplyCodes,
	}, TriggerAPI)
	if err != nil {
		return nil, err
	}
	resp := ToReconciliationReportResponse(report)
	return &resp, nil
}

// Run fetches dispensed data and ledger usage concurrently and reconciles
// them. A slow or partial dispensed source yields an incomplete report; a
// failed ledger read fails the whole comparison.
func (s *ReconciliationService) Run(ctx context.Context, window supply.Window, filter supply.ReconciliationFilter, trigger string) (*supply.ReconciliationReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "compare",
		telemetry.AttrTrigger.String(trigger),
		telemetry.AttrDepartment.String(filter.DepartmentCode),
	)
	defer span.End()
	started := time.Now()

	var (
		batch        supply.DispensedBatch
		dispensedErr error
		usage        []supply.UsageTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dctx, cancel := context.WithTimeout(gctx, s.dispensedTimeout)
		defer cancel()
		b, err := s.dispensed.FetchDispensed(dctx, window, filter)
		if err != nil {
			dispensedErr = err
			return nil
		}
		batch = b
		return nil
	})
	g.Go(func() error {
		lctx, cancel := context.WithTimeout(gctx, s.ledgerTimeout)
		defer cancel()
		totals, err := s.usageRepo.UsageTotals(lctx, window, filter)
		if err != nil {
			if timedOut(lctx, err) {
				return shared.NewDependencyTimeoutError(supply.SourceLedger, err)
			}
			return fmt.Errorf("read usage totals: %w", err)
		}
		usage = totals
		return nil
	})
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	complete := dispensedErr == nil && batch.Complete
	var results []supply.ReconciliationResult
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("reconcile", filter.DepartmentCode), func(context.Context) {
		results = supply.Reconcile(window, filter, batch.Records, usage, complete)
	})
	report := &supply.ReconciliationReport{
		Window:            window,
		Results:           results,
		Complete:          complete,
		IncompleteSources: []string{},
		GeneratedAt:       s.now().UTC(),
	}
	if !complete {
		report.IncompleteSources = append(report.IncompleteSources, supply.SourceDispensed)
	}

	elapsed := time.Since(started)
	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int("rows", len(report.Results)),
		zap.Int("discrepancies", report.Discrepancies()),
		zap.Bool("complete", complete),
		zap.Duration("elapsed", elapsed),
	}
	if dispensedErr != nil {
		s.logger.Warn("Dispensed source unavailable, report is incomplete", append(fields, zap.Error(dispensedErr))...)
	} else {
		s.logger.Info("Reconciliation completed", fields...)
	}
	span.SetAttributes(telemetry.AttrComplete.Bool(complete), telemetry.AttrRows.Int(len(report.Results)))
	s.metrics.RecordReconciliation(ctx, trigger, len(report.Results), report.Discrepancies(), complete, elapsed)

	return report, nil
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, shared.ErrDependencyTimeout) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded)
}
