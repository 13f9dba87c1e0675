package supply

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// UsageService is the usage ledger: it records, amends, reads and voids
// usage records and moves their billing status
type UsageService struct {
	repo           supply.UsageRecordRepository
	catalog        supply.CatalogLookup
	calc           *supply.BillingCalculator
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
}

// NewUsageService creates a new UsageService
func NewUsageService(repo supply.UsageRecordRepository, catalog supply.CatalogLookup, calc *supply.BillingCalculator, logger *zap.Logger) *UsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageService{
		repo:    repo,
		catalog: catalog,
		calc:    calc,
		metrics: noopMetrics{},
		logger:  logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *UsageService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the business metrics recorder
func (s *UsageService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Submit validates a new usage submission, prices its lines from the
// catalog and stores it at version 1
func (s *UsageService) Submit(ctx context.Context, req SubmitUsageRequest) (*UsageRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "submit",
		telemetry.AttrDepartment.String(req.DepartmentCode),
		telemetry.AttrLines.Int(len(req.Supplies)),
	)
	defer span.End()

	draft := req.ToDraft()
	if verr := draft.Validate(); verr.HasErrors() {
		return nil, verr
	}

	lines, err := supply.BuildLines(ctx, s.catalog, draft.Lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	record, err := supply.NewUsageRecord(draft, lines, s.calc)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(telemetry.AttrUsageRecord.String(record.ID.String()))

	s.logger.Info("Usage record submitted",
		zap.String("usage_record_id", record.ID.String()),
		zap.String("department_code", record.DepartmentCode),
		zap.Int("lines", len(record.Lines)),
		zap.String("total", record.Billing.Total.StringFixed(2)),
	)
	s.publishDomainEvents(ctx, record)

	resp := ToUsageRecordResponse(record)
	return &resp, nil
}

// Amend replaces the line set of a record. expectedVersion > 0 must equal
// the stored version; the write itself is always version guarded.
func (s *UsageService) Amend(ctx context.Context, id uuid.UUID, expectedVersion int, lineReqs []LineRequest, actor string) (*UsageRecordResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "usage", "amend",
		telemetry.AttrUsageRecord.String(id.String()),
	)
	defer span.End()

	drafts := toLineDrafts(lineReqs)
	if verr := supply.ValidateLines(drafts); verr.HasErrors() {
		return nil, verr
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion > 0 && record.Version != expectedVersion {
		s.metrics.RecordConflict(ctx, "amend")
		return nil, shared.NewConflictError("usage record", id.String(), expectedVersion)
	}

	lines, err := supply.BuildLines(ctx, s.catalog, drafts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := record.Amend(lines, actor, s.calc); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, record); err != nil {
		s.recordConflict(ctx, "amend", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Usage record amended",
		zap.String("usage_record_id", id.String()),
		zap.Int("version", record.Version),
		zap.String("actor", actor),
	)
	s.publishDomainEvents(ctx, record)

	resp := ToUsageRecordResponse(record)
	return &resp, nil
}

// Get returns one record, voided or not
func (s *UsageService) Get(ctx context.Context, id uuid.UUID) (*UsageRecordResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToUsageRecordResponse(record)
	return &resp, nil
}

// List returns one page of records and the total count
func (s *UsageService) List(ctx context.Context, filter UsageListFilter) ([]UsageRecordResponse, int64, shared.Filter, error) {
	f := filter.ToFilter()
	if status := filter.BillingStatus; status != "" && !supply.BillingStatus(status).IsValid() {
		return nil, 0, f, shared.NewValidationError(shared.FieldError{Field: "billing_status", Message: "must be one of draft, billed, disputed, settled"})
	}
	if filter.DateFrom != nil && filter.DateTo != nil && !filter.DateFrom.Before(*filter.DateTo) {
		return nil, 0, f, shared.NewValidationError(shared.FieldError{Field: "date_to", Message: "must be after date_from"})
	}

	records, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}

	items := make([]UsageRecordResponse, len(records))
	for i := range records {
		items[i] = ToUsageRecordResponse(&records[i])
	}
	return items, total, f, nil
}

// TransitionBilling moves the billing status forward
func (s *UsageService) TransitionBilling(ctx context.Context, id uuid.UUID, status, actor string) (*UsageRecordResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.TransitionBilling(supply.BillingStatus(status), actor); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, record); err != nil {
		s.recordConflict(ctx, "billing_transition", err)
		return nil, err
	}

	s.logger.Info("Usage billing status changed",
		zap.String("usage_record_id", id.String()),
		zap.String("status", status),
		zap.String("actor", actor),
	)
	s.publishDomainEvents(ctx, record)

	resp := ToUsageRecordResponse(record)
	return &resp, nil
}

// Void soft-deletes a record. Voided records are excluded from lists and
// reconciliation but stay readable by id.
func (s *UsageService) Void(ctx context.Context, id uuid.UUID, reason, actor string) (*UsageRecordResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.Void(reason, actor); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWithLock(ctx, record); err != nil {
		s.recordConflict(ctx, "void", err)
		return nil, err
	}

	s.logger.Info("Usage record voided",
		zap.String("usage_record_id", id.String()),
		zap.String("actor", actor),
	)
	s.publishDomainEvents(ctx, record)

	resp := ToUsageRecordResponse(record)
	return &resp, nil
}

func (s *UsageService) recordConflict(ctx context.Context, operation string, err error) {
	if _, ok := asConflict(err); ok {
		s.metrics.RecordConflict(ctx, operation)
	}
}

func asConflict(err error) (*shared.ConflictError, bool) {
	var conflict *shared.ConflictError
	ok := errors.As(err, &conflict)
	return conflict, ok
}

// publishDomainEvents hands pending events to the bus after commit.
// Publish failures are logged and never fail the operation.
func (s *UsageService) publishDomainEvents(ctx context.Context, record *supply.UsageRecord) {
	publishDomainEvents(ctx, s.eventPublisher, s.logger, record)
}

func publishDomainEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, record *supply.UsageRecord) {
	events := record.PendingEvents()
	defer record.ClearEvents()
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), events...); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.String("usage_record_id", record.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}
