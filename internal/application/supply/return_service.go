package supply

import (
	"context"

	"github.com/google/uuid"
	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReturnService records returns against usage lines and serves the return
// audit trail
type ReturnService struct {
	usageRepo      supply.UsageRecordRepository
	returnRepo     supply.ReturnEventRepository
	calc           *supply.BillingCalculator
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
}

// NewReturnService creates a new ReturnService
func NewReturnService(usageRepo supply.UsageRecordRepository, returnRepo supply.ReturnEventRepository, calc *supply.BillingCalculator, logger *zap.Logger) *ReturnService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnService{
		usageRepo:  usageRepo,
		returnRepo: returnRepo,
		calc:       calc,
		metrics:    noopMetrics{},
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReturnService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the business metrics recorder
func (s *ReturnService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// RecordReturn returns quantity of one line to stock. The updated counter,
// the re-derived billing and the return event commit together or not at
// all; a concurrent writer yields *shared.ConflictError and nothing is
// written.
func (s *ReturnService) RecordReturn(ctx context.Context, recordID uuid.UUID, req RecordReturnRequest, actor string) (*RecordReturnResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "return", "record",
		telemetry.AttrUsageRecord.String(recordID.String()),
		telemetry.AttrSupplyCode.String(req.SupplyCode),
		telemetry.AttrQuantity.Int(req.Quantity),
	)
	defer span.End()

	record, err := s.usageRepo.FindByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	ev, err := record.RecordReturn(supply.ReturnRequest{
		SupplyCode: req.SupplyCode,
		Quantity:   req.Quantity,
		Reason:     supply.ReturnReason(req.Reason),
		Note:       req.Note,
		Actor:      actor,
	}, s.calc)
	if err != nil {
		return nil, err
	}

	if err := s.usageRepo.SaveWithReturn(ctx, record, ev); err != nil {
		if _, ok := asConflict(err); ok {
			s.metrics.RecordConflict(ctx, "return")
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	line, _ := record.FindLine(ev.SupplyCode)
	s.logger.Info("Return recorded",
		zap.String("usage_record_id", recordID.String()),
		zap.String("supply_code", ev.SupplyCode),
		zap.Int("quantity", ev.Quantity),
		zap.Int("quantity_returned", line.QuantityReturned),
		zap.String("reason", string(ev.Reason)),
		zap.String("subtotal", record.Billing.Subtotal.StringFixed(2)),
	)
	publishDomainEvents(ctx, s.eventPublisher, s.logger, record)

	return &RecordReturnResponse{
		Return:      ToReturnEventResponse(ev),
		UsageRecord: ToUsageRecordResponse(record),
	}, nil
}

// History returns one page of return events, newest first
func (s *ReturnService) History(ctx context.Context, filter ReturnHistoryFilter) ([]ReturnEventResponse, int64, shared.Filter, error) {
	f, err := filter.ToFilter()
	if err != nil {
		return nil, 0, f, err
	}

	events, err := s.returnRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}
	total, err := s.returnRepo.Count(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}

	items := make([]ReturnEventResponse, len(events))
	for i := range events {
		items[i] = ToReturnEventResponse(&events[i])
	}
	return items, total, f, nil
}

// ForRecord returns every return of one record in the order recorded
func (s *ReturnService) ForRecord(ctx context.Context, recordID uuid.UUID) ([]ReturnEventResponse, error) {
	if _, err := s.usageRepo.FindByID(ctx, recordID); err != nil {
		return nil, err
	}
	events, err := s.returnRepo.FindByUsageRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	items := make([]ReturnEventResponse, len(events))
	for i := range events {
		items[i] = ToReturnEventResponse(&events[i])
	}
	return items, nil
}
