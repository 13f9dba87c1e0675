package supply

import (
	"context"
	"fmt"

	"github.com/medsupply/backend/internal/domain/shared"
	"github.com/medsupply/backend/internal/domain/supply"
	"go.uber.org/zap"
)

var usageEventTypes = []string{
	supply.EventTypeUsageSubmitted,
	supply.EventTypeUsageAmended,
	supply.EventTypeReturnRecorded,
	supply.EventTypeUsageBillingStatusChanged,
	supply.EventTypeUsageVoided,
}

// AuditLogHandler writes one structured audit line per usage event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditLogHandler) EventTypes() []string {
	return usageEventTypes
}

// Handle logs the event
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("usage_record_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *supply.UsageSubmittedEvent:
		fields = append(fields,
			zap.String("patient_hn", e.PatientHN),
			zap.String("department_code", e.DepartmentCode),
			zap.String("actor", e.RecordedBy),
			zap.Int("lines", e.LineCount),
			zap.String("total", e.Total.StringFixed(2)),
		)
	case *supply.UsageAmendedEvent:
		fields = append(fields,
			zap.String("actor", e.AmendedBy),
			zap.Int("lines", e.LineCount),
			zap.String("previous_subtotal", e.PreviousSubtotal.StringFixed(2)),
			zap.String("subtotal", e.Subtotal.StringFixed(2)),
		)
	case *supply.ReturnRecordedEvent:
		fields = append(fields,
			zap.String("return_id", e.ReturnID.String()),
			zap.String("supply_code", e.SupplyCode),
			zap.Int("quantity", e.Quantity),
			zap.String("reason", string(e.Reason)),
			zap.String("actor", e.ReturnedBy),
		)
	case *supply.UsageBillingStatusChangedEvent:
		fields = append(fields,
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
			zap.String("actor", e.ChangedBy),
		)
	case *supply.UsageVoidedEvent:
		fields = append(fields,
			zap.String("reason", e.Reason),
			zap.String("actor", e.VoidedBy),
		)
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	h.logger.Info("usage event", fields...)
	return nil
}

// MetricsHandler turns usage events into business metrics
type MetricsHandler struct {
	metrics Metrics
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(m Metrics) *MetricsHandler {
	if m == nil {
		m = noopMetrics{}
	}
	return &MetricsHandler{metrics: m}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsHandler) EventTypes() []string {
	return usageEventTypes
}

// Handle records the metric matching the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *supply.UsageSubmittedEvent:
		h.metrics.RecordUsageSubmitted(ctx, e.DepartmentCode, e.LineCount, e.Total)
	case *supply.UsageAmendedEvent:
		h.metrics.RecordUsageAmended(ctx, e.DepartmentCode)
	case *supply.ReturnRecordedEvent:
		h.metrics.RecordReturn(ctx, e.DepartmentCode, string(e.Reason), e.Quantity)
	case *supply.UsageBillingStatusChangedEvent:
		h.metrics.RecordBillingTransition(ctx, string(e.From), string(e.To))
	case *supply.UsageVoidedEvent:
		h.metrics.RecordUsageVoided(ctx)
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}
