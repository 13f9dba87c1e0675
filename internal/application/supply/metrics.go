package supply

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Metrics receives supply business measurements. The telemetry package
// provides the OpenTelemetry implementation.
type Metrics interface {
	RecordUsageSubmitted(ctx context.Context, department string, lines int, total decimal.Decimal)
	RecordUsageAmended(ctx context.Context, department string)
	RecordReturn(ctx context.Context, department, reason string, quantity int)
	RecordBillingTransition(ctx context.Context, from, to string)
	RecordUsageVoided(ctx context.Context)
	RecordConflict(ctx context.Context, operation string)
	RecordReconciliation(ctx context.Context, trigger string, rows, discrepancies int, complete bool, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordUsageSubmitted(context.Context, string, int, decimal.Decimal) {}
func (noopMetrics) RecordUsageAmended(context.Context, string) {}
func (noopMetrics) RecordReturn(context.Context, string, string, int) {}
func (noopMetrics) RecordBillingTransition(context.Context, string, string) {}
func (noopMetrics) RecordUsageVoided(context.Context) {}
func (noopMetrics) RecordConflict(context.Context, string) {}
func (noopMetrics) RecordReconciliation(context.Context, string, int, int, bool, time.Duration) {}
