package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by spans and instruments. Patient identifiers are
// never recorded as attributes.
const (
	AttrDepartment  = attribute.Key("department_code")
	AttrSupplyCode  = attribute.Key("supply_code")
	AttrQuantity    = attribute.Key("quantity")
	AttrLines       = attribute.Key("lines")
	AttrUsageRecord = attribute.Key("usage_record_id")
	AttrReason      = attribute.Key("reason")
	AttrOperation   = attribute.Key("operation")
	AttrTrigger     = attribute.Key("trigger")
	AttrComplete    = attribute.Key("complete")
	AttrRows        = attribute.Key("rows")

	AttrBillingFrom   = attribute.Key("billing.from")
	AttrBillingTo     = attribute.Key("billing.to")
	AttrBillingStatus = attribute.Key("billing.status")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")
)

// Histogram bucket boundaries in seconds
var (
	HTTPDurationBuckets           = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets             = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	ReconciliationDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)
