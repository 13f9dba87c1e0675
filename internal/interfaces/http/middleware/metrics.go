package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medsupply/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var sizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}

type httpMetrics struct {
	requests *telemetry.Counter
	rejected *telemetry.Counter
	latency  *telemetry.Histogram
	reqSize  *telemetry.Histogram
	respSize *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	var (
		m   httpMetrics
		err error
	)
	if m.requests, err = telemetry.NewCounter(meter, "http_server_request_total",
		"HTTP requests served", "{request}"); err != nil {
		return nil, err
	}
	if m.rejected, err = telemetry.NewCounter(meter, "http_server_rejected_writes_total",
		"Writes refused by a version conflict or a quantity rule", "{request}"); err != nil {
		return nil, err
	}
	histograms := []struct {
		dst        **telemetry.Histogram
		name, desc string
		unit       string
		buckets    []float64
	}{
		{&m.latency, "http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets},
		{&m.reqSize, "http_server_request_size_bytes", "HTTP request body size", "By", sizeBuckets},
		{&m.respSize, "http_server_response_size_bytes", "HTTP response body size", "By", sizeBuckets},
	}
	for _, h := range histograms {
		if *h.dst, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
			Name: h.name, Description: h.desc, Unit: h.unit, Boundaries: h.buckets,
		}); err != nil {
			return nil, err
		}
	}
	if m.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return &m, nil
}

// HTTPMetrics records request count, latency and sizes per route pattern.
// It is a pass-through when the provider is disabled.
func HTTPMetrics(mp *telemetry.MeterProvider) gin.HandlerFunc {
	if !mp.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(mp.Meter("http.server"))
}

// HTTPMetricsWithMeter is HTTPMetrics over an explicit meter
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}
	return m.observe
}

func passThrough(c *gin.Context) { c.Next() }

func (m *httpMetrics) observe(c *gin.Context) {
	ctx := c.Request.Context()
	begin := time.Now()
	m.inFlight.Add(ctx, 1)
	defer m.inFlight.Add(ctx, -1)

	c.Next()

	// route patterns keep record ids out of the label set
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	status := c.Writer.Status()
	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}
	m.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(status))...)
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		m.rejected.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(status))...)
	}
	m.latency.RecordDuration(ctx, time.Since(begin), attrs...)
	if n := c.Request.ContentLength; n > 0 {
		m.reqSize.Record(ctx, float64(n), attrs...)
	}
	if n := c.Writer.Size(); n > 0 {
		m.respSize.Record(ctx, float64(n), attrs...)
	}
}
