package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/partnerled/gdapctl"

// Metrics holds the metric instruments the engine records into.
type Metrics struct {
	ItemsProcessedTotal metric.Int64Counter
	ItemsSucceededTotal metric.Int64Counter
	ItemsFailedTotal    metric.Int64Counter
	ItemsRetriedTotal   metric.Int64Counter
	ItemsSkippedTotal   metric.Int64Counter

	RemoteCallsTotal   metric.Int64Counter
	RemoteCallDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if
// necessary.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ItemsProcessedTotal, _ = meter.Int64Counter(
		"gdapctl.items.processed.total",
		metric.WithDescription("Total number of work items processed"),
		metric.WithUnit("{item}"),
	)

	m.ItemsSucceededTotal, _ = meter.Int64Counter(
		"gdapctl.items.succeeded.total",
		metric.WithDescription("Total number of work items that reached a success state"),
		metric.WithUnit("{item}"),
	)

	m.ItemsFailedTotal, _ = meter.Int64Counter(
		"gdapctl.items.failed.total",
		metric.WithDescription("Total number of work items that failed"),
		metric.WithUnit("{item}"),
	)

	m.ItemsRetriedTotal, _ = meter.Int64Counter(
		"gdapctl.items.retried.total",
		metric.WithDescription("Total number of transient-failure retries"),
		metric.WithUnit("{retry}"),
	)

	m.ItemsSkippedTotal, _ = meter.Int64Counter(
		"gdapctl.items.skipped.total",
		metric.WithDescription("Total number of malformed input records skipped"),
		metric.WithUnit("{item}"),
	)

	m.RemoteCallsTotal, _ = meter.Int64Counter(
		"gdapctl.remote.calls.total",
		metric.WithDescription("Total number of partner API calls"),
		metric.WithUnit("{call}"),
	)

	m.RemoteCallDuration, _ = meter.Float64Histogram(
		"gdapctl.remote.calls.duration",
		metric.WithDescription("Duration of partner API calls"),
		metric.WithUnit("ms"),
	)

	return m
}
