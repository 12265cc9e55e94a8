// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"batchplane/internal/batch"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
// The shutdown function should be called on application exit for graceful cleanup.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// RegisterSchedulerMetrics exposes the scheduler's live state as observable
// gauges. Values are read only when scraped.
func RegisterSchedulerMetrics(scheduler *batch.Scheduler) error {
	meter := otel.Meter("batchplane")

	gauges := []struct {
		name string
		desc string
		read func(batch.SchedulerStats) int64
	}{
		{"batchplane.queue.depth", "Jobs waiting in the priority queue",
			func(s batch.SchedulerStats) int64 { return int64(s.QueueSize) }},
		{"batchplane.jobs.active", "Jobs currently executing",
			func(s batch.SchedulerStats) int64 { return int64(s.ActiveJobs) }},
		{"batchplane.jobs.submitted", "Total jobs submitted",
			func(s batch.SchedulerStats) int64 { return s.TotalSubmitted }},
		{"batchplane.jobs.completed", "Total jobs completed",
			func(s batch.SchedulerStats) int64 { return s.TotalCompleted }},
		{"batchplane.jobs.failed", "Total jobs terminally failed",
			func(s batch.SchedulerStats) int64 { return s.TotalFailed }},
		{"batchplane.jobs.cancelled", "Total jobs cancelled",
			func(s batch.SchedulerStats) int64 { return s.TotalCancelled }},
	}

	for _, g := range gauges {
		read := g.read
		_, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
				obs.Observe(read(scheduler.Stats()))
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", g.name, err)
		}
	}
	return nil
}
