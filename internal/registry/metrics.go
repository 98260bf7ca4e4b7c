package registry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/registry"

// Metrics records index loads and builds.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

// NewMetrics creates registry instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	m := &Metrics{}
	var err error

	m.duration, err = meter.Float64Histogram(
		"lexivoice.index.duration_seconds",
		metric.WithDescription("Duration of index loads and builds by jurisdiction"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		logger.Warn("failed to create index duration histogram", zap.Error(err))
	}

	m.total, err = meter.Int64Counter(
		"lexivoice.index.operations_total",
		metric.WithDescription("Index loads and builds by jurisdiction, operation and status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create index operations counter", zap.Error(err))
	}
	return m
}

// Record records one load or build.
func (m *Metrics) Record(ctx context.Context, jurisdiction, operation string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("jurisdiction", jurisdiction),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if m.total != nil {
		m.total.Add(ctx, 1, attrs)
	}
}
