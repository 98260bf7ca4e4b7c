package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/orchestrator"

// Metrics records pipeline requests and stage timings.
type Metrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	stages   metric.Float64Histogram
}

// NewMetrics creates pipeline instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	m := &Metrics{}
	var err error

	m.requests, err = meter.Int64Counter(
		"lexivoice.pipeline.requests_total",
		metric.WithDescription("Pipeline requests by jurisdiction, channel and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create pipeline request counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"lexivoice.pipeline.duration_seconds",
		metric.WithDescription("End-to-end pipeline duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn("failed to create pipeline duration histogram", zap.Error(err))
	}

	m.stages, err = meter.Float64Histogram(
		"lexivoice.pipeline.stage_duration_seconds",
		metric.WithDescription("Duration of each pipeline stage by status"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}
	return m
}

func (m *Metrics) recordStage(ctx context.Context, t StageTiming) {
	if m == nil || m.stages == nil {
		return
	}
	m.stages.Record(ctx, t.Duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", string(t.Stage)),
		attribute.String("status", string(t.Status)),
	))
}

func (m *Metrics) recordRequest(ctx context.Context, req Request, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("jurisdiction", req.Jurisdiction),
		attribute.String("channel", string(req.Channel)),
		attribute.String("outcome", outcome),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
}
