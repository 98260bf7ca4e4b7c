package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/mcp"

// toolMetrics counts tool calls, their latency and their failures by reason.
type toolMetrics struct {
	calls    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

func newToolMetrics(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	m := &toolMetrics{}
	var err error
	var errs []error

	m.calls, err = meter.Int64Counter("lexivoice.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool calls"),
		metric.WithUnit("{invocation}"))
	errs = append(errs, err)

	m.failures, err = meter.Int64Counter("lexivoice.mcp.tool.errors_total",
		metric.WithDescription("Failed MCP tool calls by reason"),
		metric.WithUnit("{error}"))
	errs = append(errs, err)

	// legal_ask runs the whole pipeline.
	m.duration, err = meter.Float64Histogram("lexivoice.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120))
	errs = append(errs, err)

	m.inflight, err = meter.Int64UpDownCounter("lexivoice.mcp.tool.active_requests",
		metric.WithDescription("In-flight MCP tool calls"),
		metric.WithUnit("{request}"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		logger.Warn("some mcp instruments are unavailable", zap.Error(err))
	}
	return m
}

// track marks a call as in flight and returns the func that records its
// outcome.
func (m *toolMetrics) track(ctx context.Context, tool string) func(error) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	start := time.Now()
	if m.inflight != nil {
		m.inflight.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if m.inflight != nil {
			m.inflight.Add(ctx, -1, attrs)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", failureReason(err)),
			))
		}
	}
}

// failureReason maps an error to a bounded label: the error kind, or
// timeout and canceled for context errors.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	if k := errkind.Of(err); k != errkind.Unknown {
		return k.String()
	}
	return "internal_error"
}
