package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestTelemetry records spans and metrics in memory.
type TestTelemetry struct {
	*Telemetry
	Spans  *tracetest.InMemoryExporter
	Reader *sdkmetric.ManualReader
}

// NewTestTelemetry returns an enabled instance with synchronous span export
// and a manual metric reader. Nothing is installed globally.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			cfg:    cfg,
			logger: zap.NewNop(),
			tp:     sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans)),
			mp:     sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		Spans:  spans,
		Reader: reader,
	}
}

// TracerProvider returns the recording tracer provider.
func (t *TestTelemetry) TracerProvider() *sdktrace.TracerProvider { return t.tp }

// MeterProvider returns the recording meter provider.
func (t *TestTelemetry) MeterProvider() *sdkmetric.MeterProvider { return t.mp }

// SpanNames lists finished spans in end order.
func (t *TestTelemetry) SpanNames() []string {
	stubs := t.Spans.GetSpans()
	names := make([]string, len(stubs))
	for i, s := range stubs {
		names[i] = s.Name
	}
	return names
}

// Span returns the first finished span called name.
func (t *TestTelemetry) Span(tb testing.TB, name string) tracetest.SpanStub {
	tb.Helper()
	for _, s := range t.Spans.GetSpans() {
		if s.Name == name {
			return s
		}
	}
	tb.Fatalf("span %q not recorded; have %v", name, t.SpanNames())
	return tracetest.SpanStub{}
}

// Collect reads the current metric state.
func (t *TestTelemetry) Collect(tb testing.TB) metricdata.ResourceMetrics {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.Reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	return rm
}
