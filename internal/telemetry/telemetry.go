package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Telemetry owns the process-wide providers installed by New.
type Telemetry struct {
	cfg    *Config
	logger *zap.Logger

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp log.LoggerProvider

	mu      sync.Mutex
	reasons []string
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	spanExporter   sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
	loggerProvider log.LoggerProvider
}

// WithLogger reports setup problems on logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSpanExporter replaces the OTLP span exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.spanExporter = exp }
}

// WithMetricExporter replaces the OTLP metric exporter.
func WithMetricExporter(exp sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exp }
}

// WithLoggerProvider hands a log provider to the zap bridge.
func WithLoggerProvider(lp log.LoggerProvider) Option {
	return func(o *options) { o.loggerProvider = lp }
}

// New installs the global tracer and meter providers and the W3C
// propagator when cfg is enabled. A disabled cfg yields an inert instance.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Telemetry{cfg: cfg, logger: o.logger.Named("telemetry")}
	if !cfg.Enabled {
		return t, nil
	}
	t.lp = o.loggerProvider
	res := newResource(cfg)

	spans := o.spanExporter
	if spans == nil {
		var err error
		if spans, err = newSpanExporter(ctx, cfg); err != nil {
			t.degrade("trace exporter", err)
		}
	}
	if spans != nil {
		t.tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spans),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.SampleRate)),
		)
		otel.SetTracerProvider(t.tp)
	}

	if cfg.Metrics {
		metrics := o.metricExporter
		if metrics == nil {
			var err error
			if metrics, err = newMetricExporter(ctx, cfg); err != nil {
				t.degrade("metric exporter", err)
			}
		}
		if metrics != nil {
			t.mp = sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(cfg.MetricsInterval))),
			)
			otel.SetMeterProvider(t.mp)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		t.logger.Debug("otel export error", zap.Error(err))
	}))

	t.logger.Info("telemetry enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Bool("metrics", t.mp != nil),
	)
	return t, nil
}

// LoggerProvider returns the provider for the zap bridge, or nil when none
// was supplied.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.lp
}

// Shutdown flushes and stops the providers. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout)
		defer cancel()
	}
	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// HealthStatus is embedded in the /health response.
type HealthStatus struct {
	Enabled  bool     `json:"enabled"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Health reports whether any signal failed to start.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Enabled:  t.cfg.Enabled,
		Degraded: len(t.reasons) > 0,
		Reasons:  append([]string(nil), t.reasons...),
	}
}

func (t *Telemetry) degrade(what string, err error) {
	t.mu.Lock()
	t.reasons = append(t.reasons, fmt.Sprintf("%s: %v", what, err))
	t.mu.Unlock()
	t.logger.Warn("telemetry degraded", zap.String("component", what), zap.Error(err))
}
