package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/app"
	"github.com/itsmevijay17/LexiVoice/internal/config"
	"github.com/itsmevijay17/LexiVoice/internal/logging"
	"github.com/itsmevijay17/LexiVoice/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// runtime is what every command that touches the pipeline needs.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	app       *app.App
}

type runtimeOptions struct {
	// logToStderr keeps stdout free for a protocol stream.
	logToStderr bool
	// quiet raises the log level to warn for interactive commands.
	quiet bool
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// contextWithTimeout applies d unless it is zero.
func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newRuntime loads config and brings up telemetry, logging and the app.
// The caller must call close.
func newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, cfg.Observability.ServiceName)
	if err != nil {
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	logCfg.Output.Stderr = opts.logToStderr
	if opts.quiet && logCfg.Level < zap.WarnLevel {
		logCfg.Level = zap.WarnLevel
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to initialize lexivoice: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, telemetry: tel, app: a}, nil
}

func (r *runtime) close() {
	zl := r.logger.Underlying()
	if err := r.app.Close(); err != nil {
		zl.Warn("error closing components", zap.Error(err))
	}
	shutdownTelemetry(r.telemetry)
	_ = r.logger.Sync()
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
	}
}
