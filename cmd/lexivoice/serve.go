package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	lvhttp "github.com/itsmevijay17/LexiVoice/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API and preload the configured jurisdiction indexes in
the background. The server shuts down gracefully on SIGINT or SIGTERM.

Endpoints:
  POST /api/v1/chat            text question
  POST /api/v1/chat/voice      transcribed spoken question
  GET  /api/v1/jurisdictions   available jurisdictions
  GET  /api/v1/languages       supported languages
  GET  /health                 liveness and telemetry status
  GET  /metrics                Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.close()
	zl := rt.logger.Underlying()

	cfg := rt.cfg
	zl.Info("Starting lexivoice",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Observability.ServiceName),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	rt.app.Preload()

	srv, err := lvhttp.NewServer(rt.app, zl, &lvhttp.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RequestTimeout:  cfg.Server.RequestTimeout,
		BodyLimit:       cfg.Server.BodyLimit,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Version:         version,
		Telemetry:       rt.telemetry,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	zl.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s/health", srv.Addr())),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Strings("preload", cfg.Index.Preload))

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	zl.Info("Server shutdown complete")
	return nil
}
