package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/app"
	"github.com/itsmevijay17/LexiVoice/internal/auditlog"
	"github.com/itsmevijay17/LexiVoice/internal/orchestrator"
)

// Service is the subset of the application the tools call into.
type Service interface {
	Ask(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
	AskVoice(ctx context.Context, req orchestrator.VoiceRequest) (*orchestrator.Response, error)
	Jurisdictions() ([]app.JurisdictionStatus, error)
	Feedback(ctx context.Context, fb auditlog.Feedback) (auditlog.Feedback, error)
}

// Server is an MCP server backed by a Service.
type Server struct {
	mcp     *mcp.Server
	svc     Service
	catalog *Catalog
	metrics *toolMetrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "lexivoice")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "lexivoice",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server and registers its tools.
func NewServer(cfg *Config, svc Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if svc == nil {
		return nil, fmt.Errorf("service is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		svc:     svc,
		catalog: NewCatalog(),
		metrics: newToolMetrics(otel.Meter(instrumentationName), cfg.Logger),
		logger:  cfg.Logger,
	}

	s.registerLegalTools()
	s.registerFeedbackTools()
	s.registerCatalogTools()
	s.registerSearchTools()
	return s, nil
}

// Run serves on the stdio transport until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve serves a single session on transport.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Catalog returns the tools this server exposes.
func (s *Server) Catalog() *Catalog {
	return s.catalog
}

// addTool registers a typed tool handler along with its metadata and
// wraps it with invocation metrics.
func addTool[In, Out any](s *Server, meta ToolInfo, h mcp.ToolHandlerFor[In, Out]) {
	s.catalog.Add(meta)
	name := meta.Name
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: meta.Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		done := s.metrics.track(ctx, name)
		res, out, err := h(ctx, req, in)
		done(err)
		if err != nil {
			s.logger.Debug("tool call failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	})
}
