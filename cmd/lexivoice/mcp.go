package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmevijay17/LexiVoice/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools on stdio",
	Long: `Serve the legal question tools over the Model Context Protocol on
stdin/stdout. Logs go to stderr so stdout carries only protocol messages.

Tools: legal_ask, legal_ask_voice, legal_jurisdictions, legal_languages,
tool_search.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, runtimeOptions{logToStderr: true})
	if err != nil {
		return err
	}
	defer rt.close()

	rt.app.Preload()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    rt.cfg.Observability.ServiceName,
		Version: version,
		Logger:  rt.logger.Underlying(),
	}, rt.app)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return srv.Run(ctx)
}
