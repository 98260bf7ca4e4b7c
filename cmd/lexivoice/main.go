// Lexivoice answers legal questions from statute text, in the asker's
// language, over HTTP, MCP stdio, or the command line.
//
// Usage:
//
//	# Start the HTTP API (default command)
//	lexivoice serve
//
//	# Serve MCP tools on stdio
//	lexivoice mcp
//
//	# Rebuild the persisted index for one jurisdiction
//	lexivoice build-index india
//
//	# Ask a question without a server
//	lexivoice ask --jurisdiction india "What notice is required before retrenchment?"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lexivoice",
	Short: "Multilingual legal question answering over statute text",
	Long: `lexivoice retrieves passages from per-jurisdiction statute indexes and
asks a language model to answer from them, translating between the
asker's language and English on the way in and out.

Running lexivoice without a subcommand starts the HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/lexivoice/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("lexivoice %s (commit %s, built %s)\n", version, gitCommit, buildDate))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(buildIndexCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(setupONNXCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "lexivoice\n")
		fmt.Fprintf(out, "Version:    %s\n", version)
		fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
		fmt.Fprintf(out, "Build Date: %s\n", buildDate)
	},
}
