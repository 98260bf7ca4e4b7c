package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lvhttp "github.com/itsmevijay17/LexiVoice/internal/http"
	"github.com/itsmevijay17/LexiVoice/internal/orchestrator"
)

var askFlags struct {
	jurisdiction string
	language     string
	topK         int
	server       string
	jsonOutput   bool
	timeout      time.Duration
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a legal question",
	Long: `Ask a legal question and print the answer with its sources.

Without --server the pipeline runs in this process using the local config.
With --server the question is sent to a running lexivoice HTTP API.

Examples:
  lexivoice ask -j india "What is the minimum wage?"
  lexivoice ask -j canada -l fr "Quel est le salaire minimum ?"
  lexivoice ask -j usa --server http://localhost:8000 --json "Is overtime mandatory?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	f := askCmd.Flags()
	f.StringVarP(&askFlags.jurisdiction, "jurisdiction", "j", "", "jurisdiction to search (required)")
	f.StringVarP(&askFlags.language, "language", "l", "en", "question and answer language")
	f.IntVarP(&askFlags.topK, "top-k", "k", 0, "passages to retrieve (0 uses the configured default)")
	f.StringVar(&askFlags.server, "server", "", "send the question to this lexivoice server instead of running locally")
	f.BoolVar(&askFlags.jsonOutput, "json", false, "print the full response as JSON")
	f.DurationVar(&askFlags.timeout, "timeout", 2*time.Minute, "request timeout")
	_ = askCmd.MarkFlagRequired("jurisdiction")
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := lvhttp.ChatRequest{
		Query:        strings.Join(args, " "),
		Jurisdiction: askFlags.jurisdiction,
		UserLanguage: askFlags.language,
		TopK:         askFlags.topK,
	}

	var resp *lvhttp.ChatResponse
	var err error
	if askFlags.server != "" {
		resp, err = newAPIClient(askFlags.server, askFlags.timeout).chat(cmd.Context(), req)
	} else {
		resp, err = askLocal(req)
	}
	if err != nil {
		return err
	}
	return printAnswer(cmd.OutOrStdout(), resp, askFlags.jsonOutput)
}

func askLocal(req lvhttp.ChatRequest) (*lvhttp.ChatResponse, error) {
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, runtimeOptions{logToStderr: true, quiet: true})
	if err != nil {
		return nil, err
	}
	defer rt.close()

	ctx, cancelTimeout := contextWithTimeout(ctx, askFlags.timeout)
	defer cancelTimeout()

	resp, err := rt.app.Ask(ctx, orchestrator.Request{
		Query:        req.Query,
		Jurisdiction: req.Jurisdiction,
		UserLanguage: req.UserLanguage,
		TopK:         req.TopK,
	})
	if err != nil {
		return nil, err
	}
	out := lvhttp.NewChatResponse(resp)
	return &out, nil
}

func printAnswer(w io.Writer, resp *lvhttp.ChatResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintln(w, resp.Answer)
	if resp.Reasoning != "" {
		fmt.Fprintf(w, "\nReasoning: %s\n", resp.Reasoning)
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range resp.Sources {
			line := s.Title
			if s.Section != "" {
				line += ", section " + s.Section
			}
			if s.URL != "" {
				line += " <" + s.URL + ">"
			}
			fmt.Fprintf(w, "  - %s\n", line)
		}
	}
	fmt.Fprintf(w, "\nConfidence: %s (%.2f)", resp.ConfidenceLabel, resp.Confidence)
	if resp.Degraded {
		fmt.Fprint(w, " [degraded]")
	}
	fmt.Fprintln(w)
	for _, warn := range resp.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}
