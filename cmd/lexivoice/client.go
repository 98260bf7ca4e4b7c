package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lvhttp "github.com/itsmevijay17/LexiVoice/internal/http"
)

const maxErrorBody = 4096

var healthServerURL string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running server's health",
	Long: `Check the health status of a running lexivoice HTTP server.

Examples:
  lexivoice health
  lexivoice health --server http://localhost:9000`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthServerURL, "server", "http://localhost:8000", "lexivoice server URL")
}

// apiClient talks to a running lexivoice server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		var apiErr lvhttp.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned status %d: %s (kind %s)", resp.StatusCode, apiErr.Error, apiErr.Kind)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *apiClient) chat(ctx context.Context, req lvhttp.ChatRequest) (*lvhttp.ChatResponse, error) {
	var resp lvhttp.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) health(ctx context.Context) (*lvhttp.HealthResponse, error) {
	var resp lvhttp.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	h, err := newAPIClient(healthServerURL, 5*time.Second).health(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", h.Status)
	if h.Version != "" {
		fmt.Fprintf(out, "Version:       %s\n", h.Version)
	}
	if h.Telemetry != nil {
		fmt.Fprintf(out, "Telemetry:     enabled=%t degraded=%t\n", h.Telemetry.Enabled, h.Telemetry.Degraded)
		for _, r := range h.Telemetry.Reasons {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return nil
}
