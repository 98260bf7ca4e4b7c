package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// LibreConfig configures the LibreTranslate provider.
type LibreConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute float64
	HTTPClient        *http.Client
}

// Libre calls a LibreTranslate server.
type Libre struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

type libreTranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText string `json:"translatedText"`
}

type libreDetectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type libreDetection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// NewLibre creates the LibreTranslate provider.
func NewLibre(cfg LibreConfig) (*Libre, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("libretranslate requires a base URL")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	l := &Libre{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
	if cfg.RequestsPerMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
	}
	return l, nil
}

// Name returns "libre".
func (l *Libre) Name() string { return "libre" }

// Translate posts to /translate.
func (l *Libre) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == AutoDetect {
		source = "auto"
	}
	var out libreTranslateResponse
	err := l.post(ctx, "/translate", libreTranslateRequest{
		Q:      text,
		Source: source,
		Target: target,
		Format: "text",
		APIKey: l.apiKey,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.TranslatedText, nil
}

// DetectLanguage posts to /detect. LibreTranslate reports confidence as
// a percentage.
func (l *Libre) DetectLanguage(ctx context.Context, text string) (Detection, error) {
	var out []libreDetection
	if err := l.post(ctx, "/detect", libreDetectRequest{Q: text, APIKey: l.apiKey}, &out); err != nil {
		return Detection{}, err
	}
	if len(out) == 0 {
		return Detection{}, ErrEmptyResult
	}
	return Detection{Language: out[0].Language, Confidence: out[0].Confidence / 100}, nil
}

func (l *Libre) post(ctx context.Context, path string, in, out any) error {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling libretranslate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("libretranslate status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
