// Package translator translates queries and answers through an ordered
// list of providers, falling back to the next provider on any failure.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

const instrumentationName = "github.com/itsmevijay17/LexiVoice/internal/translator"

// AutoDetect asks a provider to detect the source language itself.
const AutoDetect = ""

var (
	// ErrUnsupported is returned by providers that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrEmptyResult is returned when a provider answers with no text.
	ErrEmptyResult = errors.New("provider returned an empty result")

	// ErrNoProviders is returned by New when the provider list is empty.
	ErrNoProviders = errors.New("no translation providers configured")
)

// Detection is a detected language.
type Detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Provider is a single translation backend.
type Provider interface {
	Name() string
	// Translate translates text from source to target. An empty source
	// means the provider should detect it.
	Translate(ctx context.Context, text, source, target string) (string, error)
	DetectLanguage(ctx context.Context, text string) (Detection, error)
}

// Result is the outcome of a translation.
type Result struct {
	Text       string `json:"text"`
	Original   string `json:"original"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Provider   string `json:"provider,omitempty"`
	Translated bool   `json:"translated"`
}

// ProviderStatus reports a provider's availability.
type ProviderStatus struct {
	Name        string    `json:"name"`
	Successes   int64     `json:"successes"`
	Failures    int64     `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}

type providerState struct {
	provider  Provider
	successes atomic.Int64
	failures  atomic.Int64

	mu          sync.Mutex
	lastError   string
	lastErrorAt time.Time
}

// Translator walks its providers in order until one succeeds.
type Translator struct {
	providers []*providerState
	timeout   time.Duration
	logger    *zap.Logger

	calls metric.Int64Counter
}

// New creates a translator over providers, tried in the given order.
// timeout bounds each provider call; zero means 10s.
func New(providers []Provider, timeout time.Duration, logger *zap.Logger) (*Translator, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Translator{timeout: timeout, logger: logger}
	for _, p := range providers {
		t.providers = append(t.providers, &providerState{provider: p})
	}

	calls, err := otel.Meter(instrumentationName).Int64Counter(
		"lexivoice.translation.calls_total",
		metric.WithDescription("Translation provider calls by provider, operation and status"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create translation counter", zap.Error(err))
	}
	t.calls = calls
	return t, nil
}

// Providers returns the provider names in fallback order.
func (t *Translator) Providers() []string {
	names := make([]string, len(t.providers))
	for i, s := range t.providers {
		names[i] = s.provider.Name()
	}
	return names
}

// Translate translates text into target, detecting the source language
// first. Text already in target is returned unchanged.
func (t *Translator) Translate(ctx context.Context, text, target string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{Text: text, Original: text, Target: target}, nil
	}
	source := AutoDetect
	if det, err := t.DetectLanguage(ctx, text); err == nil {
		source = det.Language
	} else {
		t.logger.Debug("language detection failed, letting provider detect", zap.Error(err))
	}
	return t.TranslateFrom(ctx, text, source, target)
}

// TranslateFrom translates text from source into target.
func (t *Translator) TranslateFrom(ctx context.Context, text, source, target string) (Result, error) {
	res := Result{Text: text, Original: text, Source: source, Target: target}
	if strings.TrimSpace(text) == "" || source == target {
		return res, nil
	}

	var errs []error
	for _, s := range t.providers {
		name := s.provider.Name()
		out, err := t.attempt(ctx, s, "translate", func(ctx context.Context) (string, error) {
			return s.provider.Translate(ctx, text, source, target)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		res.Text = out
		res.Provider = name
		res.Translated = true
		return res, nil
	}
	return res, unavailable(errs)
}

// DetectLanguage detects the language of text.
func (t *Translator) DetectLanguage(ctx context.Context, text string) (Detection, error) {
	if strings.TrimSpace(text) == "" {
		return Detection{}, fmt.Errorf("%w: empty text", errkind.ErrInvalidRequest)
	}

	var errs []error
	for _, s := range t.providers {
		var det Detection
		_, err := t.attempt(ctx, s, "detect", func(ctx context.Context) (string, error) {
			d, err := s.provider.DetectLanguage(ctx, text)
			if err != nil {
				return "", err
			}
			det = d
			det.Language = strings.ToLower(strings.TrimSpace(d.Language))
			return det.Language, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.provider.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return det, nil
	}
	return Detection{}, unavailable(errs)
}

// Status returns per-provider availability in fallback order.
func (t *Translator) Status() []ProviderStatus {
	out := make([]ProviderStatus, len(t.providers))
	for i, s := range t.providers {
		s.mu.Lock()
		out[i] = ProviderStatus{
			Name:        s.provider.Name(),
			Successes:   s.successes.Load(),
			Failures:    s.failures.Load(),
			LastError:   s.lastError,
			LastErrorAt: s.lastErrorAt,
		}
		s.mu.Unlock()
	}
	return out
}

func (t *Translator) attempt(ctx context.Context, s *providerState, op string, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := fn(callCtx)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyResult
	}

	status := "ok"
	if err != nil {
		status = "error"
		s.failures.Add(1)
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastErrorAt = time.Now()
		s.mu.Unlock()
		t.logger.Warn("translation provider failed",
			zap.String("provider", s.provider.Name()),
			zap.String("operation", op),
			zap.Error(err))
	} else {
		s.successes.Add(1)
	}
	if t.calls != nil {
		t.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", s.provider.Name()),
			attribute.String("operation", op),
			attribute.String("status", status),
		))
	}
	return out, err
}

func unavailable(errs []error) error {
	return fmt.Errorf("%w: %w", errkind.ErrTranslationUnavailable, errors.Join(errs...))
}
