package translator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config selects and configures providers.
type Config struct {
	// Providers lists provider names in fallback order.
	Providers []string
	Timeout   time.Duration
	Google    GoogleConfig
	Libre     LibreConfig
	LLM       LLMConfig
}

// NewFromConfig builds the provider chain declared in cfg.
func NewFromConfig(ctx context.Context, cfg Config, logger *zap.Logger) (*Translator, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		var (
			p   Provider
			err error
		)
		switch name {
		case "google":
			p, err = NewGoogle(ctx, cfg.Google)
		case "libre":
			p, err = NewLibre(cfg.Libre)
		case "llm":
			p, err = NewLLM(cfg.LLM)
		case "whatlang":
			p = NewWhatlang()
		default:
			err = fmt.Errorf("unknown translation provider %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("translation provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	return New(providers, cfg.Timeout, logger)
}
