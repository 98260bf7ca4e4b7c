package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch indicates a backend returned vectors of the wrong size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Backend produces raw (not necessarily normalized) vectors.
// Implementations must be safe for concurrent use.
type Backend interface {
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the vector dimension.
	Dimension() int
	// Close releases resources held by the backend.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "fastembed" (default), "tei" or "hash".
	Backend string
	// Model is the embedding model name.
	Model string
	// CacheDir is the model cache directory (fastembed).
	CacheDir string
	// BaseURL is the TEI server URL (tei).
	BaseURL string
	// APIKey is sent as a bearer token when set (tei).
	APIKey string
	// Dimension overrides the model's dimension (hash, tei).
	Dimension int
	// BatchSize bounds the number of texts per backend call.
	BatchSize int
	// MaxInputChars truncates each text before encoding.
	MaxInputChars int
	// RequestsPerMinute rate-limits remote backends. Zero disables limiting.
	RequestsPerMinute float64
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "fastembed"
	}
	if c.Model == "" {
		c.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 2000
	}
	if c.Dimension <= 0 {
		c.Dimension = detectDimensionFromModel(c.Model)
	}
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case "fastembed", "hash":
	case "tei":
		if c.BaseURL == "" {
			return fmt.Errorf("%w: tei backend requires a base URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// NewBackend creates the backend selected by cfg. The model is loaded
// here, once; callers treat an error as fatal.
func NewBackend(cfg Config) (Backend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "fastembed":
		return NewFastEmbedBackend(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "tei":
		return NewTEIBackend(TEIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Dimension:         cfg.Dimension,
			RequestsPerMinute: cfg.RequestsPerMinute,
		})
	default:
		return NewHashBackend(cfg.Dimension), nil
	}
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := knownModelDimensions[model]; ok {
		return dim
	}
	switch m := strings.ToLower(model); {
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	default:
		return 384
	}
}

// knownModelDimensions lists the models fastembed-go ships.
var knownModelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}
