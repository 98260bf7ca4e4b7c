package embeddings

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Embedder turns passages and queries into unit-normalized vectors.
type Embedder struct {
	backend       Backend
	model         string
	batchSize     int
	maxInputChars int
	metrics       *Metrics
	logger        *zap.Logger
}

// NewEmbedder wraps a loaded backend.
func NewEmbedder(backend Backend, cfg Config, logger *zap.Logger) (*Embedder, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrInvalidConfig)
	}
	if backend.Dimension() <= 0 {
		return nil, fmt.Errorf("%w: backend reports dimension %d", ErrInvalidConfig, backend.Dimension())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Embedder{
		backend:       backend,
		model:         cfg.Model,
		batchSize:     cfg.BatchSize,
		maxInputChars: cfg.MaxInputChars,
		metrics:       NewMetrics(logger),
		logger:        logger,
	}, nil
}

// New creates the configured backend and wraps it.
func New(cfg Config, logger *zap.Logger) (*Embedder, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading embedding backend %q: %w", cfg.Backend, err)
	}
	e, err := NewEmbedder(backend, cfg, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return e, nil
}

// Dimension returns the vector dimension, fixed for the Embedder's lifetime.
func (e *Embedder) Dimension() int {
	return e.backend.Dimension()
}

// Model returns the configured model name.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedDocuments embeds corpus passages.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return e.encode(ctx, "embed_documents", texts)
}

// EmbedQuery embeds a single query. It shares the passage code path.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := e.encode(ctx, "embed_query", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Close releases the backend.
func (e *Embedder) Close() error {
	return e.backend.Close()
}

func (e *Embedder) encode(ctx context.Context, operation string, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordGeneration(ctx, e.model, operation, time.Since(start), len(texts), err)
	}()

	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = e.preprocess(t)
	}

	dim := e.backend.Dimension()
	vectors = make([][]float32, 0, len(texts))
	for lo := 0; lo < len(prepared); lo += e.batchSize {
		hi := min(lo+e.batchSize, len(prepared))
		batch, berr := e.backend.EmbedBatch(ctx, prepared[lo:hi])
		if berr != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", lo, hi, berr)
		}
		if len(batch) != hi-lo {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(batch), hi-lo)
		}
		for i, v := range batch {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: text %d has dimension %d, want %d", ErrDimensionMismatch, lo+i, len(v), dim)
			}
			if err := normalize(v); err != nil {
				return nil, fmt.Errorf("text %d: %w", lo+i, err)
			}
			vectors = append(vectors, v)
		}
	}
	return vectors, nil
}

// preprocess is applied identically to passages and queries.
func (e *Embedder) preprocess(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > e.maxInputChars {
		text = string([]rune(text)[:e.maxInputChars])
	}
	return text
}

// normalize scales v to unit L2 norm in place.
func normalize(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("%w: vector cannot be normalized", ErrEmbeddingFailed)
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return nil
}
