package partition

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/chunker"
	"github.com/itsmevijay17/LexiVoice/internal/corpus"
)

// Embedder is the subset of embeddings.Embedder the builder needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Builder turns a document corpus into a persisted Index.
type Builder struct {
	chunker  *chunker.Chunker
	embedder Embedder
	store    *Store
	logger   *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(c *chunker.Chunker, e Embedder, s *Store, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{chunker: c, embedder: e, store: s, logger: logger}
}

// Build chunks and embeds docs, persists the index atomically and returns
// the index as read back from disk.
func (b *Builder) Build(ctx context.Context, jurisdiction string, docs []corpus.Document) (idx *Index, err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "partition.Build")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("jurisdiction", jurisdiction), attribute.Int("documents", len(docs)))

	if err := ValidateJurisdiction(jurisdiction); err != nil {
		return nil, err
	}
	start := time.Now()

	owned := make([]corpus.Document, len(docs))
	for i, d := range docs {
		if d.Jurisdiction == "" {
			d.Jurisdiction = jurisdiction
		}
		owned[i] = d
	}

	chunks, err := b.chunker.ChunkAll(owned)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", jurisdiction, err)
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		vectors, err = b.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", jurisdiction, err)
		}
	}

	built, err := NewIndex(jurisdiction, b.embedder.Dimension(), chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("assembling %s: %w", jurisdiction, err)
	}
	if err := b.store.Save(ctx, built, b.embedder.Model()); err != nil {
		return nil, fmt.Errorf("persisting %s: %w", jurisdiction, err)
	}

	idx, err = b.store.Load(ctx, jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("verifying %s: %w", jurisdiction, err)
	}

	b.logger.Info("index built",
		zap.String("jurisdiction", jurisdiction),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", idx.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return idx, nil
}
