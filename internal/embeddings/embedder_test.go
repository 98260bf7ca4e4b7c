package embeddings

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingBackend captures the texts each batch receives.
type recordingBackend struct {
	mu      sync.Mutex
	inner   Backend
	batches [][]string
	err     error
	wrongN  bool
}

func (r *recordingBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), texts...))
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out, err := r.inner.EmbedBatch(ctx, texts)
	if r.wrongN && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, err
}

func (r *recordingBackend) Dimension() int { return r.inner.Dimension() }
func (r *recordingBackend) Close() error   { return nil }

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func newTestEmbedder(t *testing.T, backend Backend, cfg Config) *Embedder {
	t.Helper()
	e, err := NewEmbedder(backend, cfg, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := newTestEmbedder(t, NewHashBackend(384), Config{Backend: "hash"})
	ctx := context.Background()

	texts := []string{
		"The minimum wage is $15. Employers must comply.",
		"Overtime is paid at one and a half times the regular rate.",
		"न्यूनतम वेतन क्या है?",
		"?",
	}

	first, err := e.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	second, err := e.EmbedDocuments(ctx, texts)
	require.NoError(t, err)

	require.Len(t, first, len(texts))
	for i := range texts {
		assert.Len(t, first[i], 384)
		assert.InDelta(t, 1.0, norm(first[i]), 1e-5, "text %d is not unit norm", i)
		assert.Equal(t, first[i], second[i], "text %d is not deterministic", i)
	}
}

func TestEmbedder_QueryAndPassageShareOnePath(t *testing.T) {
	rec := &recordingBackend{inner: NewHashBackend(64)}
	e := newTestEmbedder(t, rec, Config{Backend: "hash", MaxInputChars: 20})
	ctx := context.Background()

	text := "  What   is the\tminimum wage in the United States?  "
	doc, err := e.EmbedDocuments(ctx, []string{text})
	require.NoError(t, err)
	query, err := e.EmbedQuery(ctx, text)
	require.NoError(t, err)

	assert.Equal(t, doc[0], query)
	require.Len(t, rec.batches, 2)
	assert.Equal(t, rec.batches[0], rec.batches[1])
	assert.Equal(t, "What is the minimum ", rec.batches[0][0], "whitespace collapsed and truncated")
}

func TestEmbedder_Batching(t *testing.T) {
	rec := &recordingBackend{inner: NewHashBackend(32)}
	e := newTestEmbedder(t, rec, Config{Backend: "hash", BatchSize: 4})

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = strings.Repeat("clause ", i+1)
	}
	vectors, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 10)

	require.Len(t, rec.batches, 3)
	assert.Len(t, rec.batches[0], 4)
	assert.Len(t, rec.batches[1], 4)
	assert.Len(t, rec.batches[2], 2)
}

func TestEmbedder_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty input", func(t *testing.T) {
		e := newTestEmbedder(t, NewHashBackend(8), Config{Backend: "hash"})
		_, err := e.EmbedDocuments(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
		_, err = e.EmbedQuery(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("backend failure", func(t *testing.T) {
		boom := errors.New("onnx session failed")
		e := newTestEmbedder(t, &recordingBackend{inner: NewHashBackend(8), err: boom}, Config{Backend: "hash"})
		_, err := e.EmbedQuery(ctx, "wage")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("short batch", func(t *testing.T) {
		e := newTestEmbedder(t, &recordingBackend{inner: NewHashBackend(8), wrongN: true}, Config{Backend: "hash"})
		_, err := e.EmbedDocuments(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewEmbedder(nil, Config{}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantDim int
		wantErr error
	}{
		{"hash default dimension", Config{Backend: "hash"}, 384, nil},
		{"hash explicit dimension", Config{Backend: "hash", Dimension: 128}, 128, nil},
		{"tei", Config{Backend: "tei", BaseURL: "http://localhost:8080", Model: "BAAI/bge-base-en-v1.5"}, 768, nil},
		{"tei without url", Config{Backend: "tei"}, 0, ErrInvalidConfig},
		{"unknown", Config{Backend: "word2vec"}, 0, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, b.Dimension())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("sentence-transformers/all-MiniLM-L6-v2"))
	assert.Equal(t, 512, detectDimensionFromModel("BAAI/bge-small-zh-v1.5"))
	assert.Equal(t, 768, detectDimensionFromModel("intfloat/multilingual-e5-base"))
	assert.Equal(t, 1024, detectDimensionFromModel("intfloat/multilingual-e5-large"))
	assert.Equal(t, 384, detectDimensionFromModel("unknown"))
}
