package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashBackend embeds text by feature hashing word unigrams and character
// trigrams into a fixed number of buckets. It is deterministic and needs
// no model, which makes it suitable for tests and air-gapped builds.
type HashBackend struct {
	dimension int
}

// NewHashBackend creates a hashing backend of the given dimension.
func NewHashBackend(dimension int) *HashBackend {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashBackend{dimension: dimension}
}

// EmbedBatch hashes each text independently.
func (b *HashBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = b.embed(text)
	}
	return out, nil
}

func (b *HashBackend) embed(text string) []float32 {
	vec := make([]float32, b.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		b.add(vec, "w:"+w, 1)
		runes := []rune("^" + w + "$")
		for i := 0; i+3 <= len(runes); i++ {
			b.add(vec, "t:"+string(runes[i:i+3]), 0.5)
		}
	}
	if len(words) == 0 {
		b.add(vec, "empty:"+text, 1)
	}
	return vec
}

func (b *HashBackend) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(b.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// Dimension returns the number of buckets.
func (b *HashBackend) Dimension() int {
	return b.dimension
}

// Close is a no-op.
func (b *HashBackend) Close() error {
	return nil
}
