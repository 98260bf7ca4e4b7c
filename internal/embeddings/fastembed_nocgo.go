//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned when FastEmbed is not available (requires cgo).
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the tei or hash backend)")

// FastEmbedConfig holds configuration for the FastEmbed backend.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedBackend is a stub for builds without cgo.
type FastEmbedBackend struct{}

// NewFastEmbedBackend always fails without cgo.
func NewFastEmbedBackend(_ FastEmbedConfig) (*FastEmbedBackend, error) {
	return nil, ErrFastEmbedNotAvailable
}

// EmbedBatch always fails without cgo.
func (b *FastEmbedBackend) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Dimension returns 0 without cgo.
func (b *FastEmbedBackend) Dimension() int { return 0 }

// Close is a no-op without cgo.
func (b *FastEmbedBackend) Close() error { return nil }
