//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig holds configuration for the FastEmbed backend.
type FastEmbedConfig struct {
	// Model is the embedding model to use, e.g. sentence-transformers/all-MiniLM-L6-v2.
	Model string
	// CacheDir is the directory to cache model files.
	CacheDir string
	// MaxLength is the maximum input sequence length in tokens. Defaults to 512.
	MaxLength int
}

// FastEmbedBackend embeds text with a local ONNX model.
type FastEmbedBackend struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	dimension int
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// NewFastEmbedBackend loads the model. Loading happens once per process.
func NewFastEmbedBackend(cfg FastEmbedConfig) (*FastEmbedBackend, error) {
	model, ok := fastEmbedModels[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
	}
	dimension, ok := knownModelDimensions[string(model)]
	if !ok {
		if dimension, ok = knownModelDimensions[cfg.Model]; !ok {
			return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrInvalidConfig, cfg.Model)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	return &FastEmbedBackend{model: flagEmbed, dimension: dimension}, nil
}

// EmbedBatch encodes texts without role prefixes, so passages and queries
// are encoded identically.
func (b *FastEmbedBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.model == nil {
		return nil, fmt.Errorf("%w: backend closed", ErrEmbeddingFailed)
	}

	vectors, err := b.model.Embed(texts, len(texts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// Dimension returns the model's vector dimension.
func (b *FastEmbedBackend) Dimension() int {
	return b.dimension
}

// Close releases the ONNX session.
func (b *FastEmbedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model == nil {
		return nil
	}
	err := b.model.Destroy()
	b.model = nil
	return err
}
