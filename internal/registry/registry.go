// Package registry caches one partition index per jurisdiction for the
// lifetime of the process.
//
// The first Get for a jurisdiction loads its persisted index, or builds it
// from the corpus when none exists. Concurrent callers for the same
// jurisdiction share a single load or build, and a Rebuild waits for any
// load of the same jurisdiction to finish. The work itself runs on a
// bounded pool so it cannot starve request handling. Failures are never
// cached, so the next Get retries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/itsmevijay17/LexiVoice/internal/corpus"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
)

// Loader reads a persisted index.
type Loader interface {
	Load(ctx context.Context, jurisdiction string) (*partition.Index, error)
}

// Builder builds and persists an index from documents.
type Builder interface {
	Build(ctx context.Context, jurisdiction string, docs []corpus.Document) (*partition.Index, error)
}

// CorpusSource returns a jurisdiction's documents.
type CorpusSource interface {
	Documents(ctx context.Context, jurisdiction string) ([]corpus.Document, error)
}

// Config tunes the registry.
type Config struct {
	// Workers bounds concurrent loads and builds. Defaults to 2.
	Workers int
	// Timeout bounds a single load or build. Zero means no limit.
	Timeout time.Duration
}

// Registry is the process-wide jurisdiction → index cache.
type Registry struct {
	mu       sync.RWMutex
	indexes  map[string]*partition.Index
	building map[string]*semaphore.Weighted // serializes loads and rebuilds per jurisdiction

	flights singleflight.Group
	pool    *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup

	loader  Loader
	builder Builder
	corpus  CorpusSource
	metrics *Metrics
	logger  *zap.Logger
}

// New creates a registry.
func New(loader Loader, builder Builder, src CorpusSource, cfg Config, logger *zap.Logger) (*Registry, error) {
	if loader == nil || builder == nil || src == nil {
		return nil, errors.New("registry requires a loader, a builder and a corpus source")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		indexes:  make(map[string]*partition.Index),
		building: make(map[string]*semaphore.Weighted),
		pool:     semaphore.NewWeighted(int64(cfg.Workers)),
		timeout:  cfg.Timeout,
		loader:   loader,
		builder:  builder,
		corpus:   src,
		metrics:  NewMetrics(logger),
		logger:   logger,
	}, nil
}

// Get returns the index for a jurisdiction, loading or building it on
// first use. A caller whose ctx ends stops waiting, but the shared load
// carries on for the others.
func (r *Registry) Get(ctx context.Context, jurisdiction string) (*partition.Index, error) {
	j, err := normalize(jurisdiction)
	if err != nil {
		return nil, err
	}
	if idx := r.lookup(j); idx != nil {
		return idx, nil
	}

	ch := r.flights.DoChan(j, func() (any, error) {
		return r.resolve(j)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*partition.Index), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Preload schedules Get for each jurisdiction in the background and
// returns immediately. Failures are logged.
func (r *Registry) Preload(jurisdictions []string) {
	for _, j := range jurisdictions {
		r.wg.Add(1)
		go func(j string) {
			defer r.wg.Done()
			start := time.Now()
			if _, err := r.Get(context.Background(), j); err != nil {
				r.logger.Warn("preload failed", zap.String("jurisdiction", j), zap.Error(err))
				return
			}
			r.logger.Info("preloaded index", zap.String("jurisdiction", j), zap.Duration("duration", time.Since(start)))
		}(j)
	}
}

// Wait blocks until every scheduled preload has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Rebuild rebuilds a jurisdiction from its corpus and replaces the cached
// index. It is an operator action and never triggered by requests.
// Concurrent Rebuilds share one build; a Get already loading the
// jurisdiction finishes first.
func (r *Registry) Rebuild(ctx context.Context, jurisdiction string) (*partition.Index, error) {
	j, err := normalize(jurisdiction)
	if err != nil {
		return nil, err
	}
	v, err, _ := r.flights.Do("rebuild/"+j, func() (any, error) {
		lock := r.buildLock(j)
		if err := lock.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer lock.Release(1)
		if err := r.pool.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer r.pool.Release(1)

		idx, err := r.build(ctx, j)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.indexes[j] = idx
		r.mu.Unlock()
		r.publishGauges()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*partition.Index), nil
}

// Cached lists the jurisdictions currently held, sorted.
func (r *Registry) Cached() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.indexes))
	for j := range r.indexes {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

// IsCached reports whether a jurisdiction is held.
func (r *Registry) IsCached(jurisdiction string) bool {
	return r.lookup(partition.NormalizeJurisdiction(jurisdiction)) != nil
}

func (r *Registry) buildLock(j string) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.building[j]
	if !ok {
		l = semaphore.NewWeighted(1)
		r.building[j] = l
	}
	return l
}

func (r *Registry) lookup(j string) *partition.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexes[j]
}

// resolve runs inside a flight, detached from any single caller's context.
func (r *Registry) resolve(j string) (*partition.Index, error) {
	if idx := r.lookup(j); idx != nil {
		return idx, nil
	}

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	lock := r.buildLock(j)
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for index worker: %w", err)
	}
	defer lock.Release(1)
	// A Rebuild may have finished while this load waited.
	if idx := r.lookup(j); idx != nil {
		return idx, nil
	}

	if err := r.pool.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for index worker: %w", err)
	}
	defer r.pool.Release(1)

	idx, err := r.loadOrBuild(ctx, j)
	if err != nil {
		recordFailure(j, err)
		r.logger.Error("index unavailable", zap.String("jurisdiction", j), zap.Error(err))
		return nil, err
	}

	defer r.publishGauges()
	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent Rebuild wins over a load that started before it.
	if existing, ok := r.indexes[j]; ok {
		return existing, nil
	}
	r.indexes[j] = idx
	return idx, nil
}

func (r *Registry) loadOrBuild(ctx context.Context, j string) (*partition.Index, error) {
	start := time.Now()
	idx, err := r.loader.Load(ctx, j)
	if err == nil {
		r.metrics.Record(ctx, j, "load", time.Since(start), nil)
		r.logger.Info("index loaded", zap.String("jurisdiction", j), zap.Int("chunks", idx.Len()))
		return idx, nil
	}
	if !errors.Is(err, errkind.ErrIndexNotFound) {
		r.metrics.Record(ctx, j, "load", time.Since(start), err)
		return nil, fmt.Errorf("loading %s: %w", j, err)
	}

	r.logger.Info("no persisted index, building from corpus", zap.String("jurisdiction", j))
	return r.build(ctx, j)
}

func (r *Registry) build(ctx context.Context, j string) (*partition.Index, error) {
	start := time.Now()
	docs, err := r.corpus.Documents(ctx, j)
	if err != nil {
		r.metrics.Record(ctx, j, "build", time.Since(start), err)
		return nil, fmt.Errorf("reading corpus for %s: %w", j, err)
	}
	idx, err := r.builder.Build(ctx, j, docs)
	r.metrics.Record(ctx, j, "build", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", j, err)
	}
	return idx, nil
}

func normalize(jurisdiction string) (string, error) {
	j := partition.NormalizeJurisdiction(jurisdiction)
	if err := partition.ValidateJurisdiction(j); err != nil {
		return "", fmt.Errorf("%w: %v", errkind.ErrInvalidRequest, err)
	}
	return j, nil
}
