package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/itsmevijay17/LexiVoice/internal/chunker"
	"github.com/itsmevijay17/LexiVoice/internal/corpus"
	"github.com/itsmevijay17/LexiVoice/internal/errkind"
	"github.com/itsmevijay17/LexiVoice/internal/partition"
)

// fakeBackend counts calls and optionally blocks until released.
type fakeBackend struct {
	loads  atomic.Int32
	builds atomic.Int32
	reads  atomic.Int32

	running    atomic.Int32
	maxRunning atomic.Int32

	gate    chan struct{}
	loadErr error
	delay   time.Duration
}

func (p *fakeBackend) enter() {
	n := p.running.Add(1)
	for {
		m := p.maxRunning.Load()
		if n <= m || p.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	if p.gate != nil {
		<-p.gate
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
}

func (p *fakeBackend) Load(_ context.Context, j string) (*partition.Index, error) {
	p.loads.Add(1)
	p.enter()
	defer p.running.Add(-1)
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	idx, _ := partition.NewIndex(j, 2, []chunker.Chunk{{ID: 0, Text: "loaded", Jurisdiction: j, TotalInDocument: 1}}, [][]float32{{1, 0}})
	return idx, nil
}

func (p *fakeBackend) Build(_ context.Context, j string, docs []corpus.Document) (*partition.Index, error) {
	p.builds.Add(1)
	p.enter()
	defer p.running.Add(-1)
	chunks := make([]chunker.Chunk, len(docs))
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		chunks[i] = chunker.Chunk{ID: i, Text: d.Body, Jurisdiction: j, TotalInDocument: 1}
		vectors[i] = []float32{0, 1}
	}
	return partition.NewIndex(j, 2, chunks, vectors)
}

func (p *fakeBackend) Documents(_ context.Context, j string) ([]corpus.Document, error) {
	p.reads.Add(1)
	return []corpus.Document{{Title: "Minimum Wage", Body: "The minimum wage is $15.", Jurisdiction: j}}, nil
}

func newRegistry(t *testing.T, p *fakeBackend, cfg Config) *Registry {
	t.Helper()
	r, err := New(p, p, p, cfg, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRegistry_Get_SingleLoadUnderConcurrency(t *testing.T) {
	p := &fakeBackend{delay: 20 * time.Millisecond}
	r := newRegistry(t, p, Config{})

	const callers = 50
	results := make([]*partition.Index, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := r.Get(context.Background(), "usa")
			assert.NoError(t, err)
			results[i] = idx
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.loads.Load())
	assert.Equal(t, int32(0), p.builds.Load())
	for _, idx := range results {
		assert.Same(t, results[0], idx)
	}

	// Cached from now on.
	_, err := r.Get(context.Background(), "USA")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.loads.Load())
	assert.Equal(t, []string{"usa"}, r.Cached())
}

func TestRegistry_Get_BuildsWhenNotPersisted(t *testing.T) {
	p := &fakeBackend{loadErr: errkind.ErrIndexNotFound}
	r := newRegistry(t, p, Config{})

	idx, err := r.Get(context.Background(), "india")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	ch, _ := idx.Chunk(0)
	assert.Equal(t, "The minimum wage is $15.", ch.Text)

	assert.Equal(t, int32(1), p.loads.Load())
	assert.Equal(t, int32(1), p.reads.Load())
	assert.Equal(t, int32(1), p.builds.Load())
	assert.True(t, r.IsCached("india"))
}

func TestRegistry_Get_FailureIsNotCached(t *testing.T) {
	corrupt := errors.Join(errkind.ErrIndexCorrupt, errors.New("bad manifest"))
	p := &fakeBackend{loadErr: corrupt}
	r := newRegistry(t, p, Config{})

	_, err := r.Get(context.Background(), "usa")
	require.Error(t, err)
	assert.Equal(t, errkind.IndexCorrupt, errkind.Of(err))
	assert.Equal(t, int32(0), p.builds.Load(), "a corrupt index is never silently rebuilt")
	assert.False(t, r.IsCached("usa"))

	p.loadErr = nil
	idx, err := r.Get(context.Background(), "usa")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, int32(2), p.loads.Load())
}

func TestRegistry_Get_CallerCancelDoesNotAbortLoad(t *testing.T) {
	p := &fakeBackend{gate: make(chan struct{})}
	r := newRegistry(t, p, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "usa")
		errc <- err
	}()

	require.Eventually(t, func() bool { return p.loads.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(p.gate)
	require.Eventually(t, func() bool { return r.IsCached("usa") }, time.Second, time.Millisecond)

	_, err := r.Get(context.Background(), "usa")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.loads.Load())
}

func TestRegistry_Preload_DoesNotBlock(t *testing.T) {
	p := &fakeBackend{gate: make(chan struct{})}
	r := newRegistry(t, p, Config{})

	done := make(chan struct{})
	go func() {
		r.Preload([]string{"india", "canada", "usa"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Preload blocked on a pending load")
	}
	assert.Empty(t, r.Cached())

	close(p.gate)
	r.Wait()
	assert.Equal(t, []string{"canada", "india", "usa"}, r.Cached())
}

func TestRegistry_Preload_LogsFailures(t *testing.T) {
	p := &fakeBackend{}
	r := newRegistry(t, p, Config{})

	r.Preload([]string{"usa", "../etc"})
	r.Wait()
	assert.Equal(t, []string{"usa"}, r.Cached())
}

func TestRegistry_WorkerPoolBoundsConcurrency(t *testing.T) {
	p := &fakeBackend{delay: 10 * time.Millisecond}
	r := newRegistry(t, p, Config{Workers: 1})

	r.Preload([]string{"a", "b", "c", "d"})
	r.Wait()

	assert.Equal(t, int32(4), p.loads.Load())
	assert.Equal(t, int32(1), p.maxRunning.Load())
}

func TestRegistry_Get_InvalidJurisdiction(t *testing.T) {
	p := &fakeBackend{}
	r := newRegistry(t, p, Config{})

	for _, j := range []string{"", "../etc", "us a"} {
		_, err := r.Get(context.Background(), j)
		require.Error(t, err, j)
		assert.Equal(t, errkind.InvalidRequest, errkind.Of(err), j)
	}
	assert.Equal(t, int32(0), p.loads.Load())
}

func TestRegistry_Rebuild_ReplacesCachedIndex(t *testing.T) {
	p := &fakeBackend{}
	r := newRegistry(t, p, Config{})

	first, err := r.Get(context.Background(), "usa")
	require.NoError(t, err)
	ch, _ := first.Chunk(0)
	assert.Equal(t, "loaded", ch.Text)

	rebuilt, err := r.Rebuild(context.Background(), "usa")
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)

	got, err := r.Get(context.Background(), "usa")
	require.NoError(t, err)
	assert.Same(t, rebuilt, got)
	assert.Equal(t, int32(1), p.builds.Load())
}

func TestRegistry_Rebuild_WaitsForInFlightLoad(t *testing.T) {
	p := &fakeBackend{gate: make(chan struct{})}
	r := newRegistry(t, p, Config{Workers: 4})

	var wg sync.WaitGroup
	var loaded, rebuilt *partition.Index
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		loaded, err = r.Get(context.Background(), "usa")
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return p.loads.Load() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		rebuilt, err = r.Rebuild(context.Background(), "usa")
		assert.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), p.builds.Load(), "rebuild started while the load was running")

	close(p.gate)
	wg.Wait()

	assert.Equal(t, int32(1), p.loads.Load())
	assert.Equal(t, int32(1), p.builds.Load())
	assert.Equal(t, int32(1), p.maxRunning.Load())
	assert.NotSame(t, loaded, rebuilt)

	got, err := r.Get(context.Background(), "usa")
	require.NoError(t, err)
	assert.Same(t, rebuilt, got)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, &fakeBackend{}, &fakeBackend{}, Config{}, nil)
	assert.Error(t, err)
}
