package partition

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmevijay17/LexiVoice/internal/errkind"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "indexes"), nil)
	require.NoError(t, err)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	vectors := [][]float32{unit(1, 2, 3), unit(3, 2, 1), unit(0, 1, 0), unit(1, 1, 1)}
	chunks := testChunks(len(vectors))
	chunks[2].Section = "FLSA 6(a)"
	chunks[2].SourceURL = "https://www.dol.gov"
	chunks[2].Category = "labor"
	mem, err := NewIndex("usa", 3, chunks, vectors)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, mem, "hash"))
	assert.True(t, s.Exists("usa"))

	loaded, err := s.Load(ctx, "usa")
	require.NoError(t, err)
	assert.Equal(t, mem.Len(), loaded.Len())
	assert.Equal(t, mem.Dimension(), loaded.Dimension())
	assert.Equal(t, "usa", loaded.Jurisdiction())

	for i := 0; i < mem.Len(); i++ {
		want, _ := mem.Chunk(i)
		got, _ := loaded.Chunk(i)
		assert.Equal(t, want, got)
	}

	for _, q := range [][]float32{unit(1, 0, 0), unit(0, 1, 1), unit(1, 2, 3)} {
		before, err := mem.Search(q, 3)
		require.NoError(t, err)
		after, err := loaded.Search(q, 3)
		require.NoError(t, err)
		assert.Equal(t, before.IDs(), after.IDs())
		for i := range before {
			assert.Equal(t, before[i].Chunk, after[i].Chunk)
			assert.InDelta(t, before[i].Score, after[i].Score, 1e-6)
		}
	}

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
	assert.Equal(t, "usa.idx.gob.gz", entries[0].Name())
}

func TestStore_EmptyIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := NewIndex("canada", 384, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, empty, "hash"))

	loaded, err := s.Load(ctx, "canada")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, 384, loaded.Dimension())
}

func TestStore_Load_NotFound(t *testing.T) {
	_, err := newTestStore(t).Load(context.Background(), "india")
	require.Error(t, err)
	assert.ErrorIs(t, err, errkind.ErrIndexNotFound)
}

func TestStore_Load_InvalidName(t *testing.T) {
	_, err := newTestStore(t).Load(context.Background(), "../secrets")
	assert.ErrorIs(t, err, ErrPathTraversal)
}

// writeArtifact exports a hand-assembled DB to the store's path for usa.
func writeArtifact(t *testing.T, s *Store, docs int, man manifest) {
	t.Helper()
	ctx := context.Background()
	db := chromem.NewDB()

	coll, err := db.CreateCollection("usa", nil, rejectEmbedding)
	require.NoError(t, err)
	for i := 0; i < docs; i++ {
		require.NoError(t, coll.AddDocument(ctx, chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   "text",
			Embedding: unit(1, 0, 0),
			Metadata:  map[string]string{"ordinal": "0", "total_in_document": "1"},
		}))
	}

	data, err := json.Marshal(man)
	require.NoError(t, err)
	mcoll, err := db.CreateCollection(manifestCollection, nil, rejectEmbedding)
	require.NoError(t, err)
	require.NoError(t, mcoll.AddDocument(ctx, chromem.Document{ID: "usa", Content: string(data), Embedding: []float32{1}}))

	f, err := os.Create(s.Path("usa"))
	require.NoError(t, err)
	require.NoError(t, db.ExportToWriter(f, true, ""))
	require.NoError(t, f.Close())
}

func TestStore_Load_Corrupt(t *testing.T) {
	ok := manifest{Jurisdiction: "usa", Chunks: 2, Dimension: 3, FormatVersion: formatVersion}

	tests := []struct {
		name  string
		setup func(t *testing.T, s *Store)
	}{
		{"garbage bytes", func(t *testing.T, s *Store) {
			require.NoError(t, os.WriteFile(s.Path("usa"), []byte("not a gob stream"), 0o600))
		}},
		{"truncated", func(t *testing.T, s *Store) {
			writeArtifact(t, s, 2, ok)
			data, err := os.ReadFile(s.Path("usa"))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(s.Path("usa"), data[:len(data)/2], 0o600))
		}},
		{"more chunks listed than vectors", func(t *testing.T, s *Store) {
			m := ok
			m.Chunks = 3
			writeArtifact(t, s, 2, m)
		}},
		{"fewer chunks listed than vectors", func(t *testing.T, s *Store) {
			m := ok
			m.Chunks = 1
			writeArtifact(t, s, 2, m)
		}},
		{"wrong dimension", func(t *testing.T, s *Store) {
			m := ok
			m.Dimension = 4
			writeArtifact(t, s, 2, m)
		}},
		{"foreign jurisdiction", func(t *testing.T, s *Store) {
			m := ok
			m.Jurisdiction = "canada"
			writeArtifact(t, s, 2, m)
		}},
		{"unknown format", func(t *testing.T, s *Store) {
			m := ok
			m.FormatVersion = 99
			writeArtifact(t, s, 2, m)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			tt.setup(t, s)

			_, err := s.Load(context.Background(), "usa")
			require.Error(t, err)
			assert.ErrorIs(t, err, errkind.ErrIndexCorrupt)
			assert.Equal(t, errkind.IndexCorrupt, errkind.Of(err))
		})
	}
}

func TestStore_SaveReplacesAtomically(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := NewIndex("usa", 3, testChunks(1), [][]float32{unit(1, 0, 0)})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, first, "hash"))

	second, err := NewIndex("usa", 3, testChunks(2), [][]float32{unit(1, 0, 0), unit(0, 1, 0)})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, second, "hash"))

	loaded, err := s.Load(ctx, "usa")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}
