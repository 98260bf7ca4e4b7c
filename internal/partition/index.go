// Package partition holds the per-jurisdiction retrieval index.
//
// An Index keeps vectors and chunk metadata in one structure so the two can
// never drift out of alignment: row i of the vector matrix is always the
// embedding of chunks[i], and chunks[i].ID == i. Indexes are immutable once
// constructed and safe for concurrent searches.
package partition

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/itsmevijay17/LexiVoice/internal/chunker"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrMisaligned is returned when chunks and vectors do not line up row for row.
	ErrMisaligned = errors.New("chunks and vectors are misaligned")
)

// Index is an exhaustive L2 index over one jurisdiction's chunks.
type Index struct {
	jurisdiction string
	dimension    int
	vectors      []float32 // row-major, len == len(chunks)*dimension
	chunks       []chunker.Chunk
}

// Hit is one search result.
type Hit struct {
	Chunk    chunker.Chunk `json:"chunk"`
	Score    float64       `json:"score"`
	Distance float64       `json:"distance"`
}

// Result is a ranked list of hits, best first.
type Result []Hit

// IDs returns the chunk ids in rank order.
func (r Result) IDs() []int {
	ids := make([]int, len(r))
	for i, h := range r {
		ids[i] = h.Chunk.ID
	}
	return ids
}

// Chunks returns the chunks in rank order.
func (r Result) Chunks() []chunker.Chunk {
	out := make([]chunker.Chunk, len(r))
	for i, h := range r {
		out[i] = h.Chunk
	}
	return out
}

// NewIndex copies chunks and vectors into a new Index. chunks[i].ID must
// equal i and every vector must have the given dimension.
func NewIndex(jurisdiction string, dimension int, chunks []chunker.Chunk, vectors [][]float32) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dimension)
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrMisaligned, len(chunks), len(vectors))
	}

	idx := &Index{
		jurisdiction: jurisdiction,
		dimension:    dimension,
		vectors:      make([]float32, 0, len(vectors)*dimension),
		chunks:       make([]chunker.Chunk, len(chunks)),
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
		if chunks[i].ID != i {
			return nil, fmt.Errorf("%w: row %d holds chunk id %d", ErrMisaligned, i, chunks[i].ID)
		}
		idx.vectors = append(idx.vectors, v...)
	}
	copy(idx.chunks, chunks)
	return idx, nil
}

// Jurisdiction returns the jurisdiction the index was built for.
func (x *Index) Jurisdiction() string { return x.jurisdiction }

// Dimension returns the vector dimension.
func (x *Index) Dimension() int { return x.dimension }

// Len returns the number of chunks.
func (x *Index) Len() int { return len(x.chunks) }

// Chunk returns the chunk at row id.
func (x *Index) Chunk(id int) (chunker.Chunk, bool) {
	if id < 0 || id >= len(x.chunks) {
		return chunker.Chunk{}, false
	}
	return x.chunks[id], true
}

// Vector returns a copy of the vector at row id.
func (x *Index) Vector(id int) ([]float32, bool) {
	if id < 0 || id >= len(x.chunks) {
		return nil, false
	}
	return slices.Clone(x.row(id)), true
}

func (x *Index) row(i int) []float32 {
	return x.vectors[i*x.dimension : (i+1)*x.dimension]
}

// Search returns the k nearest chunks by squared Euclidean distance.
// Scores are 1/(1+d). Equal distances rank the lower row first. An empty
// index or k <= 0 yields an empty result.
func (x *Index) Search(query []float32, k int) (Result, error) {
	n := len(x.chunks)
	if n == 0 || k <= 0 {
		return Result{}, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), x.dimension)
	}

	type candidate struct {
		row  int
		dist float64
	}
	cands := make([]candidate, n)
	for i := 0; i < n; i++ {
		cands[i] = candidate{row: i, dist: squaredL2(query, x.row(i))}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.row, b.row)
	})

	k = min(k, n)
	out := make(Result, k)
	for i := 0; i < k; i++ {
		c := cands[i]
		out[i] = Hit{
			Chunk:    x.chunks[c.row],
			Score:    1 / (1 + c.dist),
			Distance: c.dist,
		}
	}
	return out, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
