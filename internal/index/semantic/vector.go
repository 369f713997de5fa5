package semantic

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/saglikai/medrag/internal/core/domain"
)

// Index is a dense vector store searched by exhaustive scan, which is
// adequate for collections in the low thousands of chunks. Vectors are
// unit-normalized once at insertion, so cosine similarity reduces to a
// dot product at query time. The dimension is fixed by the first vector
// added. Not goroutine-safe; the owning collection serializes access.
type Index struct {
	dim      int
	chunkIDs []string
	vectors  [][]float32
}

// Hit is a semantic search result. Ord is the chunk's insertion ordinal.
type Hit struct {
	ChunkID string
	Ord     int
	Score   float64
}

func New() *Index {
	return &Index{}
}

func (ix *Index) Len() int {
	return len(ix.chunkIDs)
}

// Dim returns the fixed vector dimension, 0 before the first Add.
func (ix *Index) Dim() int {
	return ix.dim
}

// Add stores a unit-normalized copy of vec. Vectors are never mutated
// after insertion.
func (ix *Index) Add(chunkID string, vec []float32) error {
	if len(vec) == 0 {
		return domain.WrapError(domain.ErrInvalidArgument, "semantic add", errors.New("empty vector"))
	}
	if ix.dim != 0 && len(vec) != ix.dim {
		return domain.WrapError(domain.ErrInvalidArgument, "semantic add",
			fmt.Errorf("vector dimension %d, index dimension %d", len(vec), ix.dim))
	}

	unit, ok := normalize(vec)
	if !ok {
		return domain.WrapError(domain.ErrInvalidArgument, "semantic add", errors.New("zero-norm vector"))
	}

	if ix.dim == 0 {
		ix.dim = len(vec)
	}
	ix.chunkIDs = append(ix.chunkIDs, chunkID)
	ix.vectors = append(ix.vectors, unit)
	return nil
}

// Search returns at most k hits by cosine similarity, ties broken by
// insertion order.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "semantic search", errors.New("k must be >= 1"))
	}
	if len(ix.chunkIDs) == 0 {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "semantic search", errors.New("no vectors indexed"))
	}
	if len(query) != ix.dim {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "semantic search",
			fmt.Errorf("query dimension %d, index dimension %d", len(query), ix.dim))
	}
	unit, ok := normalize(query)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "semantic search", errors.New("zero-norm query vector"))
	}

	hits := make([]Hit, 0, len(ix.vectors))
	for ord, vec := range ix.vectors {
		hits = append(hits, Hit{ChunkID: ix.chunkIDs[ord], Ord: ord, Score: dot(vec, unit)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ord < hits[j].Ord
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func normalize(vec []float32) ([]float32, bool) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, true
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
