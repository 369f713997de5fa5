package index

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/index/lexical"
	"github.com/saglikai/medrag/internal/index/semantic"
	"github.com/saglikai/medrag/internal/infrastructure/textnorm"
)

// Collection owns one document corpus: the chunk list in insertion order
// plus the lexical and semantic indices over it. There is no hidden
// singleton; the pipeline constructs a Collection and passes it around.
//
// Locking discipline: AddDocument takes the write lock and commits its
// batch all-or-nothing, searches take the read lock. Independent
// collections share no state and may be used fully in parallel.
type Collection struct {
	mu sync.RWMutex

	norm   *textnorm.Normalizer
	lex    *lexical.Index
	sem    *semantic.Index
	chunks []domain.Chunk
	byID   map[string]int
}

func NewCollection(norm *textnorm.Normalizer, k1, b float64) *Collection {
	return &Collection{
		norm: norm,
		lex:  lexical.New(k1, b),
		sem:  semantic.New(),
		byID: make(map[string]int),
	}
}

// AddDocument indexes a document's chunks with their embedding vectors.
// The whole batch is validated before the first mutation, so a rejected
// batch leaves the collection untouched.
func (c *Collection) AddDocument(chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidArgument, "index document", errors.New("no chunks"))
	}
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidArgument, "index document",
			fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dim := c.sem.Dim()
	seen := make(map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		if chunk.ID == "" {
			return domain.WrapError(domain.ErrInvalidArgument, "index document", errors.New("chunk without id"))
		}
		if _, dup := c.byID[chunk.ID]; dup {
			return domain.WrapError(domain.ErrInvalidArgument, "index document", fmt.Errorf("chunk %s already indexed", chunk.ID))
		}
		if _, dup := seen[chunk.ID]; dup {
			return domain.WrapError(domain.ErrInvalidArgument, "index document", fmt.Errorf("duplicate chunk id %s in batch", chunk.ID))
		}
		seen[chunk.ID] = struct{}{}
		if len(vectors[i]) == 0 {
			return domain.WrapError(domain.ErrInvalidArgument, "index document", fmt.Errorf("chunk %s has empty vector", chunk.ID))
		}
		if dim == 0 {
			dim = len(vectors[i])
		}
		if len(vectors[i]) != dim {
			return domain.WrapError(domain.ErrInvalidArgument, "index document",
				fmt.Errorf("chunk %s vector dimension %d, expected %d", chunk.ID, len(vectors[i]), dim))
		}
		var sq float64
		for _, v := range vectors[i] {
			sq += float64(v) * float64(v)
		}
		if sq == 0 || math.IsNaN(sq) || math.IsInf(sq, 0) {
			return domain.WrapError(domain.ErrInvalidArgument, "index document", fmt.Errorf("chunk %s has zero-norm vector", chunk.ID))
		}
	}

	for i, chunk := range chunks {
		tokens := c.norm.StripStopwords(c.norm.Tokenize(chunk.Text))
		c.lex.Add(chunk.ID, tokens)
		if err := c.sem.Add(chunk.ID, vectors[i]); err != nil {
			return err
		}
		c.byID[chunk.ID] = len(c.chunks)
		c.chunks = append(c.chunks, chunk)
	}
	return nil
}

// SearchLexical runs BM25 over the stop-word-filtered query tokens.
func (c *Collection) SearchLexical(queryTokens []string, k int) ([]domain.ScoredChunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits, err := c.lex.Search(queryTokens, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.ScoredChunk{
			Chunk:          c.chunks[h.Ord],
			Score:          h.Score,
			InsertionOrder: h.Ord,
		})
	}
	return out, nil
}

// SearchSemantic runs cosine similarity search with the query vector.
func (c *Collection) SearchSemantic(queryVector []float32, k int) ([]domain.ScoredChunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits, err := c.sem.Search(queryVector, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.ScoredChunk{
			Chunk:          c.chunks[h.Ord],
			Score:          h.Score,
			InsertionOrder: h.Ord,
		})
	}
	return out, nil
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

func (c *Collection) Chunk(id string) (domain.Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ord, ok := c.byID[id]
	if !ok {
		return domain.Chunk{}, false
	}
	return c.chunks[ord], true
}
