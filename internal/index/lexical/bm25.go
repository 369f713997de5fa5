package lexical

import (
	"errors"
	"math"
	"sort"

	"github.com/saglikai/medrag/internal/core/domain"
)

// Index is an in-memory BM25 inverted index over chunk tokens. Postings
// are kept in chunk insertion order, which doubles as the deterministic
// tie-break key; map iteration order never influences a ranking. The
// index itself is not goroutine-safe; the owning collection serializes
// writers against readers.
type Index struct {
	k1 float64
	b  float64

	postings    map[string][]posting
	chunkIDs    []string
	lengths     []int
	totalTokens int
}

type posting struct {
	ord int
	tf  int
}

// Hit is a lexical search result. Ord is the chunk's insertion ordinal.
type Hit struct {
	ChunkID string
	Ord     int
	Score   float64
}

func New(k1, b float64) *Index {
	if k1 <= 0 {
		k1 = 1.2
	}
	if b <= 0 || b > 1 {
		b = 0.75
	}
	return &Index{
		k1:       k1,
		b:        b,
		postings: make(map[string][]posting),
	}
}

// Add indexes one chunk's tokens. Term statistics for a chunk are built
// in one pass; Add never leaves a chunk partially indexed.
func (ix *Index) Add(chunkID string, tokens []string) {
	ord := len(ix.chunkIDs)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for term, count := range tf {
		ix.postings[term] = append(ix.postings[term], posting{ord: ord, tf: count})
	}
	ix.chunkIDs = append(ix.chunkIDs, chunkID)
	ix.lengths = append(ix.lengths, len(tokens))
	ix.totalTokens += len(tokens)
}

func (ix *Index) Len() int {
	return len(ix.chunkIDs)
}

// Search scores chunks with BM25 and returns at most k hits in score
// order, ties broken by insertion order. An empty query yields an empty
// result, not an error; a query against an empty index is an error.
func (ix *Index) Search(queryTokens []string, k int) ([]Hit, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "lexical search", errors.New("k must be >= 1"))
	}
	if len(ix.chunkIDs) == 0 {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "lexical search", errors.New("no chunks indexed"))
	}
	if len(queryTokens) == 0 {
		return nil, nil
	}

	n := float64(len(ix.chunkIDs))
	avgLen := float64(ix.totalTokens) / n

	scores := make(map[int]float64, 64)
	for _, term := range queryTokens {
		postings := ix.postings[term]
		if len(postings) == 0 {
			continue
		}
		df := float64(len(postings))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for _, p := range postings {
			tf := float64(p.tf)
			dl := float64(ix.lengths[p.ord])
			scores[p.ord] += idf * (tf * (ix.k1 + 1)) / (tf + ix.k1*(1-ix.b+ix.b*dl/avgLen))
		}
	}

	hits := make([]Hit, 0, len(scores))
	for ord, score := range scores {
		hits = append(hits, Hit{ChunkID: ix.chunkIDs[ord], Ord: ord, Score: score})
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
