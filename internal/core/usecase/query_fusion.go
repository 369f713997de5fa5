package usecase

import (
	"errors"
	"sort"

	"github.com/saglikai/medrag/internal/core/domain"
)

type fusedCandidate struct {
	chunk          domain.Chunk
	lexicalRank    int
	semanticRank   int
	lexicalScore   float64
	semanticScore  float64
	fusedScore     float64
	insertionOrder int
}

// fuseRRF merges the lexical and semantic rankings with reciprocal rank
// fusion: each list contributes 1/(rrfK + rank) for every chunk it
// contains, rank 1-based. A chunk in both lists collects both terms, so
// agreement between the two signals beats a high position in either one
// alone. Ties fall back to raw lexical score, then semantic similarity,
// then insertion order, which makes the ordering total and deterministic.
func fuseRRF(lexical, semantic []domain.ScoredChunk, rrfK, k int) ([]domain.RankedChunk, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "fuse rankings", errors.New("k must be >= 1"))
	}
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]*fusedCandidate, len(lexical)+len(semantic))
	for i, sc := range lexical {
		acc[sc.Chunk.ID] = &fusedCandidate{
			chunk:          sc.Chunk,
			lexicalRank:    i + 1,
			lexicalScore:   sc.Score,
			fusedScore:     1.0 / float64(rrfK+i+1),
			insertionOrder: sc.InsertionOrder,
		}
	}
	for i, sc := range semantic {
		cand, ok := acc[sc.Chunk.ID]
		if !ok {
			cand = &fusedCandidate{
				chunk:          sc.Chunk,
				insertionOrder: sc.InsertionOrder,
			}
			acc[sc.Chunk.ID] = cand
		}
		cand.semanticRank = i + 1
		cand.semanticScore = sc.Score
		cand.fusedScore += 1.0 / float64(rrfK+i+1)
	}

	out := make([]domain.RankedChunk, 0, len(acc))
	for _, cand := range acc {
		out = append(out, domain.RankedChunk{
			Chunk:          cand.chunk,
			LexicalRank:    cand.lexicalRank,
			SemanticRank:   cand.semanticRank,
			LexicalScore:   cand.lexicalScore,
			SemanticScore:  cand.semanticScore,
			FusedScore:     cand.fusedScore,
			InsertionOrder: cand.insertionOrder,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		if out[i].LexicalScore != out[j].LexicalScore {
			return out[i].LexicalScore > out[j].LexicalScore
		}
		if out[i].SemanticScore != out[j].SemanticScore {
			return out[i].SemanticScore > out[j].SemanticScore
		}
		return out[i].InsertionOrder < out[j].InsertionOrder
	})

	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
