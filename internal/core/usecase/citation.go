package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

// Draft answers reference sources with bracketed 1-based markers in the
// order the chunks were presented to the generator. Both the bare
// Vancouver form [1] and the Turkish form [Kaynak 1] are accepted; any
// other bracketed content is left alone.
var citationMarkerRe = regexp.MustCompile(`\[(?:[Kk]aynak\s*)?([0-9]+)\]`)

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

const citationExcerptRunes = 250

// CitationBinder assigns final citation numbers to a draft answer and
// verifies that the answer text is supported by the cited chunks.
type CitationBinder struct {
	norm              ports.TextNormalizer
	overlapThreshold  float64
	wellGroundedRatio float64
}

func NewCitationBinder(norm ports.TextNormalizer, overlapThreshold, wellGroundedRatio float64) *CitationBinder {
	if overlapThreshold <= 0 || overlapThreshold > 1 {
		overlapThreshold = 0.25
	}
	if wellGroundedRatio <= 0 || wellGroundedRatio > 1 {
		wellGroundedRatio = 0.65
	}
	return &CitationBinder{
		norm:              norm,
		overlapThreshold:  overlapThreshold,
		wellGroundedRatio: wellGroundedRatio,
	}
}

// Bind parses the draft's citation markers, renumbers them by first
// appearance in the text and resolves each to its retrieved chunk. A
// marker pointing outside the retrieved set is an error naming every
// offending marker; nothing is silently dropped. Bind is deterministic:
// identical inputs produce identical numbering.
func (b *CitationBinder) Bind(draft string, retrieved []domain.RankedChunk) (string, []domain.Citation, error) {
	matches := citationMarkerRe.FindAllStringSubmatchIndex(draft, -1)
	if len(matches) == 0 {
		return draft, nil, nil
	}

	var invalid []string
	invalidSeen := make(map[string]struct{})
	renumber := make(map[int]int)
	order := make([]int, 0, 4)
	for _, m := range matches {
		raw := draft[m[2]:m[3]]
		// An unparseable number (int overflow) can reference no chunk
		// either, so it is invalid like any other out-of-range marker.
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > len(retrieved) {
			if _, dup := invalidSeen[raw]; !dup {
				invalidSeen[raw] = struct{}{}
				invalid = append(invalid, raw)
			}
			continue
		}
		if _, ok := renumber[n]; !ok {
			renumber[n] = len(order) + 1
			order = append(order, n)
		}
	}
	if len(invalid) > 0 {
		return "", nil, domain.WrapError(domain.ErrUngroundedCitation, "bind citations",
			fmt.Errorf("markers %s reference no retrieved chunk (%d retrieved)", formatMarkers(invalid), len(retrieved)))
	}

	var out strings.Builder
	out.Grow(len(draft))
	prev := 0
	for _, m := range matches {
		n, _ := strconv.Atoi(draft[m[2]:m[3]])
		out.WriteString(draft[prev:m[0]])
		out.WriteString("[" + strconv.Itoa(renumber[n]) + "]")
		prev = m[1]
	}
	out.WriteString(draft[prev:])

	citations := make([]domain.Citation, 0, len(order))
	for _, n := range order {
		chunk := retrieved[n-1].Chunk
		citations = append(citations, domain.Citation{
			Number:      renumber[n],
			ChunkID:     chunk.ID,
			DocumentID:  chunk.DocumentID,
			StartOffset: chunk.StartOffset,
			EndOffset:   chunk.EndOffset,
			Excerpt:     truncateRunes(chunk.Text, citationExcerptRunes),
		})
	}
	return out.String(), citations, nil
}

// Validate checks every sentence of the final answer against the text of
// its cited chunks with a coarse stop-word-filtered lexical overlap. A
// sentence citing nothing is checked against all retrieved chunks.
// Findings come back as data; deciding whether to suppress or surface
// them is the caller's policy.
func (b *CitationBinder) Validate(finalAnswer string, citations []domain.Citation, retrieved []domain.RankedChunk) domain.GroundingReport {
	chunkTokens := make(map[string]map[string]struct{}, len(retrieved))
	for _, rc := range retrieved {
		chunkTokens[rc.Chunk.ID] = tokenSet(b.norm.ContentTokens(rc.Chunk.Text))
	}
	chunkByNumber := make(map[int]string, len(citations))
	for _, c := range citations {
		chunkByNumber[c.Number] = c.ChunkID
	}

	report := domain.GroundingReport{}
	grounded := 0
	for _, sentence := range sentenceSplitRe.Split(finalAnswer, -1) {
		markers := sentenceMarkers(sentence)
		clean := citationMarkerRe.ReplaceAllString(sentence, "")
		words := tokenSet(b.norm.ContentTokens(clean))
		if len(words) < 3 {
			continue
		}
		report.CheckedClaims++

		best := 0.0
		for _, id := range citedChunkIDs(markers, chunkByNumber, retrieved) {
			if overlap := overlapRatio(words, chunkTokens[id]); overlap > best {
				best = overlap
			}
		}
		if best >= b.overlapThreshold {
			grounded++
			continue
		}

		claim := domain.UnsupportedClaim{
			Sentence: strings.TrimSpace(clean),
			Overlap:  best,
		}
		if len(markers) > 0 {
			claim.CitationNumber = markers[0]
		}
		report.Unsupported = append(report.Unsupported, claim)
	}

	if report.CheckedClaims == 0 {
		report.GroundingRatio = 1
	} else {
		report.GroundingRatio = float64(grounded) / float64(report.CheckedClaims)
	}
	report.WellGrounded = report.GroundingRatio >= b.wellGroundedRatio
	return report
}

func sentenceMarkers(sentence string) []int {
	matches := citationMarkerRe.FindAllStringSubmatch(sentence, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// citedChunkIDs resolves a sentence's markers to chunk ids, falling back
// to the whole retrieved set for uncited sentences.
func citedChunkIDs(markers []int, chunkByNumber map[int]string, retrieved []domain.RankedChunk) []string {
	if len(markers) > 0 {
		out := make([]string, 0, len(markers))
		for _, n := range markers {
			if id, ok := chunkByNumber[n]; ok {
				out = append(out, id)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	out := make([]string, 0, len(retrieved))
	for _, rc := range retrieved {
		out = append(out, rc.Chunk.ID)
	}
	return out
}

func overlapRatio(words, chunkWords map[string]struct{}) float64 {
	if len(words) == 0 || len(chunkWords) == 0 {
		return 0
	}
	matches := 0
	for w := range words {
		if _, ok := chunkWords[w]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}

func tokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

func formatMarkers(markers []string) string {
	parts := make([]string, 0, len(markers))
	for _, raw := range markers {
		parts = append(parts, "["+raw+"]")
	}
	return strings.Join(parts, " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
