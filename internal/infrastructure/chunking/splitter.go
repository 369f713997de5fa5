package chunking

import (
	"errors"
	"strings"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/infrastructure/textnorm"
)

// Splitter cuts normalized document text into overlapping passages
// measured in tokens. Sentence boundaries are preferred; a single
// sentence longer than the target is hard-cut at token boundaries.
// Every chunk carries exact byte offsets into the input text so later
// grounding checks can quote verbatim.
type Splitter struct {
	targetTokens  int
	overlapTokens int
	norm          *textnorm.Normalizer
}

func NewSplitter(norm *textnorm.Normalizer, targetTokens, overlapTokens int) *Splitter {
	if targetTokens <= 0 {
		targetTokens = 300
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= targetTokens {
		overlapTokens = targetTokens / 4
	}
	return &Splitter{
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
		norm:          norm,
	}
}

type unit struct {
	start  int
	end    int
	tokens int
}

// Split returns chunks in document order. DocumentID and ID are left for
// the caller to assign.
func (s *Splitter) Split(text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrChunking, "split document", errors.New("document text is empty"))
	}
	if len(s.norm.Spans(text)) == 0 {
		return nil, domain.WrapError(domain.ErrChunking, "split document", errors.New("document text has no tokens"))
	}

	units := s.units(text)

	chunks := make([]domain.Chunk, 0, len(units)/2+1)
	i := 0
	for i < len(units) {
		last := i
		total := units[i].tokens
		for last+1 < len(units) && total+units[last+1].tokens <= s.targetTokens {
			last++
			total += units[last].tokens
		}

		start := units[i].start
		end := units[last].end
		chunks = append(chunks, domain.Chunk{
			Ordinal:     len(chunks),
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
			TokenCount:  total,
		})

		if last == len(units)-1 {
			break
		}

		// Step back over trailing units until the overlap budget is met,
		// so consecutive chunks share ~overlapTokens tokens.
		next := last + 1
		carried := 0
		for idx := last; idx > i && carried < s.overlapTokens; idx-- {
			carried += units[idx].tokens
			next = idx
		}
		if next <= i {
			next = i + 1
		}
		i = next
	}

	return chunks, nil
}

// units returns sentences, with oversized sentences pre-cut into
// token-bounded pieces.
func (s *Splitter) units(text string) []unit {
	sentences := splitSentences(text)
	units := make([]unit, 0, len(sentences))
	for _, sent := range sentences {
		spans := s.norm.Spans(text[sent.start:sent.end])
		if len(spans) <= s.targetTokens {
			units = append(units, unit{start: sent.start, end: sent.end, tokens: len(spans)})
			continue
		}
		units = append(units, s.hardCut(sent, spans)...)
	}
	return units
}

func (s *Splitter) hardCut(sent unit, spans []textnorm.Span) []unit {
	step := s.targetTokens - s.overlapTokens
	if step < 1 {
		step = 1
	}

	out := make([]unit, 0, len(spans)/step+1)
	for a := 0; a < len(spans); a += step {
		b := a + s.targetTokens
		if b > len(spans) {
			b = len(spans)
		}
		start := sent.start + spans[a].Start
		end := sent.start + spans[b-1].End
		if a == 0 {
			start = sent.start
		}
		if b == len(spans) {
			end = sent.end
		}
		out = append(out, unit{start: start, end: end, tokens: b - a})
		if b == len(spans) {
			break
		}
	}
	return out
}

// splitSentences finds sentence ranges by terminal punctuation (. ! ?).
// The terminator stays with its sentence. Text without terminal
// punctuation is a single sentence.
func splitSentences(text string) []unit {
	sentences := make([]unit, 0, 16)
	start := -1
	inTerminator := false
	for i, r := range text {
		isTerm := r == '.' || r == '!' || r == '?'
		switch {
		case start < 0:
			if r != ' ' {
				start = i
				inTerminator = isTerm
			}
		case isTerm:
			inTerminator = true
		case inTerminator:
			// First rune after a terminator run closes the sentence.
			sentences = append(sentences, unit{start: start, end: i})
			if r == ' ' {
				start = -1
			} else {
				start = i
			}
			inTerminator = false
		}
	}
	if start >= 0 {
		sentences = append(sentences, unit{start: start, end: len(text)})
	}
	return sentences
}
