package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer performs Turkish-aware text normalization and tokenization.
// Lower-casing goes through the Turkish caser so that dotted and dotless
// variants fold correctly (İ -> i, I -> ı); byte-wise lower-casing would
// conflate them. All methods are deterministic and keep no mutable state,
// so a single Normalizer may be shared across goroutines.
type Normalizer struct {
	stopwords map[string]struct{}
}

func New() *Normalizer {
	return &Normalizer{stopwords: stopwordSet()}
}

// Normalize collapses whitespace, lower-cases with Turkish casing rules
// and drops characters outside the document alphabet. Sentence
// punctuation and common medical symbols (%, °, µ, /, -) survive so the
// chunker can still find sentence boundaries and dose notation.
func (n *Normalizer) Normalize(text string) string {
	lower := cases.Lower(language.Turkish)
	text = lower.String(text)

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		if !keepRune(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}

func keepRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', ',', '!', '?', '(', ')', ':', ';', '%', '°', 'µ', 'μ', '/', '-':
		return true
	}
	return false
}

// Tokenize splits normalized text on whitespace and punctuation. Hyphens
// and slashes inside a token are preserved so dose expressions like
// "10-15" and "mg/kg" stay intact.
func (n *Normalizer) Tokenize(normalized string) []string {
	spans := n.Spans(normalized)
	tokens := make([]string, 0, len(spans))
	for _, s := range spans {
		tokens = append(tokens, normalized[s.Start:s.End])
	}
	return tokens
}

// Span is a token's byte range within the text it was produced from.
type Span struct {
	Start int
	End   int
}

// Spans returns token boundaries as byte offsets into normalized. The
// chunker uses these to cut oversized sentences at token boundaries while
// keeping exact offsets into the document text.
func (n *Normalizer) Spans(normalized string) []Span {
	spans := make([]Span, 0, len(normalized)/6)
	start := -1
	lastAlnumEnd := -1
	for i, r := range normalized {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if start < 0 {
				start = i
			}
			lastAlnumEnd = i + len(string(r))
		case (r == '-' || r == '/') && start >= 0:
			// keep only if followed by another alphanumeric rune
		default:
			if start >= 0 && lastAlnumEnd > start {
				spans = append(spans, Span{Start: start, End: lastAlnumEnd})
			}
			start = -1
			lastAlnumEnd = -1
		}
	}
	if start >= 0 && lastAlnumEnd > start {
		spans = append(spans, Span{Start: start, End: lastAlnumEnd})
	}
	return spans
}

// StripStopwords removes fixed Turkish stop words. Matching is
// diacritics-insensitive ("icin" and "için" both match) but the kept
// tokens are returned untouched. Only the lexical index path strips stop
// words; embedding input always keeps the natural text.
func (n *Normalizer) StripStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := n.stopwords[foldDiacritics(t)]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ContentTokens returns the stop-word-free tokens of raw text with very
// short tokens removed. Shared by query rewriting and grounding checks.
func (n *Normalizer) ContentTokens(text string) []string {
	tokens := n.StripStopwords(n.Tokenize(n.Normalize(text)))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len([]rune(t)) > 2 {
			out = append(out, t)
		}
	}
	return out
}

func foldDiacritics(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'ğ':
			return 'g'
		case 'ü':
			return 'u'
		case 'ş':
			return 's'
		case 'ı':
			return 'i'
		case 'ö':
			return 'o'
		case 'ç':
			return 'c'
		}
		return r
	}, s)
}
