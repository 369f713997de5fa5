package domain

// ScoredChunk is a single-index search hit. InsertionOrder is the
// chunk's position in the collection it was retrieved from and is the
// final tie-break key everywhere ranking decisions are made.
type ScoredChunk struct {
	Chunk          Chunk   `json:"chunk"`
	Score          float64 `json:"score"`
	InsertionOrder int     `json:"-"`
}

// RankedChunk is a fused retrieval result. LexicalRank and SemanticRank
// are 1-based positions in the respective ranking; 0 means the chunk was
// absent from that list.
type RankedChunk struct {
	Chunk          Chunk   `json:"chunk"`
	LexicalRank    int     `json:"lexical_rank,omitempty"`
	SemanticRank   int     `json:"semantic_rank,omitempty"`
	LexicalScore   float64 `json:"lexical_score,omitempty"`
	SemanticScore  float64 `json:"semantic_score,omitempty"`
	FusedScore     float64 `json:"fused_score"`
	InsertionOrder int     `json:"-"`
}

// Citation resolves a numbered in-text marker to the retrieved chunk it
// cites. Numbers are 1-based and assigned by first appearance in the
// final answer text.
type Citation struct {
	Number      int    `json:"number"`
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename,omitempty"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Excerpt     string `json:"excerpt"`
}

// UnsupportedClaim is a sentence of the final answer whose lexical
// overlap with its cited sources fell below the grounding threshold.
// Findings are data for the caller, never an error.
type UnsupportedClaim struct {
	Sentence       string  `json:"sentence"`
	CitationNumber int     `json:"citation_number,omitempty"`
	Overlap        float64 `json:"overlap"`
}

type GroundingReport struct {
	Unsupported    []UnsupportedClaim `json:"unsupported,omitempty"`
	CheckedClaims  int                `json:"checked_claims"`
	GroundingRatio float64            `json:"grounding_ratio"`
	WellGrounded   bool               `json:"well_grounded"`
}

type Answer struct {
	Text           string          `json:"text"`
	Citations      []Citation      `json:"citations"`
	Sources        []RankedChunk   `json:"sources"`
	Grounding      GroundingReport `json:"grounding"`
	Degraded       bool            `json:"degraded,omitempty"`
	DegradedReason string          `json:"degraded_reason,omitempty"`
}
