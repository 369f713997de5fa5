package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

type QueryConfig struct {
	TopK       int
	Candidates int
	RRFK       int
}

func (c QueryConfig) normalize() QueryConfig {
	out := c
	if out.TopK <= 0 {
		out.TopK = 5
	}
	if out.Candidates < out.TopK {
		out.Candidates = out.TopK * 3
	}
	if out.Candidates < 20 {
		out.Candidates = 20
	}
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	return out
}

// QueryUseCase runs the full query pipeline: rewrite the question into a
// self-contained query, retrieve candidates from both indices, fuse the
// rankings, hand the top chunks to the answer generator and bind the
// draft's citations against the retrieved set.
type QueryUseCase struct {
	cfg        QueryConfig
	sessions   *SessionManager
	norm       ports.TextNormalizer
	collection ports.ChunkIndex
	embedder   ports.Embedder
	generator  ports.AnswerGenerator
	binder     *CitationBinder
	repo       ports.DocumentRepository
	log        *slog.Logger
}

func NewQueryUseCase(
	cfg QueryConfig,
	sessions *SessionManager,
	norm ports.TextNormalizer,
	collection ports.ChunkIndex,
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	binder *CitationBinder,
	repo ports.DocumentRepository,
	log *slog.Logger,
) *QueryUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &QueryUseCase{
		cfg:        cfg.normalize(),
		sessions:   sessions,
		norm:       norm,
		collection: collection,
		embedder:   embedder,
		generator:  generator,
		binder:     binder,
		repo:       repo,
		log:        log,
	}
}

func (uc *QueryUseCase) Ask(ctx context.Context, sessionID, question string, topK int) (*domain.Answer, error) {
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	rewritten := uc.sessions.RewriteForRetrieval(ctx, sessionID, question)

	retrieval, err := uc.retrieve(ctx, rewritten, topK)
	if err != nil {
		return nil, err
	}

	draft, err := uc.generator.GenerateAnswer(ctx, rewritten, retrieval.chunks)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	final, citations, err := uc.binder.Bind(draft, retrieval.chunks)
	if err != nil {
		return nil, err
	}
	grounding := uc.binder.Validate(final, citations, retrieval.chunks)
	uc.resolveFilenames(ctx, citations)

	uc.sessions.RecordTurn(sessionID, question, rewritten)

	return &domain.Answer{
		Text:           final,
		Citations:      citations,
		Sources:        retrieval.chunks,
		Grounding:      grounding,
		Degraded:       retrieval.degraded,
		DegradedReason: retrieval.degradedReason,
	}, nil
}

type retrievalOutcome struct {
	chunks         []domain.RankedChunk
	degraded       bool
	degradedReason string
}

// retrieve searches both indices and fuses the rankings. A failure of
// one signal degrades to the other instead of failing the query; the
// degradation is flagged on the outcome, never silent.
func (uc *QueryUseCase) retrieve(ctx context.Context, query string, topK int) (retrievalOutcome, error) {
	tokens := uc.norm.StripStopwords(uc.norm.Tokenize(uc.norm.Normalize(query)))
	lexical, lexErr := uc.collection.SearchLexical(tokens, uc.cfg.Candidates)

	semantic, semErr := uc.searchSemantic(ctx, query)

	var out retrievalOutcome
	switch {
	case lexErr != nil && semErr != nil:
		return out, fmt.Errorf("lexical search: %w; semantic search: %v", lexErr, semErr)
	case semErr != nil:
		out.degraded = true
		out.degradedReason = "semantic search unavailable, lexical-only ranking"
		uc.log.Warn("retrieval_degraded", "signal", "semantic", "error", semErr)
		semantic = nil
	case lexErr != nil:
		out.degraded = true
		out.degradedReason = "lexical search unavailable, semantic-only ranking"
		uc.log.Warn("retrieval_degraded", "signal", "lexical", "error", lexErr)
		lexical = nil
	}

	fused, err := fuseRRF(lexical, semantic, uc.cfg.RRFK, topK)
	if err != nil {
		return out, err
	}
	out.chunks = fused
	return out, nil
}

func (uc *QueryUseCase) searchSemantic(ctx context.Context, query string) ([]domain.ScoredChunk, error) {
	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return uc.collection.SearchSemantic(vector, uc.cfg.Candidates)
}

// resolveFilenames decorates citations with document filenames for the
// source list. A lookup failure leaves the filename empty rather than
// failing an otherwise complete answer.
func (uc *QueryUseCase) resolveFilenames(ctx context.Context, citations []domain.Citation) {
	cache := make(map[string]string, 2)
	for i := range citations {
		id := citations[i].DocumentID
		if name, ok := cache[id]; ok {
			citations[i].Filename = name
			continue
		}
		doc, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			uc.log.Warn("citation_filename_lookup", "document_id", id, "error", err)
			cache[id] = ""
			continue
		}
		cache[id] = doc.Filename
		citations[i].Filename = doc.Filename
	}
}
