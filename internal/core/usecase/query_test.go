package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/infrastructure/textnorm"
)

type fakeChunkIndex struct {
	lexHits []domain.ScoredChunk
	lexErr  error
	semHits []domain.ScoredChunk
	semErr  error
}

func (f *fakeChunkIndex) AddDocument([]domain.Chunk, [][]float32) error { return nil }

func (f *fakeChunkIndex) SearchLexical([]string, int) ([]domain.ScoredChunk, error) {
	return f.lexHits, f.lexErr
}

func (f *fakeChunkIndex) SearchSemantic([]float32, int) ([]domain.ScoredChunk, error) {
	return f.semHits, f.semErr
}

func (f *fakeChunkIndex) Len() int { return len(f.lexHits) }

type fakeQueryEmbedder struct {
	err error
}

func (f *fakeQueryEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, f.err
}

func (f *fakeQueryEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, f.err
}

type fakeGenerator struct {
	draft string
	err   error
}

func (f *fakeGenerator) GenerateAnswer(context.Context, string, []domain.RankedChunk) (string, error) {
	return f.draft, f.err
}

type fakeDocumentRepo struct {
	filename string
	err      error
}

func (f *fakeDocumentRepo) Create(context.Context, *domain.Document) error { return nil }

func (f *fakeDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: f.filename}, nil
}

func (f *fakeDocumentRepo) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}

func (f *fakeDocumentRepo) SetChunkCount(context.Context, string, int) error { return nil }

func (f *fakeDocumentRepo) ListIDsByStatus(context.Context, domain.DocumentStatus) ([]string, error) {
	return nil, nil
}

func newQueryUseCaseForTest(idx *fakeChunkIndex, gen *fakeGenerator, repo *fakeDocumentRepo) (*QueryUseCase, *SessionManager) {
	norm := textnorm.New()
	sessions := NewSessionManager(norm, 4, nil, nil)
	binder := NewCitationBinder(norm, 0.25, 0.65)
	uc := NewQueryUseCase(QueryConfig{TopK: 3}, sessions, norm, idx, &fakeQueryEmbedder{}, gen, binder, repo, nil)
	return uc, sessions
}

func TestAskReturnsCitedAnswer(t *testing.T) {
	hit := scored("c1", 2.0, 0)
	idx := &fakeChunkIndex{
		lexHits: []domain.ScoredChunk{hit},
		semHits: []domain.ScoredChunk{hit},
	}
	gen := &fakeGenerator{draft: "Günlük doz dört gramdır [1]."}
	uc, sessions := newQueryUseCaseForTest(idx, gen, &fakeDocumentRepo{filename: "kilavuz.pdf"})

	answer, err := uc.Ask(context.Background(), "s1", "parasetamol günlük maksimum dozu nedir", 0)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Degraded {
		t.Fatal("both signals healthy, answer must not be degraded")
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(answer.Citations))
	}
	if answer.Citations[0].Filename != "kilavuz.pdf" {
		t.Fatalf("citation filename not resolved, got %q", answer.Citations[0].Filename)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Chunk.ID != "c1" {
		t.Fatalf("unexpected sources %+v", answer.Sources)
	}
	if history := sessions.History("s1"); len(history) != 1 {
		t.Fatalf("turn not recorded, history len %d", len(history))
	}
}

func TestAskDegradesWhenLexicalSearchFails(t *testing.T) {
	idx := &fakeChunkIndex{
		lexErr:  domain.WrapError(domain.ErrIndexUnavailable, "lexical search", errors.New("empty index")),
		semHits: []domain.ScoredChunk{scored("c1", 0.9, 0)},
	}
	gen := &fakeGenerator{draft: "Günlük doz dört gramdır [1]."}
	uc, _ := newQueryUseCaseForTest(idx, gen, &fakeDocumentRepo{filename: "kilavuz.pdf"})

	answer, err := uc.Ask(context.Background(), "s1", "parasetamol günlük maksimum dozu nedir", 0)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.Degraded {
		t.Fatal("lexical failure should degrade, not fail")
	}
	if !strings.Contains(answer.DegradedReason, "lexical") {
		t.Fatalf("degraded reason should name the failed signal, got %q", answer.DegradedReason)
	}
}

func TestAskFailsWhenBothSignalsFail(t *testing.T) {
	idx := &fakeChunkIndex{
		lexErr: errors.New("lexical down"),
		semErr: errors.New("semantic down"),
	}
	uc, _ := newQueryUseCaseForTest(idx, &fakeGenerator{draft: "x"}, &fakeDocumentRepo{})

	if _, err := uc.Ask(context.Background(), "s1", "parasetamol günlük maksimum dozu nedir", 0); err == nil {
		t.Fatal("expected error when both retrieval signals fail")
	}
}

func TestAskRejectsFabricatedCitation(t *testing.T) {
	hit := scored("c1", 2.0, 0)
	idx := &fakeChunkIndex{
		lexHits: []domain.ScoredChunk{hit},
		semHits: []domain.ScoredChunk{hit},
	}
	gen := &fakeGenerator{draft: "Günlük doz dört gramdır [2]."}
	uc, _ := newQueryUseCaseForTest(idx, gen, &fakeDocumentRepo{})

	_, err := uc.Ask(context.Background(), "s1", "parasetamol günlük maksimum dozu nedir", 0)
	if !domain.IsKind(err, domain.ErrUngroundedCitation) {
		t.Fatalf("expected ErrUngroundedCitation, got %v", err)
	}
}
