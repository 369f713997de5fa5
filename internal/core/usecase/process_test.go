package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/infrastructure/chunking"
	"github.com/saglikai/medrag/internal/infrastructure/textnorm"
)

type memDocumentRepo struct {
	docs       map[string]*domain.Document
	statuses   []domain.DocumentStatus
	lastError  string
	chunkCount int
}

func newMemDocumentRepo(docs ...*domain.Document) *memDocumentRepo {
	m := &memDocumentRepo{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocumentRepo) Create(_ context.Context, doc *domain.Document) error {
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocumentRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	return doc, nil
}

func (m *memDocumentRepo) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	m.statuses = append(m.statuses, status)
	m.lastError = errMessage
	return nil
}

func (m *memDocumentRepo) SetChunkCount(_ context.Context, _ string, count int) error {
	m.chunkCount = count
	return nil
}

func (m *memDocumentRepo) ListIDsByStatus(context.Context, domain.DocumentStatus) ([]string, error) {
	return nil, nil
}

type memChunkRepo struct {
	documentID string
	chunks     []domain.Chunk
	vectors    [][]float32
}

func (m *memChunkRepo) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	m.documentID = documentID
	m.chunks = chunks
	m.vectors = vectors
	return nil
}

func (m *memChunkRepo) LoadDocumentChunks(context.Context, string) ([]domain.Chunk, [][]float32, error) {
	return m.chunks, m.vectors, nil
}

type recordingQueue struct {
	ingested   []string
	indexed    []string
	indexedErr error
}

func (q *recordingQueue) PublishDocumentIngested(_ context.Context, documentID string) error {
	q.ingested = append(q.ingested, documentID)
	return nil
}

func (q *recordingQueue) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

func (q *recordingQueue) PublishDocumentIndexed(_ context.Context, documentID string) error {
	if q.indexedErr != nil {
		return q.indexedErr
	}
	q.indexed = append(q.indexed, documentID)
	return nil
}

func (q *recordingQueue) SubscribeDocumentIndexed(context.Context, func(context.Context, string) error) error {
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return f.text, f.err
}

func newProcessUseCaseForTest(repo *memDocumentRepo, chunkRepo *memChunkRepo, queue *recordingQueue, ext *fakeExtractor) *ProcessDocumentUseCase {
	norm := textnorm.New()
	return NewProcessDocumentUseCase(repo, chunkRepo, queue, ext, norm,
		chunking.NewSplitter(norm, 300, 40), &fakeQueryEmbedder{}, nil)
}

func TestProcessByIDIndexesDocument(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Filename: "kilavuz.pdf", Status: domain.StatusUploaded}
	repo := newMemDocumentRepo(doc)
	chunkRepo := &memChunkRepo{}
	queue := &recordingQueue{}
	ext := &fakeExtractor{text: "Parasetamol günlük maksimum doz dört gramdır. Doz aşımı karaciğer hasarına yol açar."}

	uc := newProcessUseCaseForTest(repo, chunkRepo, queue, ext)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	want := []domain.DocumentStatus{domain.StatusProcessing, domain.StatusReady}
	if len(repo.statuses) != 2 || repo.statuses[0] != want[0] || repo.statuses[1] != want[1] {
		t.Fatalf("unexpected status transitions %v", repo.statuses)
	}
	if len(chunkRepo.chunks) == 0 {
		t.Fatal("no chunks persisted")
	}
	if len(chunkRepo.vectors) != len(chunkRepo.chunks) {
		t.Fatalf("persisted %d vectors for %d chunks", len(chunkRepo.vectors), len(chunkRepo.chunks))
	}
	for _, c := range chunkRepo.chunks {
		if c.ID == "" || c.DocumentID != "doc-1" {
			t.Fatalf("chunk identity not assigned: %+v", c)
		}
	}
	if repo.chunkCount != len(chunkRepo.chunks) {
		t.Fatalf("chunk count %d does not match persisted %d", repo.chunkCount, len(chunkRepo.chunks))
	}
	if len(queue.indexed) != 1 || queue.indexed[0] != "doc-1" {
		t.Fatalf("indexed event not published, got %v", queue.indexed)
	}
}

func TestProcessByIDMarksDocumentFailedOnExtractError(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Filename: "bozuk.pdf", Status: domain.StatusUploaded}
	repo := newMemDocumentRepo(doc)
	queue := &recordingQueue{}
	ext := &fakeExtractor{err: errors.New("corrupt xref table")}

	uc := newProcessUseCaseForTest(repo, &memChunkRepo{}, queue, ext)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error for failed extraction")
	}

	if len(repo.statuses) == 0 || repo.statuses[len(repo.statuses)-1] != domain.StatusFailed {
		t.Fatalf("document should end in failed status, got %v", repo.statuses)
	}
	if !strings.Contains(repo.lastError, "corrupt xref table") {
		t.Fatalf("stage error not recorded, got %q", repo.lastError)
	}
	if len(queue.indexed) != 0 {
		t.Fatalf("failed document must not be announced, got %v", queue.indexed)
	}
}

func TestProcessByIDSurvivesLostAnnouncement(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Filename: "kilavuz.pdf", Status: domain.StatusUploaded}
	repo := newMemDocumentRepo(doc)
	queue := &recordingQueue{indexedErr: errors.New("nats: connection closed")}
	ext := &fakeExtractor{text: "Parasetamol günlük maksimum doz dört gramdır."}

	uc := newProcessUseCaseForTest(repo, &memChunkRepo{}, queue, ext)
	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("lost announcement must not fail processing, got %v", err)
	}
	if repo.statuses[len(repo.statuses)-1] != domain.StatusReady {
		t.Fatalf("document should still be ready, got %v", repo.statuses)
	}
}
