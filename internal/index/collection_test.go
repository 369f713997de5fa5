package index

import (
	"testing"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/infrastructure/textnorm"
)

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", DocumentID: "doc-1", Ordinal: 0, Text: "parasetamol günlük maksimum doz dört gramdır"},
		{ID: "c2", DocumentID: "doc-1", Ordinal: 1, Text: "ibuprofen yemeklerden sonra alınmalıdır"},
	}
}

func TestAddDocumentAndSearchBothIndexes(t *testing.T) {
	c := NewCollection(textnorm.New(), 0, 0)

	err := c.AddDocument(testChunks(), [][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 chunks indexed, got %d", c.Len())
	}

	lex, err := c.SearchLexical([]string{"parasetamol"}, 5)
	if err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if len(lex) != 1 || lex[0].Chunk.ID != "c1" {
		t.Fatalf("expected lexical hit on c1, got %+v", lex)
	}

	sem, err := c.SearchSemantic([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("SearchSemantic() error = %v", err)
	}
	if len(sem) != 1 || sem[0].Chunk.ID != "c2" {
		t.Fatalf("expected semantic hit on c2, got %+v", sem)
	}
}

func TestAddDocumentRejectsWholeBatchOnBadVector(t *testing.T) {
	c := NewCollection(textnorm.New(), 0, 0)

	err := c.AddDocument(testChunks(), [][]float32{{1, 0}, {0, 0}})
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("rejected batch must leave collection untouched, got %d chunks", c.Len())
	}
}

func TestAddDocumentRejectsVectorCountMismatch(t *testing.T) {
	c := NewCollection(textnorm.New(), 0, 0)

	err := c.AddDocument(testChunks(), [][]float32{{1, 0}})
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("rejected batch must leave collection untouched, got %d chunks", c.Len())
	}
}

func TestAddDocumentRejectsDuplicateChunkID(t *testing.T) {
	c := NewCollection(textnorm.New(), 0, 0)
	if err := c.AddDocument(testChunks(), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}

	dup := []domain.Chunk{{ID: "c1", DocumentID: "doc-2", Text: "başka metin"}}
	err := c.AddDocument(dup, [][]float32{{1, 1}})
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate id, got %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("duplicate batch must not change collection, got %d chunks", c.Len())
	}
}

func TestAddDocumentRejectsDimensionDrift(t *testing.T) {
	c := NewCollection(textnorm.New(), 0, 0)
	if err := c.AddDocument(testChunks(), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}

	next := []domain.Chunk{{ID: "c3", DocumentID: "doc-2", Text: "yeni pasaj"}}
	err := c.AddDocument(next, [][]float32{{1, 0, 0}})
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for dimension drift, got %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("rejected batch must not change collection, got %d chunks", c.Len())
	}
}

func TestChunkLookupByID(t *testing.T) {
	c := NewCollection(textnorm.New(), 0, 0)
	if err := c.AddDocument(testChunks(), [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}

	chunk, ok := c.Chunk("c2")
	if !ok || chunk.DocumentID != "doc-1" {
		t.Fatalf("expected c2 lookup to succeed, got ok=%v chunk=%+v", ok, chunk)
	}
	if _, ok := c.Chunk("missing"); ok {
		t.Fatalf("expected missing id lookup to fail")
	}
}
