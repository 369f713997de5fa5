package ports

import (
	"context"
	"io"

	"github.com/saglikai/medrag/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
	ListIDsByStatus(ctx context.Context, status domain.DocumentStatus) ([]string, error)
}

// ChunkRepository persists chunks and their embedding vectors so indices
// can be rebuilt across restarts. Writes replace a document's chunk set
// atomically; readers never observe a partially written document.
type ChunkRepository interface {
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error
	LoadDocumentChunks(ctx context.Context, documentID string) ([]domain.Chunk, [][]float32, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries ingestion lifecycle events between api and worker.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishDocumentIndexed(ctx context.Context, documentID string) error
	SubscribeDocumentIndexed(ctx context.Context, handler func(context.Context, string) error) error
}

// TextNormalizer provides language-aware normalization, tokenization and
// stop-word handling. Implementations must be deterministic.
type TextNormalizer interface {
	Normalize(text string) string
	Tokenize(normalized string) []string
	StripStopwords(tokens []string) []string
	ContentTokens(text string) []string
}

// Chunker splits normalized document text into overlapping passages with
// exact offsets.
type Chunker interface {
	Split(text string) ([]domain.Chunk, error)
}

// ChunkIndex is one document collection's retrieval index pair. Adds are
// all-or-nothing per document and mutually exclusive with searches.
type ChunkIndex interface {
	AddDocument(chunks []domain.Chunk, vectors [][]float32) error
	SearchLexical(queryTokens []string, k int) ([]domain.ScoredChunk, error)
	SearchSemantic(queryVector []float32, k int) ([]domain.ScoredChunk, error)
	Len() int
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for chunk and query text. Embedding generation
// is an external collaborator; the indices only store what it returns.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator drafts the answer from the retrieved chunks. The draft
// must reference sources with bracketed 1-based markers ([1], [2], ...)
// in the order the chunks were presented.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RankedChunk) (string, error)
}

// QueryRewriter turns a follow-up question plus turn history into a
// self-contained query. Implementations may call the answer generator;
// callers fall back to rule-based composition when it fails.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, question string, history []domain.QueryTurn) (string, error)
}
