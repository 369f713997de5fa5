package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

const embedBatchSize = 16

// ProcessDocumentUseCase runs the worker side of the pipeline: extract,
// normalize, chunk, embed, persist, announce. A document that fails at
// any stage ends in status "failed" with the stage error recorded.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	chunks    ports.ChunkRepository
	queue     ports.MessageQueue
	extractor ports.TextExtractor
	norm      ports.TextNormalizer
	chunker   ports.Chunker
	embedder  ports.Embedder
	log       *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	chunks ports.ChunkRepository,
	queue ports.MessageQueue,
	extractor ports.TextExtractor,
	norm ports.TextNormalizer,
	chunker ports.Chunker,
	embedder ports.Embedder,
	log *slog.Logger,
) *ProcessDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		chunks:    chunks,
		queue:     queue,
		extractor: extractor,
		norm:      norm,
		chunker:   chunker,
		embedder:  embedder,
		log:       log,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := uc.process(ctx, doc); err != nil {
		uc.markFailed(ctx, doc.ID, err)
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	if err := uc.queue.PublishDocumentIndexed(ctx, doc.ID); err != nil {
		// The chunks are durable; readers pick them up on restart even
		// if the announcement is lost.
		uc.log.Error("publish indexed event failed",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}

	uc.log.Info("document processed",
		slog.String("document_id", doc.ID),
		slog.String("filename", doc.Filename),
	)
	return nil
}

func (uc *ProcessDocumentUseCase) process(ctx context.Context, doc *domain.Document) error {
	raw, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	normalized := uc.norm.Normalize(raw)

	chunks, err := uc.chunker.Split(normalized)
	if err != nil {
		return fmt.Errorf("split document: %w", err)
	}
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].DocumentID = doc.ID
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if err := uc.chunks.ReplaceDocumentChunks(ctx, doc.ID, chunks, vectors); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	if err := uc.repo.SetChunkCount(ctx, doc.ID, len(chunks)); err != nil {
		return fmt.Errorf("record chunk count: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("batch starting at chunk %d: %w", start, err)
		}
		if len(batch) != len(texts) {
			return nil, domain.WrapError(domain.ErrInvalidArgument, "embed chunks",
				fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts)))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, cause error) {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, cause.Error()); err != nil {
		uc.log.Error("mark document failed",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
	}
}
