package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

// IndexLoader fills the api's in-memory retrieval indices from the chunk
// store. It loads every ready document at startup and one document at a
// time when the worker announces it, so new uploads become searchable
// without a restart.
type IndexLoader struct {
	repo       ports.DocumentRepository
	chunks     ports.ChunkRepository
	collection ports.ChunkIndex
	log        *slog.Logger
}

func NewIndexLoader(
	repo ports.DocumentRepository,
	chunks ports.ChunkRepository,
	collection ports.ChunkIndex,
	log *slog.Logger,
) *IndexLoader {
	return &IndexLoader{
		repo:       repo,
		chunks:     chunks,
		collection: collection,
		log:        log,
	}
}

// LoadReady indexes all documents already in status "ready". A single
// unloadable document is logged and skipped rather than blocking the
// rest of the corpus.
func (l *IndexLoader) LoadReady(ctx context.Context) error {
	ids, err := l.repo.ListIDsByStatus(ctx, domain.StatusReady)
	if err != nil {
		return fmt.Errorf("list ready documents: %w", err)
	}

	loaded := 0
	for _, id := range ids {
		if err := l.LoadDocument(ctx, id); err != nil {
			l.log.Error("load document into index",
				slog.String("document_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		loaded++
	}

	l.log.Info("retrieval index loaded",
		slog.Int("documents", loaded),
		slog.Int("chunks", l.collection.Len()),
	)
	return nil
}

// LoadDocument pulls one document's chunks and vectors from the store
// and adds them to the collection as a unit.
func (l *IndexLoader) LoadDocument(ctx context.Context, documentID string) error {
	chunks, vectors, err := l.chunks.LoadDocumentChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load chunks for %s: %w", documentID, err)
	}
	if err := l.collection.AddDocument(chunks, vectors); err != nil {
		return fmt.Errorf("index chunks for %s: %w", documentID, err)
	}
	return nil
}
