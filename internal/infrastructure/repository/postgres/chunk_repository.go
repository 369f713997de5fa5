package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/saglikai/medrag/internal/core/domain"
)

// chunkFormatVersion tags persisted chunk rows. Readers refuse rows
// written under a different chunking or embedding configuration instead
// of silently mixing incompatible offsets and vectors.
const chunkFormatVersion = 1

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceDocumentChunks swaps a document's chunk set in one transaction.
// Readers see either the old set or the new one, never a mix.
func (r *ChunkRepository) ReplaceDocumentChunks(
	ctx context.Context,
	documentID string,
	chunks []domain.Chunk,
	vectors [][]float32,
) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidArgument, "replace chunks",
			fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors)))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (
	id, document_id, ordinal, chunk_text, start_offset, end_offset, token_count, embedding, format_version
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		embedding, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("marshal embedding for chunk %d: %w", chunk.Ordinal, err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, documentID, chunk.Ordinal, chunk.Text,
			chunk.StartOffset, chunk.EndOffset, chunk.TokenCount,
			embedding, chunkFormatVersion,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) LoadDocumentChunks(
	ctx context.Context,
	documentID string,
) ([]domain.Chunk, [][]float32, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, ordinal, chunk_text, start_offset, end_offset, token_count, embedding, format_version
FROM document_chunks
WHERE document_id = $1
ORDER BY ordinal ASC
`, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var vectors [][]float32
	for rows.Next() {
		var chunk domain.Chunk
		var embedding []byte
		var version int
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Ordinal, &chunk.Text,
			&chunk.StartOffset, &chunk.EndOffset, &chunk.TokenCount,
			&embedding, &version,
		); err != nil {
			return nil, nil, fmt.Errorf("scan chunk: %w", err)
		}
		if version != chunkFormatVersion {
			return nil, nil, domain.WrapError(domain.ErrIncompatibleVersion, "load chunks",
				fmt.Errorf("document %s chunk %d has format %d, want %d", documentID, chunk.Ordinal, version, chunkFormatVersion))
		}

		var vector []float32
		if err := json.Unmarshal(embedding, &vector); err != nil {
			return nil, nil, fmt.Errorf("unmarshal embedding for chunk %d: %w", chunk.Ordinal, err)
		}
		chunks = append(chunks, chunk)
		vectors = append(vectors, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, vectors, nil
}
