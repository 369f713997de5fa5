package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

// Extractor pulls the embedded text layer out of PDF documents. Scanned
// PDFs without a text layer come back empty and fail later in chunking,
// which marks the document failed with a clear error.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	pr, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidArgument, "parse pdf",
			fmt.Errorf("%s: %w", doc.Filename, err))
	}

	text, err := pr.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidArgument, "extract pdf text",
			fmt.Errorf("%s: %w", doc.Filename, err))
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", fmt.Errorf("collect pdf text: %w", err)
	}
	return buf.String(), nil
}
