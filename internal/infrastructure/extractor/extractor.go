package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

// Dispatcher routes extraction by MIME type, falling back to the file
// extension when the upload did not declare one. Anything unrecognized
// is treated as plain text and rejected there if it is not UTF-8.
type Dispatcher struct {
	pdf   ports.TextExtractor
	xlsx  ports.TextExtractor
	html  ports.TextExtractor
	plain ports.TextExtractor
}

func NewDispatcher(pdf, xlsx, html, plain ports.TextExtractor) *Dispatcher {
	return &Dispatcher{pdf: pdf, xlsx: xlsx, html: html, plain: plain}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	switch documentKind(doc) {
	case "pdf":
		return d.pdf.Extract(ctx, doc)
	case "xlsx":
		return d.xlsx.Extract(ctx, doc)
	case "html":
		return d.html.Extract(ctx, doc)
	default:
		return d.plain.Extract(ctx, doc)
	}
}

func documentKind(doc *domain.Document) string {
	switch strings.ToLower(strings.TrimSpace(doc.MimeType)) {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/html":
		return "html"
	case "", "application/octet-stream":
		return kindFromExtension(doc.Filename)
	default:
		return "plain"
	}
}

func kindFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".xlsx":
		return "xlsx"
	case ".html", ".htm":
		return "html"
	default:
		return "plain"
	}
}
