package htmltext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

// Extractor strips markup from HTML documents, keeping only the visible
// text. Script, style and head content is discarded.
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

	var sb strings.Builder
	tokenizer := html.NewTokenizer(reader)
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				return sb.String(), nil
			}
			return "", domain.WrapError(domain.ErrInvalidArgument, "parse html",
				fmt.Errorf("%s: %w", doc.Filename, tokenizer.Err()))
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isHiddenElement(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isHiddenElement(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
	}
}

func isHiddenElement(name string) bool {
	switch strings.ToLower(name) {
	case "script", "style", "noscript", "head", "title":
		return true
	default:
		return false
	}
}
