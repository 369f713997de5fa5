package htmltext

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/saglikai/medrag/internal/core/domain"
)

type stubStorage struct {
	content []byte
}

func (s *stubStorage) Save(context.Context, string, io.Reader) error { return nil }

func (s *stubStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func TestExtractKeepsVisibleTextOnly(t *testing.T) {
	page := `<html><head><title>Rehber</title><style>p{color:red}</style></head>
<body><h1>Parasetamol</h1><p>Günlük maksimum doz dört gramdır.</p>
<script>alert("x")</script></body></html>`

	e := NewExtractor(&stubStorage{content: []byte(page)})
	got, err := e.Extract(context.Background(), &domain.Document{Filename: "rehber.html", StoragePath: "k"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(got, "Parasetamol") || !strings.Contains(got, "dört gramdır") {
		t.Fatalf("visible text missing: %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color") || strings.Contains(got, "Rehber") {
		t.Fatalf("hidden content leaked: %q", got)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	e := NewExtractor(&stubStorage{})
	got, err := e.Extract(context.Background(), &domain.Document{Filename: "empty.html", StoragePath: "k"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
