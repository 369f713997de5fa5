package xlsx

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/saglikai/medrag/internal/core/domain"
)

type stubStorage struct {
	content []byte
}

func (s *stubStorage) Save(context.Context, string, io.Reader) error { return nil }

func (s *stubStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]string{
		"A1": "İlaç",
		"B1": "Günlük maksimum doz",
		"A2": "Parasetamol",
		"B2": "4 g",
		"A3": "İbuprofen",
		"B3": "2.4 g",
	}
	for cell, value := range cells {
		if err := f.SetCellValue("Sheet1", cell, value); err != nil {
			t.Fatalf("SetCellValue(%s) error = %v", cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestExtractFlattensRowsToSentences(t *testing.T) {
	e := NewExtractor(&stubStorage{content: buildWorkbook(t)})

	got, err := e.Extract(context.Background(), &domain.Document{Filename: "dozlar.xlsx", StoragePath: "k"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(got, "Parasetamol 4 g.") {
		t.Fatalf("row not flattened into a sentence: %q", got)
	}
	if !strings.Contains(got, "İbuprofen 2.4 g.") {
		t.Fatalf("second row missing: %q", got)
	}
}

func TestExtractRejectsCorruptWorkbook(t *testing.T) {
	e := NewExtractor(&stubStorage{content: []byte("definitely not a zip archive")})

	_, err := e.Extract(context.Background(), &domain.Document{Filename: "bozuk.xlsx", StoragePath: "k"})
	if !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
