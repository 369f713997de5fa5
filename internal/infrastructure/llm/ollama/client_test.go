package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/saglikai/medrag/internal/core/domain"
)

func TestEmbedReturnsOneVectorPerInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model %q", req.Model)
		}
		vectors := make([][]float32, len(req.Input))
		for i := range vectors {
			vectors[i] = []float32{1, 0}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	vectors, err := embedder.Embed(context.Background(), []string{"birinci", "ikinci"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
}

func TestEmbedRejectsVectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	if _, err := embedder.Embed(context.Background(), []string{"birinci", "ikinci"}); err == nil {
		t.Fatal("expected error for vector count mismatch")
	}
}

func TestGenerateAnswerSendsNumberedContext(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("streaming must be disabled")
		}
		prompt = req.Prompt
		json.NewEncoder(w).Encode(map[string]string{"response": "  Günlük doz dört gramdır [1]. \n"})
	}))
	defer srv.Close()

	gen := NewGenerator(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	chunks := []domain.RankedChunk{{Chunk: domain.Chunk{ID: "c1", Text: "parasetamol günlük maksimum doz dört gramdır"}}}

	answer, err := gen.GenerateAnswer(context.Background(), "maksimum doz nedir", chunks)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer != "Günlük doz dört gramdır [1]." {
		t.Fatalf("draft not trimmed, got %q", answer)
	}
	if !strings.Contains(prompt, "[1]") || !strings.Contains(prompt, "parasetamol") {
		t.Fatalf("prompt missing numbered context: %q", prompt)
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	_, err := embedder.Embed(context.Background(), []string{"metin"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary for 503, got %v", err)
	}
}

func TestClientErrorIsNotTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer srv.Close()

	embedder := NewEmbedder(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	_, err := embedder.Embed(context.Background(), []string{"metin"})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary, got %v", err)
	}
}

func TestRewriteQuerySkipsModelWithoutHistory(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"response": "anything"})
	}))
	defer srv.Close()

	rw := NewRewriter(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	got, err := rw.RewriteQuery(context.Background(), "maksimum nedir?", nil)
	if err != nil {
		t.Fatalf("RewriteQuery() error = %v", err)
	}
	if got != "maksimum nedir?" || calls != 0 {
		t.Fatalf("empty history must bypass the model, got %q after %d calls", got, calls)
	}
}

func TestRewriteQueryStripsQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"response": `"parasetamol maksimum dozu nedir"`})
	}))
	defer srv.Close()

	rw := NewRewriter(New(srv.URL, "llama3.1:8b", "nomic-embed-text"))
	history := []domain.QueryTurn{{UserText: "parasetamol doz aşımı belirtileri nelerdir"}}

	got, err := rw.RewriteQuery(context.Background(), "maksimum nedir?", history)
	if err != nil {
		t.Fatalf("RewriteQuery() error = %v", err)
	}
	if got != "parasetamol maksimum dozu nedir" {
		t.Fatalf("quotes not stripped, got %q", got)
	}
}
