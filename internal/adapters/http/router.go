package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
	"github.com/saglikai/medrag/internal/observability/metrics"
)

const maxUploadBytes = 32 << 20

// SessionCloser drops one conversation's stored turns.
type SessionCloser interface {
	EndSession(sessionID string)
}

type Router struct {
	service  string
	ingestor ports.DocumentIngestor
	query    ports.QueryService
	reader   ports.DocumentReader
	sessions SessionCloser
	metrics  *metrics.HTTPServerMetrics
	log      *slog.Logger

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	Service        string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	query ports.QueryService,
	reader ports.DocumentReader,
	sessions SessionCloser,
	m *metrics.HTTPServerMetrics,
	log *slog.Logger,
	opts RouterOptions,
) *Router {
	service := opts.Service
	if service == "" {
		service = "api"
	}
	return &Router{
		service:        service,
		ingestor:       ingestor,
		query:          query,
		reader:         reader,
		sessions:       sessions,
		metrics:        m,
		log:            log,
		rateLimitRPS:   opts.RateLimitRPS,
		rateLimitBurst: opts.RateLimitBurst,
		maxInFlight:    opts.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/sessions/", rt.endSession)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 50*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.log, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.respondError(w, r, "upload document", err)
		return
	}

	writeJSON(w, http.StatusAccepted, documentResponse(doc))
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.respondError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse(doc))
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	TopK      int    `json:"top_k"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	answer, err := rt.query.Ask(r.Context(), req.SessionID, req.Question, req.TopK)
	if err != nil {
		rt.recordAskFailure(err)
		rt.respondError(w, r, "answer question", err)
		return
	}
	rt.recordAskSuccess(answer, time.Since(start))

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	rt.sessions.EndSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) recordAskSuccess(answer *domain.Answer, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAsk(rt.service, "ok", len(answer.Sources), duration)
	rt.metrics.RecordGroundingRatio(rt.service, answer.Grounding.GroundingRatio)
	if answer.Degraded {
		rt.metrics.RecordDegraded(rt.service, answer.DegradedReason)
	}
}

func (rt *Router) recordAskFailure(err error) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAsk(rt.service, "error", 0, 0)
	if domain.IsKind(err, domain.ErrUngroundedCitation) {
		rt.metrics.RecordUngrounded(rt.service)
	}
}

func (rt *Router) respondError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.log.Error(operation,
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, publicErrorMessage(status, err))
}

type documentPayload struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func documentResponse(doc *domain.Document) documentPayload {
	return documentPayload{
		ID:         doc.ID,
		Filename:   doc.Filename,
		MimeType:   doc.MimeType,
		Status:     string(doc.Status),
		Error:      doc.Error,
		ChunkCount: doc.ChunkCount,
		CreatedAt:  doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
