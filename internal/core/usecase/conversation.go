package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/saglikai/medrag/internal/core/domain"
	"github.com/saglikai/medrag/internal/core/ports"
)

const (
	defaultTurnWindow = 8
	// Turns with fewer content tokens than this are treated as follow-ups
	// that need context from earlier turns.
	selfContainedMinTokens = 4
	maxCarriedTokens       = 12
)

// SessionManager keeps a bounded, append-only window of turns per
// session and rewrites follow-up questions into self-contained retrieval
// queries. Windows are created lazily, mutated only through RecordTurn
// and discarded with EndSession; they are never shared across sessions.
// Each session assumes a single writer; the internal mutex only guards
// the session map against concurrent sessions.
type SessionManager struct {
	mu         sync.Mutex
	windowSize int
	norm       ports.TextNormalizer
	rewriter   ports.QueryRewriter
	log        *slog.Logger
	sessions   map[string][]domain.QueryTurn
}

// NewSessionManager builds a manager with the given window size.
// rewriter may be nil; rewriting then always uses rule-based composition.
func NewSessionManager(norm ports.TextNormalizer, windowSize int, rewriter ports.QueryRewriter, log *slog.Logger) *SessionManager {
	if windowSize <= 0 {
		windowSize = defaultTurnWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &SessionManager{
		windowSize: windowSize,
		norm:       norm,
		rewriter:   rewriter,
		log:        log,
		sessions:   make(map[string][]domain.QueryTurn),
	}
}

// RecordTurn appends a completed turn, evicting the oldest once the
// window limit is exceeded.
func (m *SessionManager) RecordTurn(sessionID, userText, rewrittenText string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := m.sessions[sessionID]
	turn := domain.QueryTurn{
		UserText:      userText,
		RewrittenText: rewrittenText,
		Ordinal:       nextOrdinal(turns),
		CreatedAt:     time.Now().UTC(),
	}
	turns = append(turns, turn)
	if len(turns) > m.windowSize {
		turns = turns[len(turns)-m.windowSize:]
	}
	m.sessions[sessionID] = turns
}

// EndSession discards a session's window.
func (m *SessionManager) EndSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// History returns a copy of the session's turns, oldest first.
func (m *SessionManager) History(sessionID string) []domain.QueryTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.sessions[sessionID]
	out := make([]domain.QueryTurn, len(turns))
	copy(out, turns)
	return out
}

// RewriteForRetrieval resolves anaphora and omitted subjects in
// follow-up questions by composing the current turn with content tokens
// from recent turns. A self-contained question passes through untouched.
// When an LLM rewriter is configured it gets the first attempt; a
// failure falls back to rule-based composition so retrieval never blocks
// on the collaborator.
func (m *SessionManager) RewriteForRetrieval(ctx context.Context, sessionID, userText string) string {
	history := m.History(sessionID)
	if len(history) == 0 {
		return userText
	}

	current := m.norm.ContentTokens(userText)
	if len(current) >= selfContainedMinTokens {
		return userText
	}

	if m.rewriter != nil {
		rewritten, err := m.rewriter.RewriteQuery(ctx, userText, history)
		if err == nil && strings.TrimSpace(rewritten) != "" {
			return rewritten
		}
		if err != nil {
			m.log.Warn("query_rewrite_fallback", "session_id", sessionID, "error", err)
		}
	}

	return m.composeQuery(userText, current, history)
}

// composeQuery appends distinct content tokens from the most recent
// turns until the carry budget is spent. Token order within a turn is
// preserved and turns are visited newest first, so the result is
// deterministic for a given history.
func (m *SessionManager) composeQuery(userText string, current []string, history []domain.QueryTurn) string {
	seen := make(map[string]struct{}, len(current))
	for _, t := range current {
		seen[t] = struct{}{}
	}

	carried := make([]string, 0, maxCarriedTokens)
	for i := len(history) - 1; i >= 0 && len(carried) < maxCarriedTokens; i-- {
		source := history[i].RewrittenText
		if source == "" {
			source = history[i].UserText
		}
		for _, t := range m.norm.ContentTokens(source) {
			if len(carried) >= maxCarriedTokens {
				break
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			carried = append(carried, t)
		}
	}

	if len(carried) == 0 {
		return userText
	}
	return userText + " " + strings.Join(carried, " ")
}

func nextOrdinal(turns []domain.QueryTurn) int {
	if len(turns) == 0 {
		return 0
	}
	return turns[len(turns)-1].Ordinal + 1
}
