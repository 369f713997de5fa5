package domain

import "time"

// QueryTurn is one user turn in a session. Turns are append-only and live
// only as long as the session; nothing here is persisted.
type QueryTurn struct {
	UserText      string    `json:"user_text"`
	RewrittenText string    `json:"rewritten_text"`
	Ordinal       int       `json:"ordinal"`
	CreatedAt     time.Time `json:"created_at"`
}
