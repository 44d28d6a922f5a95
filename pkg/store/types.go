package store

import "time"

// Document is a retrieval candidate flowing through the RAG pipeline.
// Score starts as the raw vector similarity and is overwritten with the
// fused score during re-ranking. Metadata carries collection-specific
// payload fields (answer, dept_id, user_id, ...).
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Source   string                 `json:"source"`
	Metadata map[string]interface{} `json:"metadata"`
}

// IsFAQ reports whether the document came from an FAQ-style collection,
// i.e. its payload carries a curated answer and Content holds the stored
// question instead of a passage.
func (d Document) IsFAQ() bool {
	return d.Answer() != ""
}

// Answer returns the curated answer carried in the payload, if any.
func (d Document) Answer() string {
	if d.Metadata == nil {
		return ""
	}
	if ans, ok := d.Metadata["answer"].(string); ok {
		return ans
	}
	return ""
}

// RewrittenQuery is the output of history-aware query rewriting.
// RewrittenText falls back to OriginalText when rewriting fails.
type RewrittenQuery struct {
	OriginalText  string `json:"original_text"`
	RewrittenText string `json:"rewritten_text"`
}

// UserContext is the authenticated identity attached to a request by the
// transport layer. It is read-only inside the pipeline; dept/user filters
// must be derived from it and never from user-supplied text.
type UserContext struct {
	UserID   string   `json:"user_id"`
	UserName string   `json:"user_name"`
	UserRole string   `json:"user_role"` // guest, student, teacher, scholar
	DeptID   string   `json:"dept_id"`
	Scopes   []string `json:"scopes"`
}

func (u UserContext) IsAuthenticated() bool {
	return u.UserRole != "" && u.UserRole != "guest"
}

// ChatTurn is one persisted message of a session, append-only.
type ChatTurn struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionMeta is the per-user session registry entry. Type permanently
// binds the session to one access tier.
type SessionMeta struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
