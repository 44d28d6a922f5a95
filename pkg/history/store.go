package history

import (
	"context"
	"errors"

	"campus-rag-be/pkg/store"
)

// ErrSessionNotFound is returned when a session id has no registry entry
// for the given owner.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionConflict is returned when a caller tries to bind a session id
// that is already registered to a different owner.
var ErrSessionConflict = errors.New("session id already in use")

// Store is the conversational state contract: an append-only, TTL-bounded
// per-session turn log plus a per-user session metadata registry.
//
// Every write slides the session expiry. Deleting a session removes the turn
// log and the metadata entry together, never partially.
type Store interface {
	// GetRecentTurns returns at most maxN turns, oldest first.
	GetRecentTurns(ctx context.Context, sessionID string, maxN int) ([]store.ChatTurn, error)
	// AppendTurn appends one turn and refreshes the session TTL.
	AppendTurn(ctx context.Context, sessionID, role, content string) error

	// CreateSession registers a new session bound to one access tier and
	// returns its id.
	CreateSession(ctx context.Context, userID, sessionType, title string) (string, error)
	// BindSession registers metadata for a caller-supplied session id if the
	// session is not known yet. It is a no-op when the session already
	// belongs to userID and returns ErrSessionConflict when it belongs to
	// someone else.
	BindSession(ctx context.Context, userID, sessionID, sessionType, title string) error
	// GetSessionType returns the tier a session is bound to. ok is false when
	// the session is unknown (or owned by someone else).
	GetSessionType(ctx context.Context, userID, sessionID string) (sessionType string, ok bool, err error)
	// DeleteSession removes the turn log and metadata together. Returns
	// false when the session was unknown.
	DeleteSession(ctx context.Context, userID, sessionID string) (bool, error)
	// ListSessions returns the user's sessions, optionally filtered by type.
	ListSessions(ctx context.Context, userID, typeFilter string) ([]store.SessionMeta, error)
	// SetTitle renames a session.
	SetTitle(ctx context.Context, userID, sessionID, title string) error
}
