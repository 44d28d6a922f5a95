package history

import (
	"context"
	"sync"
	"time"

	"campus-rag-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type memorySession struct {
	owner string
	meta  store.SessionMeta
}

// MemoryStore is a go-cache backed Store used for tests and for running
// without Redis. Same sliding-TTL and paired-deletion semantics as the
// Redis implementation.
type MemoryStore struct {
	mu         sync.Mutex
	turns      *cache.Cache
	sessions   *cache.Cache
	index      map[string]map[string]struct{}
	historyCap int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttlSeconds, historyCap int) *MemoryStore {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttlSeconds <= 0 {
		ttl = time.Hour
	}
	if historyCap <= 0 {
		historyCap = 50
	}
	return &MemoryStore{
		turns:      cache.New(ttl, 10*time.Minute),
		sessions:   cache.New(ttl, 10*time.Minute),
		index:      make(map[string]map[string]struct{}),
		historyCap: historyCap,
	}
}

func (s *MemoryStore) GetRecentTurns(_ context.Context, sessionID string, maxN int) ([]store.ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxN <= 0 {
		return nil, nil
	}
	x, found := s.turns.Get(sessionID)
	if !found {
		return nil, nil
	}
	all := x.([]store.ChatTurn)
	if len(all) > maxN {
		all = all[len(all)-maxN:]
	}
	out := make([]store.ChatTurn, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []store.ChatTurn
	if x, found := s.turns.Get(sessionID); found {
		all = x.([]store.ChatTurn)
	}
	all = append(all, store.ChatTurn{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if len(all) > s.historyCap {
		all = all[len(all)-s.historyCap:]
	}
	// Re-setting refreshes the expiry for both log and metadata.
	s.turns.Set(sessionID, all, cache.DefaultExpiration)
	if x, found := s.sessions.Get(sessionID); found {
		s.sessions.Set(sessionID, x, cache.DefaultExpiration)
	}
	return nil
}

func (s *MemoryStore) CreateSession(_ context.Context, userID, sessionType, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID := uuid.NewString()
	s.register(userID, sessionID, sessionType, title)
	return sessionID, nil
}

func (s *MemoryStore) BindSession(_ context.Context, userID, sessionID, sessionType, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if x, found := s.sessions.Get(sessionID); found {
		if x.(memorySession).owner != userID {
			return ErrSessionConflict
		}
		return nil
	}
	s.register(userID, sessionID, sessionType, title)
	return nil
}

func (s *MemoryStore) register(userID, sessionID, sessionType, title string) {
	s.sessions.Set(sessionID, memorySession{
		owner: userID,
		meta: store.SessionMeta{
			SessionID: sessionID,
			Title:     title,
			Type:      sessionType,
			CreatedAt: time.Now().UTC(),
		},
	}, cache.DefaultExpiration)
	if s.index[userID] == nil {
		s.index[userID] = make(map[string]struct{})
	}
	s.index[userID][sessionID] = struct{}{}
}

func (s *MemoryStore) GetSessionType(_ context.Context, userID, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.sessions.Get(sessionID)
	if !found {
		return "", false, nil
	}
	sess := x.(memorySession)
	if sess.owner != userID {
		return "", false, nil
	}
	return sess.meta.Type, true, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, userID, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.sessions.Get(sessionID)
	if !found {
		return false, nil
	}
	if x.(memorySession).owner != userID {
		return false, nil
	}
	s.sessions.Delete(sessionID)
	s.turns.Delete(sessionID)
	delete(s.index[userID], sessionID)
	return true, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, userID, typeFilter string) ([]store.SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.SessionMeta
	for sessionID := range s.index[userID] {
		x, found := s.sessions.Get(sessionID)
		if !found {
			delete(s.index[userID], sessionID)
			continue
		}
		sess := x.(memorySession)
		if typeFilter != "" && sess.meta.Type != typeFilter {
			continue
		}
		out = append(out, sess.meta)
	}
	return out, nil
}

func (s *MemoryStore) SetTitle(_ context.Context, userID, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.sessions.Get(sessionID)
	if !found {
		return ErrSessionNotFound
	}
	sess := x.(memorySession)
	if sess.owner != userID {
		return ErrSessionNotFound
	}
	sess.meta.Title = title
	s.sessions.Set(sessionID, sess, cache.DefaultExpiration)
	return nil
}
