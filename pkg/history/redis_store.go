package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/pkg/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	historyKeyPrefix = "chat:history:"
	metaKeyPrefix    = "chat:session:"
	indexKeyPrefix   = "chat:sessions:"
)

// RedisStore keeps the turn log as a Redis list of JSON turns and session
// metadata as a hash, both under a sliding TTL. A per-user set indexes the
// sessions for listing.
type RedisStore struct {
	rdb        *redis.Client
	ttl        time.Duration
	historyCap int
	log        logger.ILogger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, ttlSeconds, historyCap int, log logger.ILogger) *RedisStore {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	if historyCap <= 0 {
		historyCap = 50
	}
	return &RedisStore{
		rdb:        rdb,
		ttl:        time.Duration(ttlSeconds) * time.Second,
		historyCap: historyCap,
		log:        log,
	}
}

func historyKey(sessionID string) string { return historyKeyPrefix + sessionID }
func metaKey(sessionID string) string    { return metaKeyPrefix + sessionID }
func indexKey(userID string) string      { return indexKeyPrefix + userID }

func (s *RedisStore) GetRecentTurns(ctx context.Context, sessionID string, maxN int) ([]store.ChatTurn, error) {
	if maxN <= 0 {
		return nil, nil
	}

	raw, err := s.rdb.LRange(ctx, historyKey(sessionID), int64(-maxN), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]store.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var turn store.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.log.Warn("history", "skipping malformed turn", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, sessionID, role, content string) error {
	turn := store.ChatTurn{Role: role, Content: content, Timestamp: time.Now().UTC()}
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	key := historyKey(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.historyCap), -1)
	pipe.Expire(ctx, key, s.ttl)
	// Slide the metadata expiry in lockstep with the log.
	pipe.Expire(ctx, metaKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) CreateSession(ctx context.Context, userID, sessionType, title string) (string, error) {
	sessionID := uuid.NewString()
	if err := s.writeMeta(ctx, userID, sessionID, sessionType, title, time.Now().UTC()); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *RedisStore) BindSession(ctx context.Context, userID, sessionID, sessionType, title string) error {
	owner, err := s.rdb.HGet(ctx, metaKey(sessionID), "owner").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("check session: %w", err)
	}
	if err == nil {
		// A session id registered to someone else must never be rebound or
		// silently shared.
		if owner != userID {
			return ErrSessionConflict
		}
		return nil
	}
	return s.writeMeta(ctx, userID, sessionID, sessionType, title, time.Now().UTC())
}

func (s *RedisStore) writeMeta(ctx context.Context, userID, sessionID, sessionType, title string, createdAt time.Time) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, metaKey(sessionID), map[string]interface{}{
		"owner":      userID,
		"title":      title,
		"type":       sessionType,
		"created_at": createdAt.Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, metaKey(sessionID), s.ttl)
	pipe.SAdd(ctx, indexKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSessionType(ctx context.Context, userID, sessionID string) (string, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return "", false, fmt.Errorf("load session meta: %w", err)
	}
	if len(fields) == 0 || fields["owner"] != userID {
		return "", false, nil
	}
	return fields["type"], true, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	fields, err := s.rdb.HGetAll(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("load session meta: %w", err)
	}
	if len(fields) == 0 || fields["owner"] != userID {
		return false, nil
	}

	// Log and metadata go together, never partially.
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, historyKey(sessionID))
	pipe.Del(ctx, metaKey(sessionID))
	pipe.SRem(ctx, indexKey(userID), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return true, nil
}

func (s *RedisStore) ListSessions(ctx context.Context, userID, typeFilter string) ([]store.SessionMeta, error) {
	ids, err := s.rdb.SMembers(ctx, indexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var sessions []store.SessionMeta
	for _, id := range ids {
		fields, err := s.rdb.HGetAll(ctx, metaKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("load session meta: %w", err)
		}
		if len(fields) == 0 {
			// Expired session still in the index; drop the stale entry.
			s.rdb.SRem(ctx, indexKey(userID), id)
			continue
		}
		if fields["owner"] != userID {
			continue
		}
		if typeFilter != "" && fields["type"] != typeFilter {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
		sessions = append(sessions, store.SessionMeta{
			SessionID: id,
			Title:     fields["title"],
			Type:      fields["type"],
			CreatedAt: createdAt,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *RedisStore) SetTitle(ctx context.Context, userID, sessionID, title string) error {
	_, ok, err := s.GetSessionType(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	if err := s.rdb.HSet(ctx, metaKey(sessionID), "title", title).Err(); err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	return s.rdb.Expire(ctx, metaKey(sessionID), s.ttl).Err()
}
