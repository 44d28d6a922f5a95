package service

import (
	"context"
	"errors"
	"fmt"

	"campus-rag-be/internal/constant"
	"campus-rag-be/internal/dto"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/pkg/history"
	"campus-rag-be/pkg/rag/pipeline"
	"campus-rag-be/pkg/store"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrTierMismatch = errors.New("session is bound to a different tier")
	ErrEmptyQuery   = errors.New("query must not be empty")
)

// AnswerPipeline is the orchestrator surface the chat service drives.
type AnswerPipeline interface {
	Run(ctx context.Context, tier, sessionID, rawQuery string, user store.UserContext) (*pipeline.AnswerStream, error)
}

type IChatService interface {
	// SendChat validates access and session binding, then starts one
	// pipeline execution and returns its chunk stream.
	SendChat(ctx context.Context, tier string, req *dto.ChatRequest, user store.UserContext) (*pipeline.AnswerStream, error)
}

type chatService struct {
	orchestrator AnswerPipeline
	historyStore history.Store
	log          logger.ILogger
}

func NewChatService(orchestrator AnswerPipeline, historyStore history.Store, log logger.ILogger) IChatService {
	return &chatService{
		orchestrator: orchestrator,
		historyStore: historyStore,
		log:          log,
	}
}

// SendChat rejects policy violations (unknown tier, forbidden role, tier /
// session-type mismatch) before any retrieval work happens.
//
// Concurrent requests on the same session are not serialized: both may read
// the same recency window and append afterwards, so turn ordering across
// two simultaneous requests is unspecified. Individual appends are atomic.
func (s *chatService) SendChat(ctx context.Context, tier string, req *dto.ChatRequest, user store.UserContext) (*pipeline.AnswerStream, error) {
	if req.Query == "" || req.SessionID == "" {
		return nil, ErrEmptyQuery
	}
	if !constant.KnownTier(tier) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrPipelineNotFound, tier)
	}
	if !constant.RoleAllowedForTier(tier, user.UserRole) {
		return nil, fmt.Errorf("%w for role: %s", ErrAccessDenied, user.UserRole)
	}

	// A session is permanently bound to one tier. First use binds it;
	// every later request must match. A session id registered to another
	// user fails the bind, so a foreign turn log is never reachable here.
	boundType, ok, err := s.historyStore.GetSessionType(ctx, user.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if ok {
		if boundType != tier {
			return nil, fmt.Errorf("%w: session type %s, requested %s", ErrTierMismatch, boundType, tier)
		}
	} else {
		if err := s.historyStore.BindSession(ctx, user.UserID, req.SessionID, tier, sessionTitle(req.Query)); err != nil {
			return nil, err
		}
	}

	return s.orchestrator.Run(ctx, tier, req.SessionID, req.Query, user)
}

// sessionTitle derives a default title from the first question.
func sessionTitle(query string) string {
	runes := []rune(query)
	if len(runes) > 40 {
		return string(runes[:40]) + "..."
	}
	return query
}
