package service

import (
	"context"
	"fmt"

	"campus-rag-be/internal/constant"
	"campus-rag-be/internal/dto"
	"campus-rag-be/pkg/history"
	"campus-rag-be/pkg/store"
)

type ISessionService interface {
	CreateSession(ctx context.Context, user store.UserContext, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	ListSessions(ctx context.Context, user store.UserContext, typeFilter string) ([]*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, user store.UserContext, sessionID string) error
	RenameSession(ctx context.Context, user store.UserContext, sessionID, title string) error
	GetHistory(ctx context.Context, user store.UserContext, sessionID string, maxN int) ([]*dto.ChatTurnResponse, error)
}

type sessionService struct {
	historyStore history.Store
}

func NewSessionService(historyStore history.Store) ISessionService {
	return &sessionService{historyStore: historyStore}
}

func (s *sessionService) CreateSession(ctx context.Context, user store.UserContext, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	if !constant.KnownTier(req.Type) {
		return nil, fmt.Errorf("unknown session type: %s", req.Type)
	}
	if !constant.RoleAllowedForTier(req.Type, user.UserRole) {
		return nil, fmt.Errorf("%w for role: %s", ErrAccessDenied, user.UserRole)
	}

	title := req.Title
	if title == "" {
		title = "New conversation"
	}
	sessionID, err := s.historyStore.CreateSession(ctx, user.UserID, req.Type, title)
	if err != nil {
		return nil, err
	}
	return &dto.CreateSessionResponse{
		SessionID: sessionID,
		Type:      req.Type,
		Title:     title,
	}, nil
}

func (s *sessionService) ListSessions(ctx context.Context, user store.UserContext, typeFilter string) ([]*dto.SessionResponse, error) {
	sessions, err := s.historyStore.ListSessions(ctx, user.UserID, typeFilter)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.SessionResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = &dto.SessionResponse{
			SessionID: sess.SessionID,
			Title:     sess.Title,
			Type:      sess.Type,
			CreatedAt: sess.CreatedAt,
		}
	}
	return out, nil
}

func (s *sessionService) DeleteSession(ctx context.Context, user store.UserContext, sessionID string) error {
	deleted, err := s.historyStore.DeleteSession(ctx, user.UserID, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return history.ErrSessionNotFound
	}
	return nil
}

func (s *sessionService) RenameSession(ctx context.Context, user store.UserContext, sessionID, title string) error {
	return s.historyStore.SetTitle(ctx, user.UserID, sessionID, title)
}

func (s *sessionService) GetHistory(ctx context.Context, user store.UserContext, sessionID string, maxN int) ([]*dto.ChatTurnResponse, error) {
	if _, ok, err := s.historyStore.GetSessionType(ctx, user.UserID, sessionID); err != nil {
		return nil, err
	} else if !ok {
		return nil, history.ErrSessionNotFound
	}

	if maxN <= 0 {
		maxN = 50
	}
	turns, err := s.historyStore.GetRecentTurns(ctx, sessionID, maxN)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ChatTurnResponse, len(turns))
	for i, turn := range turns {
		out[i] = &dto.ChatTurnResponse{
			Role:      turn.Role,
			Content:   turn.Content,
			Timestamp: turn.Timestamp,
		}
	}
	return out, nil
}
