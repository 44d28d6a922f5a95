package service

import (
	"context"
	"strings"
	"testing"

	"campus-rag-be/internal/dto"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/pkg/history"
	"campus-rag-be/pkg/rag/pipeline"
	"campus-rag-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	runs     int
	lastTier string
}

func (f *fakePipeline) Run(_ context.Context, tier, _, _ string, _ store.UserContext) (*pipeline.AnswerStream, error) {
	f.runs++
	f.lastTier = tier
	return nil, nil
}

func newChatFixture() (IChatService, *fakePipeline, history.Store) {
	orch := &fakePipeline{}
	hist := history.NewMemoryStore(3600, 50)
	return NewChatService(orch, hist, logger.NewNop()), orch, hist
}

func student() store.UserContext {
	return store.UserContext{UserID: "u1", UserName: "Zhang Wei", UserRole: "student", DeptID: "CS"}
}

func TestSendChatRejectsEmptyInput(t *testing.T) {
	svc, orch, _ := newChatFixture()

	_, err := svc.SendChat(context.Background(), "public", &dto.ChatRequest{Query: "", SessionID: "s1"}, student())
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.SendChat(context.Background(), "public", &dto.ChatRequest{Query: "hi", SessionID: ""}, student())
	assert.ErrorIs(t, err, ErrEmptyQuery)

	assert.Equal(t, 0, orch.runs)
}

func TestSendChatRejectsUnknownTier(t *testing.T) {
	svc, orch, _ := newChatFixture()

	_, err := svc.SendChat(context.Background(), "secret", &dto.ChatRequest{Query: "hi", SessionID: "s1"}, student())

	assert.ErrorIs(t, err, pipeline.ErrPipelineNotFound)
	assert.Equal(t, 0, orch.runs)
}

func TestSendChatRolePermissions(t *testing.T) {
	tests := []struct {
		role    string
		tier    string
		allowed bool
	}{
		{role: "guest", tier: "public", allowed: true},
		{role: "guest", tier: "academic", allowed: false},
		{role: "guest", tier: "internal", allowed: false},
		{role: "guest", tier: "personal", allowed: false},
		{role: "student", tier: "public", allowed: true},
		{role: "student", tier: "academic", allowed: true},
		{role: "student", tier: "internal", allowed: true},
		{role: "student", tier: "personal", allowed: true},
		{role: "teacher", tier: "internal", allowed: true},
		{role: "teacher", tier: "personal", allowed: true},
		{role: "scholar", tier: "public", allowed: true},
		{role: "scholar", tier: "academic", allowed: true},
		{role: "scholar", tier: "internal", allowed: false},
		{role: "scholar", tier: "personal", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"_"+tt.tier, func(t *testing.T) {
			svc, orch, _ := newChatFixture()
			user := store.UserContext{UserID: "u-" + tt.role, UserRole: tt.role}

			_, err := svc.SendChat(context.Background(), tt.tier, &dto.ChatRequest{Query: "hi", SessionID: "s1"}, user)

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, 1, orch.runs)
			} else {
				require.ErrorIs(t, err, ErrAccessDenied)
				assert.Equal(t, 0, orch.runs)
			}
		})
	}
}

func TestSendChatBindsSessionOnFirstUse(t *testing.T) {
	svc, orch, hist := newChatFixture()
	user := student()

	_, err := svc.SendChat(context.Background(), "academic", &dto.ChatRequest{Query: "explain transformers", SessionID: "client-1"}, user)
	require.NoError(t, err)
	assert.Equal(t, 1, orch.runs)

	boundType, ok, err := hist.GetSessionType(context.Background(), user.UserID, "client-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "academic", boundType)

	// Same tier again is fine.
	_, err = svc.SendChat(context.Background(), "academic", &dto.ChatRequest{Query: "more detail", SessionID: "client-1"}, user)
	require.NoError(t, err)
	assert.Equal(t, 2, orch.runs)
}

func TestSendChatRejectsTierMismatch(t *testing.T) {
	svc, orch, hist := newChatFixture()
	user := student()

	require.NoError(t, hist.BindSession(context.Background(), user.UserID, "s1", "public", "First chat"))

	_, err := svc.SendChat(context.Background(), "personal", &dto.ChatRequest{Query: "my gpa", SessionID: "s1"}, user)

	require.ErrorIs(t, err, ErrTierMismatch)
	assert.Equal(t, 0, orch.runs, "mismatch must be rejected before the pipeline starts")
}

func TestSendChatRejectsSessionOwnedByAnotherUser(t *testing.T) {
	svc, orch, hist := newChatFixture()

	// Another user already holds this session id (personal tier).
	owner := store.UserContext{UserID: "u-owner", UserRole: "teacher"}
	require.NoError(t, hist.BindSession(context.Background(), owner.UserID, "shared-id", "personal", "Private"))
	require.NoError(t, hist.AppendTurn(context.Background(), "shared-id", "user", "my salary record"))

	intruder := student()
	_, err := svc.SendChat(context.Background(), "public", &dto.ChatRequest{Query: "hi", SessionID: "shared-id"}, intruder)

	require.ErrorIs(t, err, history.ErrSessionConflict)
	assert.Equal(t, 0, orch.runs, "a foreign session id must never reach the pipeline")

	// The owner's log is untouched and still theirs alone.
	sessionType, ok, err := hist.GetSessionType(context.Background(), owner.UserID, "shared-id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "personal", sessionType)

	turns, err := hist.GetRecentTurns(context.Background(), "shared-id", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestSendChatDerivesTitleFromFirstQuery(t *testing.T) {
	svc, _, hist := newChatFixture()
	user := student()

	long := strings.Repeat("a", 60)
	_, err := svc.SendChat(context.Background(), "public", &dto.ChatRequest{Query: long, SessionID: "s1"}, user)
	require.NoError(t, err)

	sessions, err := hist.ListSessions(context.Background(), user.UserID, "")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, strings.Repeat("a", 40)+"...", sessions[0].Title)
}
