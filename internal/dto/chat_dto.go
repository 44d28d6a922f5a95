package dto

import "time"

type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type CreateSessionRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type ChatTurnResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
