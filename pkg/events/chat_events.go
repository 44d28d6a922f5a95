package events

import (
	"encoding/json"
	"time"

	"campus-rag-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const TopicChatCompleted = "chat.completed"

// ChatCompleted is published after an assistant turn is persisted. The
// usage recorder consumes it to bump per-user accounting.
type ChatCompleted struct {
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Tier         string    `json:"tier"`
	QueryChars   int       `json:"query_chars"`
	AnswerChars  int       `json:"answer_chars"`
	ShortCircuit bool      `json:"short_circuit"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Publisher wraps the in-process bus; publishing is best-effort and never
// fails the chat request.
type Publisher struct {
	publisher message.Publisher
	log       logger.ILogger
}

func NewPublisher(publisher message.Publisher, log logger.ILogger) *Publisher {
	return &Publisher{publisher: publisher, log: log}
}

func (p *Publisher) ChatCompleted(event ChatCompleted) {
	if p == nil || p.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("events", "failed to encode chat event", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(TopicChatCompleted, msg); err != nil {
		p.log.Error("events", "failed to publish chat event", map[string]interface{}{"error": err.Error()})
	}
}
