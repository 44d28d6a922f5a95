package service

import (
	"context"
	"encoding/json"

	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/internal/repository/contract"
	"campus-rag-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IUsageService interface {
	Consume(ctx context.Context) error
}

// usageService consumes chat.completed events and records per-user AI
// usage. Guest traffic has no directory row and is skipped.
type usageService struct {
	pubSub   *gochannel.GoChannel
	userRepo contract.UserRepository
	log      logger.ILogger
}

func NewUsageService(pubSub *gochannel.GoChannel, userRepo contract.UserRepository, log logger.ILogger) IUsageService {
	return &usageService{
		pubSub:   pubSub,
		userRepo: userRepo,
		log:      log,
	}
}

func (s *usageService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, events.TopicChatCompleted)
	if err != nil {
		return err
	}

	for msg := range messages {
		var event events.ChatCompleted
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			s.log.Error("usage", "malformed chat event", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}

		userID, err := uuid.Parse(event.UserID)
		if err != nil {
			// Guests carry a synthetic id; nothing to record.
			msg.Ack()
			continue
		}

		if err := s.userRepo.IncrementAiUsage(ctx, userID, 1); err != nil {
			s.log.Error("usage", "failed to record usage", map[string]interface{}{
				"user_id": event.UserID,
				"error":   err.Error(),
			})
		}
		msg.Ack()
	}
	return nil
}
