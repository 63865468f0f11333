package services

import (
	"context"
	"errors"
	"fmt"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedService scopes change feed subscriptions to what the caller may read.
type FeedService interface {
	Subscribe(ctx context.Context, userID string, query models.SubscriptionQuery) (<-chan models.ChangeEvent, func(), error)
}

type feedService struct {
	feed     interfaces.ChangeFeed
	chatRepo interfaces.ChatRepository
	logger   *logger.Logger
}

func NewFeedService(feed interfaces.ChangeFeed, chatRepo interfaces.ChatRepository, logger *logger.Logger) FeedService {
	return &feedService{
		feed:     feed,
		chatRepo: chatRepo,
		logger:   logger,
	}
}

func (s *feedService) Subscribe(ctx context.Context, userID string, query models.SubscriptionQuery) (<-chan models.ChangeEvent, func(), error) {
	scoped, err := s.scope(ctx, userID, query)
	if err != nil {
		return nil, nil, err
	}

	events, cancel, err := s.feed.Subscribe(ctx, scoped)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s.logger.WithUserID(userID).WithFields(map[string]interface{}{
		"collection": scoped.Collection,
		"chat_id":    scoped.ChatID,
	}).Debug("Change feed subscription opened")
	return events, cancel, nil
}

// scope narrows query so that a subscriber only sees public ride listings,
// its own chats and profile, and messages of chats it takes part in.
func (s *feedService) scope(ctx context.Context, userID string, query models.SubscriptionQuery) (models.SubscriptionQuery, error) {
	switch query.Collection {
	case models.CollectionRides:
		return query, nil

	case models.CollectionChats:
		query.Participant = userID
		return query, nil

	case models.CollectionUsers:
		query.DocumentID = userID
		return query, nil

	case models.CollectionMessages:
		if query.ChatID == "" {
			return query, NewValidationError("chat_id is required for message subscriptions", nil)
		}
		chatID, err := primitive.ObjectIDFromHex(query.ChatID)
		if err != nil {
			return query, NewValidationError("Invalid chat ID", nil)
		}
		chat, err := s.chatRepo.GetChatByID(ctx, chatID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return query, NewNotFoundError("Chat not found")
			}
			return query, fmt.Errorf("failed to get chat: %w", err)
		}
		if !chat.HasParticipant(userID) {
			return query, NewAuthorizationError("You are not a participant of this chat")
		}
		return query, nil

	default:
		return query, NewValidationError(fmt.Sprintf("Unknown collection %q", query.Collection), nil)
	}
}
