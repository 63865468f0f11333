package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/utils"
	"ridemate/internal/validators"
	"ridemate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatService interface {
	CreateRideChat(ctx context.Context, ride *models.Ride, creatorName string) (*models.Chat, error)
	CreateOrGetDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error)
	AppendMessage(ctx context.Context, chatID primitive.ObjectID, sender models.Actor, content string, isSystem bool) (*models.Message, error)
	UnreadCount(ctx context.Context, chatID primitive.ObjectID, userID string, since time.Time) (int, error)

	GetChat(ctx context.Context, chatID primitive.ObjectID, userID string) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]*models.ChatSummary, error)
	ListMessages(ctx context.Context, chatID primitive.ObjectID, userID string, params *utils.PaginationParams) ([]*models.Message, int64, error)
	MarkRead(ctx context.Context, chatID primitive.ObjectID, userID string) error
	UnreadSummary(ctx context.Context, userID string) (*models.UnreadSummary, error)
}

type chatService struct {
	chatRepo interfaces.ChatRepository
	userRepo interfaces.UserRepository
	writer   *chatWriter
	atomic   *atomicRunner
	logger   *logger.Logger
	now      func() time.Time
}

func NewChatService(
	tx interfaces.Transactor,
	chatRepo interfaces.ChatRepository,
	userRepo interfaces.UserRepository,
	policy RetryPolicy,
	logger *logger.Logger,
) ChatService {
	return &chatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
		writer:   &chatWriter{chatRepo: chatRepo, now: time.Now},
		atomic:   &atomicRunner{tx: tx, policy: policy, logger: logger},
		logger:   logger,
		now:      time.Now,
	}
}

func (s *chatService) CreateRideChat(ctx context.Context, ride *models.Ride, creatorName string) (*models.Chat, error) {
	if ride == nil || ride.ID.IsZero() {
		return nil, NewValidationError("A saved ride is required to open its chat", nil)
	}

	var chat *models.Chat
	err := s.atomic.run(ctx, "create_ride_chat", func(ctx context.Context) error {
		var err error
		chat, err = s.writer.createRideChat(ctx, ride, creatorName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ride chat: %w", err)
	}

	s.logger.WithChatID(chat.ID).WithRideID(ride.ID).Info("Ride chat created")
	return chat, nil
}

func (s *chatService) CreateOrGetDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return nil, NewValidationError("Both users are required", nil)
	}
	if userA == userB {
		return nil, NewValidationError("You cannot start a chat with yourself", nil)
	}
	if _, err := s.userRepo.GetByID(ctx, userB); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var chat *models.Chat
	err := s.atomic.run(ctx, "create_direct_chat", func(ctx context.Context) error {
		existing, err := s.chatRepo.FindDirectChat(ctx, userA, userB)
		if err == nil {
			chat = existing
			return nil
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			return err
		}

		chat = &models.Chat{
			Participants: []string{userA, userB},
			DirectKey:    models.DirectChatKey(userA, userB),
		}
		if err := s.chatRepo.CreateChat(ctx, chat); err != nil {
			return err
		}
		_, err = s.writer.appendSystem(ctx, chat, "Chat started.")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open direct chat: %w", err)
	}
	return chat, nil
}

func (s *chatService) AppendMessage(ctx context.Context, chatID primitive.ObjectID, sender models.Actor, content string, isSystem bool) (*models.Message, error) {
	if errs := validators.ValidateMessageContent(content); len(errs) > 0 {
		return nil, validationFailure(errs)
	}

	var msg *models.Message
	err := s.atomic.run(ctx, "append_message", func(ctx context.Context) error {
		chat, err := s.chatRepo.GetChatByID(ctx, chatID)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				return NewNotFoundError("Chat not found")
			}
			return err
		}

		if isSystem {
			msg, err = s.writer.appendSystem(ctx, chat, content)
			return err
		}
		if !chat.HasParticipant(sender.ID) {
			return NewAuthorizationError("You are not a participant of this chat")
		}
		msg, err = s.writer.append(ctx, chat, &models.Message{
			SenderID:   sender.ID,
			SenderName: sender.Name,
			Content:    content,
		})
		return err
	})
	if err != nil {
		if _, ok := AsAppError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

func (s *chatService) UnreadCount(ctx context.Context, chatID primitive.ObjectID, userID string, since time.Time) (int, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return 0, err
	}
	n, err := s.chatRepo.CountMessagesSince(ctx, chatID, since, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return int(n), nil
}

func (s *chatService) GetChat(ctx context.Context, chatID primitive.ObjectID, userID string) (*models.Chat, error) {
	return s.participantChat(ctx, chatID, userID)
}

func (s *chatService) ListChats(ctx context.Context, userID string) ([]*models.ChatSummary, error) {
	chats, err := s.chatRepo.GetChatsByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	user, err := s.readMarks(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		n, err := s.chatRepo.CountMessagesSince(ctx, chat.ID, user.LastReadAt(chat.ID.Hex()), userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count unread messages: %w", err)
		}
		summaries = append(summaries, &models.ChatSummary{Chat: chat, UnreadCount: int(n)})
	}
	return summaries, nil
}

func (s *chatService) ListMessages(ctx context.Context, chatID primitive.ObjectID, userID string, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	if _, err := s.participantChat(ctx, chatID, userID); err != nil {
		return nil, 0, err
	}
	messages, total, err := s.chatRepo.GetMessagesByChatID(ctx, chatID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, total, nil
}

func (s *chatService) MarkRead(ctx context.Context, chatID primitive.ObjectID, userID string) error {
	chat, err := s.participantChat(ctx, chatID, userID)
	if err != nil {
		return err
	}
	// Message timestamps can run slightly ahead of the clock when several
	// arrive within one millisecond.
	mark := s.now().UTC()
	if chat.LastMessageTime.After(mark) {
		mark = chat.LastMessageTime
	}
	if err := s.userRepo.SetLastRead(ctx, userID, chatID.Hex(), mark); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return NewNotFoundError("User not found")
		}
		return fmt.Errorf("failed to mark chat as read: %w", err)
	}
	return nil
}

func (s *chatService) UnreadSummary(ctx context.Context, userID string) (*models.UnreadSummary, error) {
	chats, err := s.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &models.UnreadSummary{Chats: make(map[string]int)}
	for _, c := range chats {
		if c.UnreadCount == 0 {
			continue
		}
		summary.Chats[c.ID.Hex()] = c.UnreadCount
		summary.Total += c.UnreadCount
	}
	return summary, nil
}

func (s *chatService) participantChat(ctx context.Context, chatID primitive.ObjectID, userID string) (*models.Chat, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError("Chat not found")
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if !chat.HasParticipant(userID) {
		return nil, NewAuthorizationError("You are not a participant of this chat")
	}
	return chat, nil
}

// readMarks loads the user's last-read marks. A user without a profile has
// read nothing yet.
func (s *chatService) readMarks(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return &models.User{ID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
