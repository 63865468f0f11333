package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type chatRepository struct {
	store *Store
}

func NewChatRepository(store *Store) interfaces.ChatRepository {
	return &chatRepository{store: store}
}

func (r *chatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	chat.Version = 1
	if chat.Participants == nil {
		chat.Participants = []string{}
	}

	return r.store.run(ctx, func(tx *txn) error {
		if _, ok := r.store.chat(tx, chat.ID); ok {
			return fmt.Errorf("failed to create chat: %w", interfaces.ErrDuplicate)
		}
		tx.stageChat(chat.Clone(), insertBase)
		return nil
	})
}

func (r *chatRepository) GetChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	chat, ok := r.store.chat(txFromContext(ctx), id)
	if !ok {
		return nil, fmt.Errorf("chat not found: %w", interfaces.ErrNotFound)
	}
	return chat, nil
}

func (r *chatRepository) GetChatByRideID(ctx context.Context, rideID primitive.ObjectID) (*models.Chat, error) {
	for _, chat := range r.store.allChats(txFromContext(ctx)) {
		if chat.IsRideChat && chat.RideID != nil && *chat.RideID == rideID {
			return chat, nil
		}
	}
	return nil, fmt.Errorf("chat not found for ride: %w", interfaces.ErrNotFound)
}

func (r *chatRepository) FindDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	key := models.DirectChatKey(userA, userB)
	for _, chat := range r.store.allChats(txFromContext(ctx)) {
		if !chat.IsRideChat && chat.DirectKey == key {
			return chat, nil
		}
	}
	return nil, fmt.Errorf("direct chat not found: %w", interfaces.ErrNotFound)
}

func (r *chatRepository) GetChatsByParticipant(ctx context.Context, userID string) ([]*models.Chat, error) {
	var chats []*models.Chat
	for _, chat := range r.store.allChats(txFromContext(ctx)) {
		if chat.HasParticipant(userID) {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].LastMessageTime.After(chats[j].LastMessageTime) })
	return chats, nil
}

func (r *chatRepository) AddParticipant(ctx context.Context, chat *models.Chat, userID string) error {
	return r.guarded(ctx, chat, func(next *models.Chat) {
		if !next.HasParticipant(userID) {
			next.Participants = append(next.Participants, userID)
		}
		chat.Participants = append([]string{}, next.Participants...)
	})
}

func (r *chatRepository) UpdateRideDetails(ctx context.Context, chat *models.Chat, details *models.RideDetails) error {
	return r.guarded(ctx, chat, func(next *models.Chat) {
		d := *details
		next.RideDetails = &d
		chat.RideDetails = details
	})
}

func (r *chatRepository) UpdateLastMessage(ctx context.Context, chat *models.Chat, message *models.Message) error {
	return r.guarded(ctx, chat, func(next *models.Chat) {
		next.LastMessage = message.Content
		next.LastMessageTime = message.Timestamp
		next.LastMessageSenderID = message.SenderID
		chat.LastMessage = message.Content
		chat.LastMessageTime = message.Timestamp
		chat.LastMessageSenderID = message.SenderID
	})
}

func (r *chatRepository) guarded(ctx context.Context, chat *models.Chat, mutate func(next *models.Chat)) error {
	return r.store.run(ctx, func(tx *txn) error {
		cur, ok := r.store.chat(tx, chat.ID)
		if !ok {
			return fmt.Errorf("chat not found: %w", interfaces.ErrNotFound)
		}
		if cur.Version != chat.Version {
			return fmt.Errorf("failed to update chat: %w", interfaces.ErrWriteConflict)
		}
		base := cur.Version
		mutate(cur)
		cur.Version++
		cur.UpdatedAt = time.Now()
		tx.stageChat(cur, base)

		chat.Version = cur.Version
		chat.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *chatRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	return r.store.run(ctx, func(tx *txn) error {
		if _, ok := r.store.chat(tx, message.ChatID); !ok {
			return fmt.Errorf("failed to insert message: %w", interfaces.ErrNotFound)
		}
		m := *message
		tx.messages = append(tx.messages, &m)
		return nil
	})
}

func (r *chatRepository) GetMessagesByChatID(ctx context.Context, chatID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	messages := r.store.chatMessages(txFromContext(ctx), chatID)
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })

	total := int64(len(messages))
	if params == nil {
		return messages, total, nil
	}
	skip := params.GetSkip()
	if skip >= len(messages) {
		return []*models.Message{}, total, nil
	}
	end := skip + params.GetLimit()
	if end > len(messages) {
		end = len(messages)
	}
	return messages[skip:end], total, nil
}

func (r *chatRepository) CountMessagesSince(ctx context.Context, chatID primitive.ObjectID, since time.Time, excludeSender string) (int64, error) {
	var count int64
	for _, m := range r.store.chatMessages(txFromContext(ctx), chatID) {
		if m.Timestamp.After(since) && m.SenderID != excludeSender {
			count++
		}
	}
	return count, nil
}
