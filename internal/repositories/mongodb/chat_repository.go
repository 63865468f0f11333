package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type chatRepository struct {
	chatsCollection    *mongo.Collection
	messagesCollection *mongo.Collection
}

func NewChatRepository(db *mongo.Database) interfaces.ChatRepository {
	return &chatRepository{
		chatsCollection:    db.Collection(models.CollectionChats),
		messagesCollection: db.Collection(models.CollectionMessages),
	}
}

// Chat operations
func (r *chatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	chat.CreatedAt = time.Now()
	chat.UpdatedAt = chat.CreatedAt
	chat.Version = 1
	if chat.Participants == nil {
		chat.Participants = []string{}
	}

	if _, err := r.chatsCollection.InsertOne(ctx, chat); err != nil {
		return wrapWriteError("create chat", err)
	}
	return nil
}

func (r *chatRepository) GetChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	return r.findOneChat(ctx, bson.M{"_id": id}, nil)
}

func (r *chatRepository) GetChatByRideID(ctx context.Context, rideID primitive.ObjectID) (*models.Chat, error) {
	return r.findOneChat(ctx, bson.M{"ride_id": rideID, "is_ride_chat": true}, nil)
}

func (r *chatRepository) FindDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	return r.findOneChat(ctx, bson.M{"direct_key": models.DirectChatKey(userA, userB)}, nil)
}

func (r *chatRepository) findOneChat(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.Chat, error) {
	if opts == nil {
		opts = options.FindOne()
	}
	var chat models.Chat
	err := r.chatsCollection.FindOne(ctx, filter, opts).Decode(&chat)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("chat not found: %w", interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (r *chatRepository) GetChatsByParticipant(ctx context.Context, userID string) ([]*models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_time", Value: -1}})
	cursor, err := r.chatsCollection.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find chats: %w", err)
	}
	defer cursor.Close(ctx)

	var chats []*models.Chat
	for cursor.Next(ctx) {
		var chat models.Chat
		if err := cursor.Decode(&chat); err != nil {
			return nil, fmt.Errorf("failed to decode chat: %w", err)
		}
		chats = append(chats, &chat)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}
	return chats, nil
}

func (r *chatRepository) AddParticipant(ctx context.Context, chat *models.Chat, userID string) error {
	err := r.guardedUpdate(ctx, chat, bson.M{
		"$addToSet": bson.M{"participants": userID},
	})
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		chat.Participants = append(chat.Participants, userID)
	}
	return nil
}

func (r *chatRepository) UpdateRideDetails(ctx context.Context, chat *models.Chat, details *models.RideDetails) error {
	err := r.guardedUpdate(ctx, chat, bson.M{
		"$set": bson.M{"ride_details": details},
	})
	if err != nil {
		return err
	}
	chat.RideDetails = details
	return nil
}

func (r *chatRepository) UpdateLastMessage(ctx context.Context, chat *models.Chat, message *models.Message) error {
	err := r.guardedUpdate(ctx, chat, bson.M{
		"$set": bson.M{
			"last_message":           message.Content,
			"last_message_time":      message.Timestamp,
			"last_message_sender_id": message.SenderID,
		},
	})
	if err != nil {
		return err
	}
	chat.LastMessage = message.Content
	chat.LastMessageTime = message.Timestamp
	chat.LastMessageSenderID = message.SenderID
	return nil
}

func (r *chatRepository) guardedUpdate(ctx context.Context, chat *models.Chat, update bson.M) error {
	now := time.Now()
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = now
	update["$set"] = set
	update["$inc"] = bson.M{"version": 1}

	result, err := r.chatsCollection.UpdateOne(ctx, bson.M{"_id": chat.ID, "version": chat.Version}, update)
	if err != nil {
		return wrapWriteError("update chat", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to update chat %s: %w", chat.ID.Hex(), interfaces.ErrWriteConflict)
	}

	chat.Version++
	chat.UpdatedAt = now
	return nil
}

// Message operations
func (r *chatRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	if _, err := r.messagesCollection.InsertOne(ctx, message); err != nil {
		return wrapWriteError("insert message", err)
	}
	return nil
}

func (r *chatRepository) GetMessagesByChatID(ctx context.Context, chatID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	filter := bson.M{"chat_id": chatID}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if params != nil {
		opts.SetSkip(int64(params.GetSkip())).SetLimit(int64(params.GetLimit()))
	}

	total, err := r.messagesCollection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	cursor, err := r.messagesCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []*models.Message{}
	for cursor.Next(ctx) {
		var message models.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, 0, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &message)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, total, nil
}

func (r *chatRepository) CountMessagesSince(ctx context.Context, chatID primitive.ObjectID, since time.Time, excludeSender string) (int64, error) {
	count, err := r.messagesCollection.CountDocuments(ctx, bson.M{
		"chat_id":   chatID,
		"timestamp": bson.M{"$gt": since},
		"sender_id": bson.M{"$ne": excludeSender},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
