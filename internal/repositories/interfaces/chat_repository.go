package interfaces

import (
	"context"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatRepository interface {
	// Chat operations
	CreateChat(ctx context.Context, chat *models.Chat) error
	GetChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	GetChatByRideID(ctx context.Context, rideID primitive.ObjectID) (*models.Chat, error)
	FindDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error)
	GetChatsByParticipant(ctx context.Context, userID string) ([]*models.Chat, error)

	// Guarded on chat.Version like the ride writes
	AddParticipant(ctx context.Context, chat *models.Chat, userID string) error
	UpdateRideDetails(ctx context.Context, chat *models.Chat, details *models.RideDetails) error
	UpdateLastMessage(ctx context.Context, chat *models.Chat, message *models.Message) error

	// Message operations
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessagesByChatID(ctx context.Context, chatID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error)
	CountMessagesSince(ctx context.Context, chatID primitive.ObjectID, since time.Time, excludeSender string) (int64, error)
}
