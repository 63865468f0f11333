package interfaces

import (
	"context"
	"time"

	"ridemate/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// Guarded writes: they succeed only while the stored version equals
	// ride.Version, bump it, and return ErrWriteConflict otherwise.
	UpdateMembership(ctx context.Context, ride *models.Ride) error
	SetChatID(ctx context.Context, ride *models.Ride, chatID primitive.ObjectID) error

	ListUpcoming(ctx context.Context, filter *models.RideFilter, now time.Time) ([]*models.Ride, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Ride, error)
}
