package interfaces

import (
	"context"
	"time"

	"ridemate/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	SetLastRead(ctx context.Context, userID, chatID string, at time.Time) error
}
