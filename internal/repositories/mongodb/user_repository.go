package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) interfaces.UserRepository {
	return &userRepository{
		collection: db.Collection(models.CollectionUsers),
	}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		return wrapWriteError("create user", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("user not found: %w", interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	return r.update(ctx, user.ID, bson.M{
		"name":              user.Name,
		"email":             user.Email,
		"phone_number":      user.PhoneNumber,
		"bio":               user.Bio,
		"profile_image_url": user.ProfileImageURL,
		"is_driver":         user.IsDriver,
		"car_plate_number":  user.CarPlateNumber,
		"car_model":         user.CarModel,
		"car_color":         user.CarColor,
		"updated_at":        user.UpdatedAt,
	})
}

func (r *userRepository) SetLastRead(ctx context.Context, userID, chatID string, at time.Time) error {
	return r.update(ctx, userID, bson.M{"last_read." + chatID: at})
}

func (r *userRepository) update(ctx context.Context, id string, set bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return wrapWriteError("update user", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found: %w", interfaces.ErrNotFound)
	}
	return nil
}
