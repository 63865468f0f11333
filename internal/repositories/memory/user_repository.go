package memory

import (
	"context"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
)

type userRepository struct {
	store *Store
}

func NewUserRepository(store *Store) interfaces.UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	return r.store.run(ctx, func(tx *txn) error {
		if _, ok := r.store.user(tx, user.ID); ok {
			return fmt.Errorf("failed to create user: %w", interfaces.ErrDuplicate)
		}
		doc := user.Clone()
		tx.users[user.ID] = doc
		tx.userOps = append(tx.userOps, userOp{
			id:     user.ID,
			insert: true,
			apply:  func(*models.User) *models.User { return doc.Clone() },
		})
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.store.user(txFromContext(ctx), id)
	if !ok {
		return nil, fmt.Errorf("user not found: %w", interfaces.ErrNotFound)
	}
	return user, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	src := user.Clone()
	apply := func(cur *models.User) *models.User {
		cur.Name = src.Name
		cur.Email = src.Email
		cur.PhoneNumber = src.PhoneNumber
		cur.Bio = src.Bio
		cur.ProfileImageURL = src.ProfileImageURL
		cur.IsDriver = src.IsDriver
		cur.CarPlateNumber = src.CarPlateNumber
		cur.CarModel = src.CarModel
		cur.CarColor = src.CarColor
		cur.UpdatedAt = src.UpdatedAt
		return cur
	}
	return r.update(ctx, user.ID, apply)
}

func (r *userRepository) SetLastRead(ctx context.Context, userID, chatID string, at time.Time) error {
	return r.update(ctx, userID, func(cur *models.User) *models.User {
		if cur.LastRead == nil {
			cur.LastRead = make(map[string]time.Time)
		}
		cur.LastRead[chatID] = at
		return cur
	})
}

func (r *userRepository) update(ctx context.Context, id string, apply func(cur *models.User) *models.User) error {
	return r.store.run(ctx, func(tx *txn) error {
		cur, ok := r.store.user(tx, id)
		if !ok {
			return fmt.Errorf("user not found: %w", interfaces.ErrNotFound)
		}
		tx.users[id] = apply(cur)
		tx.userOps = append(tx.userOps, userOp{id: id, apply: apply})
		return nil
	})
}
