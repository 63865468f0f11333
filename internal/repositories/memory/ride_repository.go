package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type rideRepository struct {
	store *Store
}

func NewRideRepository(store *Store) interfaces.RideRepository {
	return &rideRepository{store: store}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	ride.Version = 1
	if ride.Passengers == nil {
		ride.Passengers = []string{}
	}
	if ride.PassengerNames == nil {
		ride.PassengerNames = []string{}
	}

	return r.store.run(ctx, func(tx *txn) error {
		if _, ok := r.store.ride(tx, ride.ID); ok {
			return fmt.Errorf("failed to create ride: %w", interfaces.ErrDuplicate)
		}
		tx.stageRide(ride.Clone(), insertBase)
		return nil
	})
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	ride, ok := r.store.ride(txFromContext(ctx), id)
	if !ok {
		return nil, fmt.Errorf("ride not found: %w", interfaces.ErrNotFound)
	}
	return ride, nil
}

func (r *rideRepository) UpdateMembership(ctx context.Context, ride *models.Ride) error {
	return r.guarded(ctx, ride, func(next *models.Ride) {
		next.Passengers = append([]string{}, ride.Passengers...)
		next.PassengerNames = append([]string{}, ride.PassengerNames...)
		next.AvailableSeats = ride.AvailableSeats
	})
}

func (r *rideRepository) SetChatID(ctx context.Context, ride *models.Ride, chatID primitive.ObjectID) error {
	return r.guarded(ctx, ride, func(next *models.Ride) {
		id := chatID
		next.ChatID = &id
		ride.ChatID = &id
	})
}

func (r *rideRepository) guarded(ctx context.Context, ride *models.Ride, mutate func(next *models.Ride)) error {
	return r.store.run(ctx, func(tx *txn) error {
		cur, ok := r.store.ride(tx, ride.ID)
		if !ok {
			return fmt.Errorf("ride not found: %w", interfaces.ErrNotFound)
		}
		if cur.Version != ride.Version {
			return fmt.Errorf("failed to update ride: %w", interfaces.ErrWriteConflict)
		}
		base := cur.Version
		mutate(cur)
		cur.Version++
		cur.UpdatedAt = time.Now()
		tx.stageRide(cur, base)

		ride.Version = cur.Version
		ride.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *rideRepository) ListUpcoming(ctx context.Context, filter *models.RideFilter, now time.Time) ([]*models.Ride, error) {
	if filter == nil {
		filter = &models.RideFilter{}
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var rides []*models.Ride
	for _, ride := range r.store.allRides(txFromContext(ctx)) {
		if !ride.IsUpcoming(now) {
			continue
		}
		if filter.RideType != "" && ride.RideType != filter.RideType {
			continue
		}
		if filter.OnlyAvailable && ride.AvailableSeats <= 0 {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(ride.DeparturePoint), search) &&
			!strings.Contains(strings.ToLower(ride.ArrivalPoint), search) {
			continue
		}
		rides = append(rides, ride)
	}

	sort.Slice(rides, func(i, j int) bool { return rides[i].DateTime.Before(rides[j].DateTime) })
	if filter.Limit > 0 && len(rides) > filter.Limit {
		rides = rides[:filter.Limit]
	}
	return rides, nil
}

func (r *rideRepository) ListByUser(ctx context.Context, userID string) ([]*models.Ride, error) {
	var rides []*models.Ride
	for _, ride := range r.store.allRides(txFromContext(ctx)) {
		if ride.DriverID == userID || ride.HasPassenger(userID) {
			rides = append(rides, ride)
		}
	}
	sort.Slice(rides, func(i, j int) bool { return rides[i].DateTime.Before(rides[j].DateTime) })
	return rides, nil
}
