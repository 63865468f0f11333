package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection(models.CollectionRides),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	ride.CreatedAt = time.Now()
	ride.UpdatedAt = ride.CreatedAt
	ride.Version = 1
	if ride.Passengers == nil {
		ride.Passengers = []string{}
	}
	if ride.PassengerNames == nil {
		ride.PassengerNames = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, ride); err != nil {
		return wrapWriteError("create ride", err)
	}
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("ride not found: %w", interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return &ride, nil
}

func (r *rideRepository) UpdateMembership(ctx context.Context, ride *models.Ride) error {
	return r.guardedUpdate(ctx, ride, bson.M{}, bson.M{
		"passengers":      ride.Passengers,
		"passenger_names": ride.PassengerNames,
		"available_seats": ride.AvailableSeats,
	})
}

func (r *rideRepository) SetChatID(ctx context.Context, ride *models.Ride, chatID primitive.ObjectID) error {
	if err := r.guardedUpdate(ctx, ride, bson.M{"chat_id": nil}, bson.M{"chat_id": chatID}); err != nil {
		return err
	}
	ride.ChatID = &chatID
	return nil
}

func (r *rideRepository) guardedUpdate(ctx context.Context, ride *models.Ride, extra bson.M, set bson.M) error {
	now := time.Now()
	filter := bson.M{"_id": ride.ID, "version": ride.Version}
	for k, v := range extra {
		filter[k] = v
	}
	set["updated_at"] = now

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return wrapWriteError("update ride", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("failed to update ride %s: %w", ride.ID.Hex(), interfaces.ErrWriteConflict)
	}

	ride.Version++
	ride.UpdatedAt = now
	return nil
}

func (r *rideRepository) ListUpcoming(ctx context.Context, filter *models.RideFilter, now time.Time) ([]*models.Ride, error) {
	if filter == nil {
		filter = &models.RideFilter{}
	}
	query := bson.M{"date_time": bson.M{"$gt": now}}
	if filter.RideType != "" {
		query["ride_type"] = filter.RideType
	}
	if filter.OnlyAvailable {
		query["available_seats"] = bson.M{"$gt": 0}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := regexp.QuoteMeta(search)
		query["$or"] = []bson.M{
			{"departure_point": bson.M{"$regex": pattern, "$options": "i"}},
			{"arrival_point": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date_time", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, query, opts)
}

func (r *rideRepository) ListByUser(ctx context.Context, userID string) ([]*models.Ride, error) {
	query := bson.M{"$or": []bson.M{
		{"driver_id": userID},
		{"passengers": userID},
	}}
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "date_time", Value: 1}}))
}

func (r *rideRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Ride, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rides: %w", err)
	}
	return rides, nil
}
