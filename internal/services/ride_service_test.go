package services

import (
	"context"
	"testing"
	"time"

	"ridemate/internal/models"
	"ridemate/pkg/cache"
	"ridemate/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func withListingCache(t *testing.T, env *testEnv) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.NewDiscard()
	cacheService := NewCacheService(cache.NewRedisCacheFromClient(client), log, "ridemate", time.Minute)
	env.rides = NewRideService(env.rideRepo, cacheService, time.Minute, 100, log)
	env.membership = NewMembershipService(env.store, env.rideRepo, env.chatRepo, env.rides,
		RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond}, log)
}

func TestCreateRideValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   models.Actor
		mutate  func(*models.RideSpec)
		wantErr error
		message string
	}{
		{"same points", driverActor("d"), func(s *models.RideSpec) { s.ArrivalPoint = "LYON" }, ErrValidation, "Departure and arrival points cannot be the same."},
		{"past date", driverActor("d"), func(s *models.RideSpec) { s.DateTime = time.Now().Add(-time.Minute) }, ErrValidation, "Date and time must be in the future."},
		{"no seats", driverActor("d"), func(s *models.RideSpec) { s.TotalSeats = 0 }, ErrValidation, "Available seats must be greater than 0."},
		{"negative price", driverActor("d"), func(s *models.RideSpec) { s.Price = -1 }, ErrValidation, "Price cannot be negative."},
		{"unknown type", driverActor("d"), func(s *models.RideSpec) { s.RideType = "Bus" }, ErrValidation, "Ride type must be Carpool or Taxi"},
		{"carpool by non driver", passenger("p"), func(*models.RideSpec) {}, ErrAuthorization, ""},
		{"carpool without vehicle", models.Actor{ID: "d", Name: "D", IsDriver: true, CarModel: "Clio"}, func(*models.RideSpec) {}, ErrValidation, "Please complete your driver information in the profile tab."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := carpoolSpec(3)
			tt.mutate(spec)
			_, err := env.rides.CreateRide(ctx, tt.actor, spec)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.message != "" {
				appErr, ok := AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, tt.message, appErr.Message)
			}
		})
	}
}

func TestCreateRideInitialState(t *testing.T) {
	env := newTestEnv(t)

	spec := carpoolSpec(4)
	spec.DeparturePoint = "  Lyon "
	ride, err := env.rides.CreateRide(context.Background(), driverActor("d1"), spec)
	require.NoError(t, err)
	assert.Equal(t, "Lyon", ride.DeparturePoint)
	assert.Equal(t, 4, ride.AvailableSeats)
	assert.Empty(t, ride.Passengers)
	assert.Equal(t, "d1", ride.DriverID)
	assert.Equal(t, "Driver d1", ride.DriverName)
	assert.Nil(t, ride.ChatID)
}

func TestGetRide(t *testing.T) {
	env := newTestEnv(t)
	ride := env.createRide(t, 2)

	got, err := env.rides.GetRide(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Equal(t, ride.ID, got.ID)

	_, err = env.rides.GetRide(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUpcomingRidesFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	later := carpoolSpec(1)
	later.DateTime = time.Now().Add(72 * time.Hour)
	later.DeparturePoint, later.ArrivalPoint = "Grenoble", "Marseille"
	laterRide, err := env.membership.CreateRideWithChat(ctx, driverActor("d1"), later)
	require.NoError(t, err)

	taxi := carpoolSpec(2)
	taxi.RideType = models.RideTypeTaxi
	taxiRide, err := env.membership.CreateRideWithChat(ctx, passenger("p1"), taxi)
	require.NoError(t, err)

	_, err = env.membership.Join(ctx, laterRide.ID, passenger("p2"))
	require.NoError(t, err)

	all, err := env.rides.ListUpcomingRides(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, taxiRide.ID, all[0].ID, "sorted by departure time")

	taxis, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{RideType: models.RideTypeTaxi})
	require.NoError(t, err)
	require.Len(t, taxis, 1)
	assert.Equal(t, taxiRide.ID, taxis[0].ID)

	search, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{Search: "marSEI"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, laterRide.ID, search[0].ID)

	available, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{OnlyAvailable: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, taxiRide.ID, available[0].ID)

	mine, err := env.rides.ListRidesForUser(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, laterRide.ID, mine[0].ID)
}

func TestListUpcomingRidesUsesCache(t *testing.T) {
	env := newTestEnv(t)
	withListingCache(t, env)
	ctx := context.Background()

	ride := env.createRide(t, 2)

	first, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 2, first[0].AvailableSeats)

	// a write that bypasses the services is not visible until invalidation
	stored, err := env.rideRepo.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	stored.AddPassenger("ghost", "Ghost")
	require.NoError(t, env.rideRepo.UpdateMembership(ctx, stored))

	cached, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, cached[0].AvailableSeats)

	env.rides.InvalidateListings(ctx)
	fresh, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, fresh[0].AvailableSeats)

	// membership changes invalidate on their own
	_, err = env.membership.Join(ctx, ride.ID, passenger("p1"))
	require.NoError(t, err)
	afterJoin, err := env.rides.ListUpcomingRides(ctx, &models.RideFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, afterJoin[0].AvailableSeats)
}

func TestStillUpcomingDropsDepartedRides(t *testing.T) {
	now := time.Now()
	rides := []*models.Ride{
		{DateTime: now.Add(-time.Minute)},
		{DateTime: now.Add(time.Minute)},
	}
	out := stillUpcoming(rides, now)
	require.Len(t, out, 1)
	assert.True(t, out[0].DateTime.After(now))
}
