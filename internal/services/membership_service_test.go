package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ridemate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateRideWithChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ride, err := env.membership.CreateRideWithChat(ctx, driverActor("driver-1"), carpoolSpec(3))
	require.NoError(t, err)
	require.NotNil(t, ride.ChatID)
	assert.Equal(t, 3, ride.AvailableSeats)
	assert.Empty(t, ride.Passengers)
	requireInvariant(t, ride)

	chat := env.rideChat(t, ride)
	assert.True(t, chat.IsRideChat)
	assert.Equal(t, ride.ID, *chat.RideID)
	assert.Equal(t, []string{"driver-1"}, chat.Participants)
	assert.Equal(t, "Lyon → Paris", chat.ChatName)
	require.NotNil(t, chat.RideDetails)
	assert.Equal(t, 3, chat.RideDetails.RemainingSeats)

	messages := env.chatMessages(t, chat.ID)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsSystemMessage)
	assert.Equal(t, models.SystemSenderID, messages[0].SenderID)
	assert.Contains(t, messages[0].Content, "Lyon")
	assert.Contains(t, messages[0].Content, "Paris")
	assert.Equal(t, "Ride from Lyon to Paris created by Driver driver-1.", messages[0].Content)
	assert.Equal(t, messages[0].Content, chat.LastMessage)

	stored, err := env.rideRepo.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, *stored.ChatID)
}

func TestCreateRideWithChatRejectsInvalidSpec(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	spec := carpoolSpec(3)
	spec.ArrivalPoint = " lyon "
	_, err := env.membership.CreateRideWithChat(ctx, driverActor("driver-1"), spec)
	require.ErrorIs(t, err, ErrValidation)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Departure and arrival points cannot be the same.", appErr.Message)

	_, err = env.membership.CreateRideWithChat(ctx, passenger("p1"), carpoolSpec(3))
	assert.ErrorIs(t, err, ErrAuthorization)

	noCar := driverActor("driver-2")
	noCar.CarColor = ""
	_, err = env.membership.CreateRideWithChat(ctx, noCar, carpoolSpec(3))
	require.ErrorIs(t, err, ErrValidation)

	rides, err := env.rides.ListUpcomingRides(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rides)
}

func TestCreateRideWithManySeats(t *testing.T) {
	env := newTestEnv(t)

	ride, err := env.membership.CreateRideWithChat(context.Background(), driverActor("d1"), carpoolSpec(9))
	require.NoError(t, err)
	assert.Equal(t, 9, ride.TotalSeats)
	assert.Equal(t, 9, ride.AvailableSeats)
}

func TestCreateTaxiRideDoesNotNeedDriver(t *testing.T) {
	env := newTestEnv(t)

	spec := carpoolSpec(4)
	spec.RideType = models.RideTypeTaxi
	ride, err := env.membership.CreateRideWithChat(context.Background(), passenger("p1"), spec)
	require.NoError(t, err)
	assert.Equal(t, "p1", ride.DriverID)
	assert.NotNil(t, ride.ChatID)
}

func TestJoinAndLeaveRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, 3)

	joined, err := env.membership.Join(ctx, ride.ID, passenger("alice"))
	require.NoError(t, err)
	assert.Equal(t, 2, joined.AvailableSeats)
	assert.Equal(t, []string{"alice"}, joined.Passengers)
	requireInvariant(t, joined)

	left, err := env.membership.Leave(ctx, ride.ID, passenger("alice"))
	require.NoError(t, err)
	assert.Equal(t, ride.AvailableSeats, left.AvailableSeats)
	assert.Equal(t, ride.Passengers, left.Passengers)
	requireInvariant(t, left)
}

func TestJoinScenarioThreeSeats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, 3)

	r, err := env.membership.Join(ctx, ride.ID, passenger("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.AvailableSeats)
	assert.Equal(t, []string{"A"}, r.Passengers)

	r, err = env.membership.Join(ctx, ride.ID, passenger("B"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.AvailableSeats)
	assert.Equal(t, []string{"A", "B"}, r.Passengers)

	r, err = env.membership.Leave(ctx, ride.ID, passenger("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, r.AvailableSeats)
	assert.Equal(t, []string{"B"}, r.Passengers)
	requireInvariant(t, r)

	chat := env.rideChat(t, r)
	assert.ElementsMatch(t, []string{"driver-1", "A", "B"}, chat.Participants, "leaving keeps chat membership")
	assert.Equal(t, 2, chat.RideDetails.RemainingSeats)

	var contents []string
	for _, m := range env.chatMessages(t, chat.ID) {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{
		"Ride from Lyon to Paris created by Driver driver-1.",
		"Passenger A has joined the ride.",
		"Passenger B has joined the ride.",
		"Passenger A has left the ride.",
	}, contents)
	assert.Equal(t, "Passenger A has left the ride.", chat.LastMessage)
}

func TestRejoinDoesNotRepeatJoinNotice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, 2)

	_, err := env.membership.Join(ctx, ride.ID, passenger("A"))
	require.NoError(t, err)
	_, err = env.membership.Leave(ctx, ride.ID, passenger("A"))
	require.NoError(t, err)
	_, err = env.membership.Join(ctx, ride.ID, passenger("A"))
	require.NoError(t, err)

	joins := 0
	for _, m := range env.chatMessages(t, *ride.ChatID) {
		if strings.HasSuffix(m.Content, "has joined the ride.") {
			joins++
		}
	}
	assert.Equal(t, 1, joins)
}

func TestJoinErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.membership.Join(ctx, primitive.NewObjectID(), passenger("A"))
	assert.ErrorIs(t, err, ErrNotFound)

	ride := env.createRide(t, 1)
	_, err = env.membership.Join(ctx, ride.ID, driverActor("driver-1"))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.membership.Join(ctx, ride.ID, passenger("A"))
	require.NoError(t, err)

	// duplicate is a conflict even though the ride is now full
	_, err = env.membership.Join(ctx, ride.ID, passenger("A"))
	require.ErrorIs(t, err, ErrConflict)
	appErr, _ := AsAppError(err)
	assert.Equal(t, "Already a passenger", appErr.Message)

	_, err = env.membership.Join(ctx, ride.ID, passenger("B"))
	require.ErrorIs(t, err, ErrCapacity)
	appErr, _ = AsAppError(err)
	assert.Equal(t, "No available seats", appErr.Message)
}

func TestJoinZeroSeatsLeavesRideUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ride := &models.Ride{
		DriverID:       "driver-1",
		DriverName:     "Driver",
		DeparturePoint: "Lyon",
		ArrivalPoint:   "Paris",
		DateTime:       carpoolSpec(1).DateTime,
		RideType:       models.RideTypeCarpool,
		TotalSeats:     0,
		AvailableSeats: 0,
	}
	require.NoError(t, env.rideRepo.Create(ctx, ride))

	_, err := env.membership.Join(ctx, ride.ID, passenger("A"))
	require.ErrorIs(t, err, ErrCapacity)

	stored, err := env.rideRepo.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableSeats)
	assert.Empty(t, stored.Passengers)
	assert.Equal(t, ride.Version, stored.Version)
}

func TestLeaveByNonPassenger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, 2)

	_, err := env.membership.Leave(ctx, ride.ID, passenger("stranger"))
	require.ErrorIs(t, err, ErrConflict)
	appErr, _ := AsAppError(err)
	assert.Equal(t, "Not a passenger", appErr.Message)

	_, err = env.membership.Leave(ctx, primitive.NewObjectID(), passenger("stranger"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, env.chatMessages(t, *ride.ChatID), 1)
}

func TestConcurrentJoinsForLastSeat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, 1)

	const joiners = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.membership.Join(ctx, ride.ID, passenger(fmt.Sprintf("p%d", i)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t, errors.Is(err, ErrCapacity) || errors.Is(err, ErrConflict), "unexpected error: %v", err)
	}

	stored, err := env.rideRepo.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableSeats)
	assert.Len(t, stored.Passengers, 1)
	requireInvariant(t, stored)

	chat := env.rideChat(t, stored)
	assert.Len(t, chat.Participants, 2)
	assert.Len(t, env.chatMessages(t, chat.ID), 2)
}

func TestConcurrentJoinsAndLeavesKeepInvariant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.createRide(t, 3)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := passenger(fmt.Sprintf("p%d", i))
			if _, err := env.membership.Join(ctx, ride.ID, actor); err == nil && i%2 == 0 {
				_, _ = env.membership.Leave(ctx, ride.ID, actor)
			}
		}(i)
	}
	wg.Wait()

	stored, err := env.rideRepo.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	requireInvariant(t, stored)
	assert.GreaterOrEqual(t, stored.AvailableSeats, 0)
	assert.Equal(t, stored.AvailableSeats, env.rideChat(t, stored).RideDetails.RemainingSeats)
}

func TestEnsureRideChatRepairsOrphan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orphan, err := env.rides.CreateRide(ctx, driverActor("driver-1"), carpoolSpec(2))
	require.NoError(t, err)
	require.Nil(t, orphan.ChatID)

	repaired, err := env.membership.EnsureRideChat(ctx, orphan.ID)
	require.NoError(t, err)
	require.NotNil(t, repaired.ChatID)

	again, err := env.membership.EnsureRideChat(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, *repaired.ChatID, *again.ChatID)

	chat, err := env.chatRepo.GetChatByRideID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, *repaired.ChatID, chat.ID)
	assert.Len(t, env.chatMessages(t, chat.ID), 1)
}

func TestJoinRepairsOrphanRide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	orphan, err := env.rides.CreateRide(ctx, driverActor("driver-1"), carpoolSpec(2))
	require.NoError(t, err)

	joined, err := env.membership.Join(ctx, orphan.ID, passenger("A"))
	require.NoError(t, err)
	require.NotNil(t, joined.ChatID)

	chat := env.rideChat(t, joined)
	assert.ElementsMatch(t, []string{"driver-1", "A"}, chat.Participants)
	assert.Equal(t, 1, chat.RideDetails.RemainingSeats)
	assert.Len(t, env.chatMessages(t, chat.ID), 2)
}

func TestJoinHonoursCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ride := env.createRide(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.membership.Join(ctx, ride.ID, passenger("A"))
	require.Error(t, err)

	stored, err := env.rideRepo.GetByID(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Passengers)
	assert.Equal(t, 2, stored.AvailableSeats)
}
