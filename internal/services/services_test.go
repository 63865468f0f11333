package services

import (
	"context"
	"testing"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/repositories/memory"
	"ridemate/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testEnv struct {
	store      *memory.Store
	rideRepo   interfaces.RideRepository
	chatRepo   interfaces.ChatRepository
	userRepo   interfaces.UserRepository
	rides      RideService
	chats      ChatService
	membership MembershipService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Close() })

	log := logger.NewDiscard()
	policy := RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond}

	env := &testEnv{
		store:    store,
		rideRepo: memory.NewRideRepository(store),
		chatRepo: memory.NewChatRepository(store),
		userRepo: memory.NewUserRepository(store),
	}
	env.rides = NewRideService(env.rideRepo, nil, 0, 100, log)
	env.chats = NewChatService(store, env.chatRepo, env.userRepo, policy, log)
	env.membership = NewMembershipService(store, env.rideRepo, env.chatRepo, env.rides, policy, log)
	return env
}

func driverActor(id string) models.Actor {
	return models.Actor{
		ID:             id,
		Name:           "Driver " + id,
		IsDriver:       true,
		CarPlateNumber: "AB-123-CD",
		CarModel:       "Clio",
		CarColor:       "Blue",
	}
}

func passenger(id string) models.Actor {
	return models.Actor{ID: id, Name: "Passenger " + id}
}

func carpoolSpec(seats int) *models.RideSpec {
	return &models.RideSpec{
		DeparturePoint: "Lyon",
		ArrivalPoint:   "Paris",
		Price:          25,
		DateTime:       time.Now().Add(48 * time.Hour),
		RideType:       models.RideTypeCarpool,
		TotalSeats:     seats,
	}
}

func (e *testEnv) createRide(t *testing.T, seats int) *models.Ride {
	t.Helper()
	ride, err := e.membership.CreateRideWithChat(context.Background(), driverActor("driver-1"), carpoolSpec(seats))
	require.NoError(t, err)
	return ride
}

func (e *testEnv) seedUser(t *testing.T, id string) *models.User {
	t.Helper()
	user := &models.User{ID: id, Email: id + "@example.com", Name: "User " + id}
	require.NoError(t, e.userRepo.Create(context.Background(), user))
	return user
}

func (e *testEnv) chatMessages(t *testing.T, chatID primitive.ObjectID) []*models.Message {
	t.Helper()
	messages, _, err := e.chatRepo.GetMessagesByChatID(context.Background(), chatID, nil)
	require.NoError(t, err)
	return messages
}

func (e *testEnv) rideChat(t *testing.T, ride *models.Ride) *models.Chat {
	t.Helper()
	require.NotNil(t, ride.ChatID)
	chat, err := e.chatRepo.GetChatByID(context.Background(), *ride.ChatID)
	require.NoError(t, err)
	return chat
}

func requireInvariant(t *testing.T, ride *models.Ride) {
	t.Helper()
	require.Equal(t, ride.TotalSeats, ride.AvailableSeats+len(ride.Passengers),
		"available seats and passengers must add up to total seats")
	require.Len(t, ride.PassengerNames, len(ride.Passengers))
}
