package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MembershipService owns every write that touches a ride's passenger list
// together with its chat. Each operation re-reads the ride inside one
// transaction and is retried as a whole on write conflicts.
type MembershipService interface {
	Join(ctx context.Context, rideID primitive.ObjectID, actor models.Actor) (*models.Ride, error)
	Leave(ctx context.Context, rideID primitive.ObjectID, actor models.Actor) (*models.Ride, error)
	CreateRideWithChat(ctx context.Context, actor models.Actor, spec *models.RideSpec) (*models.Ride, error)
	EnsureRideChat(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error)
}

type membershipService struct {
	rideRepo    interfaces.RideRepository
	chatRepo    interfaces.ChatRepository
	rideService RideService
	writer      *chatWriter
	atomic      *atomicRunner
	logger      *logger.Logger
	now         func() time.Time
}

func NewMembershipService(
	tx interfaces.Transactor,
	rideRepo interfaces.RideRepository,
	chatRepo interfaces.ChatRepository,
	rideService RideService,
	policy RetryPolicy,
	logger *logger.Logger,
) MembershipService {
	return &membershipService{
		rideRepo:    rideRepo,
		chatRepo:    chatRepo,
		rideService: rideService,
		writer:      &chatWriter{chatRepo: chatRepo, now: time.Now},
		atomic:      &atomicRunner{tx: tx, policy: policy, logger: logger},
		logger:      logger,
		now:         time.Now,
	}
}

func (s *membershipService) Join(ctx context.Context, rideID primitive.ObjectID, actor models.Actor) (*models.Ride, error) {
	var result *models.Ride
	err := s.atomic.run(ctx, "join_ride", func(ctx context.Context) error {
		ride, err := s.loadRide(ctx, rideID)
		if err != nil {
			return err
		}

		if ride.DriverID == actor.ID {
			return NewConflictError("Driver cannot join own ride")
		}
		if ride.HasPassenger(actor.ID) {
			return NewConflictError("Already a passenger")
		}
		if ride.AvailableSeats <= 0 {
			return NewCapacityError("No available seats")
		}

		ride.AddPassenger(actor.ID, actor.Name)
		if err := s.rideRepo.UpdateMembership(ctx, ride); err != nil {
			return err
		}

		chat, err := s.rideChat(ctx, ride)
		if err != nil {
			return err
		}
		if !chat.HasParticipant(actor.ID) {
			if err := s.chatRepo.AddParticipant(ctx, chat, actor.ID); err != nil {
				return err
			}
			if _, err := s.writer.appendSystem(ctx, chat, fmt.Sprintf("%s has joined the ride.", actor.Name)); err != nil {
				return err
			}
		}
		if err := s.chatRepo.UpdateRideDetails(ctx, chat, models.NewRideDetails(ride)); err != nil {
			return err
		}

		result = ride
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "join ride")
	}

	s.logger.LogRideEvent(result.ID, "passenger_joined", map[string]interface{}{
		"user_id":         actor.ID,
		"available_seats": result.AvailableSeats,
	})
	s.rideService.InvalidateListings(ctx)
	return result, nil
}

func (s *membershipService) Leave(ctx context.Context, rideID primitive.ObjectID, actor models.Actor) (*models.Ride, error) {
	var result *models.Ride
	err := s.atomic.run(ctx, "leave_ride", func(ctx context.Context) error {
		ride, err := s.loadRide(ctx, rideID)
		if err != nil {
			return err
		}

		name := ride.PassengerName(actor.ID)
		if name == "" {
			name = actor.Name
		}
		if !ride.RemovePassenger(actor.ID) {
			return NewConflictError("Not a passenger")
		}
		if err := s.rideRepo.UpdateMembership(ctx, ride); err != nil {
			return err
		}

		if ride.ChatID != nil {
			chat, err := s.chatRepo.GetChatByID(ctx, *ride.ChatID)
			if err != nil {
				return err
			}
			if _, err := s.writer.appendSystem(ctx, chat, fmt.Sprintf("%s has left the ride.", name)); err != nil {
				return err
			}
			if err := s.chatRepo.UpdateRideDetails(ctx, chat, models.NewRideDetails(ride)); err != nil {
				return err
			}
		}

		result = ride
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "leave ride")
	}

	s.logger.LogRideEvent(result.ID, "passenger_left", map[string]interface{}{
		"user_id":         actor.ID,
		"available_seats": result.AvailableSeats,
	})
	s.rideService.InvalidateListings(ctx)
	return result, nil
}

func (s *membershipService) CreateRideWithChat(ctx context.Context, actor models.Actor, spec *models.RideSpec) (*models.Ride, error) {
	if err := checkRideSpec(actor, spec, s.now()); err != nil {
		return nil, err
	}

	var result *models.Ride
	err := s.atomic.run(ctx, "create_ride_with_chat", func(ctx context.Context) error {
		ride := newRide(actor, spec)
		if err := s.rideRepo.Create(ctx, ride); err != nil {
			return err
		}
		chat, err := s.writer.createRideChat(ctx, ride, actor.Name)
		if err != nil {
			return err
		}
		if err := s.rideRepo.SetChatID(ctx, ride, chat.ID); err != nil {
			return err
		}
		result = ride
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "create ride")
	}

	s.logger.LogRideEvent(result.ID, "ride_created", map[string]interface{}{
		"driver_id": actor.ID,
		"ride_type": result.RideType,
		"seats":     result.TotalSeats,
		"chat_id":   result.ChatID.Hex(),
	})
	s.rideService.InvalidateListings(ctx)
	return result, nil
}

// EnsureRideChat returns the ride with its chat linked, creating or relinking
// the chat when an earlier write left the ride without one. It is a no-op for
// rides that already have a chat.
func (s *membershipService) EnsureRideChat(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	var result *models.Ride
	repaired := false
	err := s.atomic.run(ctx, "ensure_ride_chat", func(ctx context.Context) error {
		ride, err := s.loadRide(ctx, rideID)
		if err != nil {
			return err
		}
		repaired = ride.ChatID == nil
		if _, err := s.rideChat(ctx, ride); err != nil {
			return err
		}
		result = ride
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "repair ride chat")
	}

	if repaired {
		s.logger.LogRideEvent(result.ID, "ride_chat_repaired", map[string]interface{}{
			"chat_id": result.ChatID.Hex(),
		})
	}
	return result, nil
}

func (s *membershipService) loadRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError("Ride not found")
		}
		return nil, err
	}
	return ride, nil
}

// rideChat returns the chat linked to ride. An unlinked ride gets its
// existing chat relinked, or a new chat when none exists.
func (s *membershipService) rideChat(ctx context.Context, ride *models.Ride) (*models.Chat, error) {
	if ride.ChatID != nil {
		return s.chatRepo.GetChatByID(ctx, *ride.ChatID)
	}

	chat, err := s.chatRepo.GetChatByRideID(ctx, ride.ID)
	if errors.Is(err, interfaces.ErrNotFound) {
		chat, err = s.writer.createRideChat(ctx, ride, ride.DriverName)
	}
	if err != nil {
		return nil, err
	}
	if err := s.rideRepo.SetChatID(ctx, ride, chat.ID); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *membershipService) fail(err error, action string) error {
	if _, ok := AsAppError(err); ok {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
