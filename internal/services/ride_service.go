package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/validators"
	"ridemate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const upcomingRidesPattern = "rides:upcoming:*"

type RideService interface {
	CreateRide(ctx context.Context, actor models.Actor, spec *models.RideSpec) (*models.Ride, error)
	GetRide(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	ListUpcomingRides(ctx context.Context, filter *models.RideFilter) ([]*models.Ride, error)
	ListRidesForUser(ctx context.Context, userID string) ([]*models.Ride, error)
	InvalidateListings(ctx context.Context)
}

type rideService struct {
	rideRepo     interfaces.RideRepository
	cacheService CacheService
	cacheTTL     time.Duration
	listingLimit int
	logger       *logger.Logger
	now          func() time.Time
}

// NewRideService builds the ride service. cacheService may be nil, in which
// case listings always hit the store.
func NewRideService(
	rideRepo interfaces.RideRepository,
	cacheService CacheService,
	cacheTTL time.Duration,
	listingLimit int,
	logger *logger.Logger,
) RideService {
	return &rideService{
		rideRepo:     rideRepo,
		cacheService: cacheService,
		cacheTTL:     cacheTTL,
		listingLimit: listingLimit,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *rideService) CreateRide(ctx context.Context, actor models.Actor, spec *models.RideSpec) (*models.Ride, error) {
	if err := checkRideSpec(actor, spec, s.now()); err != nil {
		return nil, err
	}

	ride := newRide(actor, spec)
	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	s.logger.LogRideEvent(ride.ID, "ride_created", map[string]interface{}{
		"driver_id": actor.ID,
		"ride_type": ride.RideType,
		"seats":     ride.TotalSeats,
	})
	s.InvalidateListings(ctx)
	return ride, nil
}

func (s *rideService) GetRide(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError("Ride not found")
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return ride, nil
}

func (s *rideService) ListUpcomingRides(ctx context.Context, filter *models.RideFilter) ([]*models.Ride, error) {
	if filter == nil {
		filter = &models.RideFilter{}
	}
	if filter.Limit <= 0 || (s.listingLimit > 0 && filter.Limit > s.listingLimit) {
		filter.Limit = s.listingLimit
	}
	now := s.now()

	key := listingCacheKey(filter)
	if s.cacheService != nil {
		var cached []*models.Ride
		err := s.cacheService.Get(ctx, key, &cached)
		if err == nil {
			return stillUpcoming(cached, now), nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.WithError(err).Warn("Ride listing cache read failed")
		}
	}

	rides, err := s.rideRepo.ListUpcoming(ctx, filter, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}

	if s.cacheService != nil {
		if err := s.cacheService.Set(ctx, key, rides, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Ride listing cache write failed")
		}
	}
	return rides, nil
}

func (s *rideService) ListRidesForUser(ctx context.Context, userID string) ([]*models.Ride, error) {
	rides, err := s.rideRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides for user: %w", err)
	}
	return rides, nil
}

// InvalidateListings drops every cached listing. Failures only cost
// freshness until the TTL expires, so they are logged and not returned.
func (s *rideService) InvalidateListings(ctx context.Context) {
	if s.cacheService == nil {
		return
	}
	if err := s.cacheService.InvalidateByPattern(ctx, upcomingRidesPattern); err != nil {
		s.logger.WithError(err).Warn("Ride listing cache invalidation failed")
	}
}

func listingCacheKey(f *models.RideFilter) string {
	return fmt.Sprintf("rides:upcoming:%s:%s:%t:%d",
		f.RideType, strings.ToLower(strings.TrimSpace(f.Search)), f.OnlyAvailable, f.Limit)
}

// stillUpcoming drops rides that departed since the listing was cached.
func stillUpcoming(rides []*models.Ride, now time.Time) []*models.Ride {
	out := make([]*models.Ride, 0, len(rides))
	for _, r := range rides {
		if r.IsUpcoming(now) {
			out = append(out, r)
		}
	}
	return out
}

// checkRideSpec applies the field rules first and the carpool driver rules
// second.
func checkRideSpec(actor models.Actor, spec *models.RideSpec, now time.Time) error {
	if spec == nil {
		return NewValidationError("Ride details are required", nil)
	}
	if errs := validators.ValidateRideSpec(spec, now); len(errs) > 0 {
		return validationFailure(errs)
	}
	if spec.RideType == models.RideTypeCarpool {
		if !actor.IsDriver {
			return NewAuthorizationError("Only registered drivers can offer carpool rides.")
		}
		if !actor.HasVehicleInfo() {
			return NewValidationError("Please complete your driver information in the profile tab.", nil)
		}
	}
	return nil
}

func newRide(actor models.Actor, spec *models.RideSpec) *models.Ride {
	return &models.Ride{
		DriverID:       actor.ID,
		DriverName:     actor.Name,
		DeparturePoint: strings.TrimSpace(spec.DeparturePoint),
		ArrivalPoint:   strings.TrimSpace(spec.ArrivalPoint),
		Price:          spec.Price,
		DateTime:       spec.DateTime.UTC(),
		RideType:       spec.RideType,
		TotalSeats:     spec.TotalSeats,
		AvailableSeats: spec.TotalSeats,
		Passengers:     []string{},
		PassengerNames: []string{},
	}
}

func validationFailure(errs validators.ValidationErrors) *AppError {
	details := make(map[string]interface{}, len(errs))
	for _, e := range errs {
		if _, ok := details[e.Field]; !ok {
			details[e.Field] = e.Message
		}
	}
	return NewValidationError(errs.First(), details)
}
