package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/internal/utils"
	"ridemate/internal/validators"
	"ridemate/pkg/identity"
	"ridemate/pkg/logger"
	"ridemate/pkg/storage"
)

type ProfileService interface {
	EnsureProfile(ctx context.Context, who identity.Identity) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req *validators.UpdateProfileRequest) (*models.User, error)
	RegisterDriver(ctx context.Context, userID string, req *validators.DriverInfoRequest) (*models.User, error)
	UploadProfileImage(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*models.User, error)
}

type ImageOptions struct {
	MaxSize      int64
	MaxDimension uint
}

type profileService struct {
	userRepo interfaces.UserRepository
	storage  storage.Provider
	images   ImageOptions
	logger   *logger.Logger
}

func NewProfileService(userRepo interfaces.UserRepository, store storage.Provider, images ImageOptions, logger *logger.Logger) ProfileService {
	return &profileService{
		userRepo: userRepo,
		storage:  store,
		images:   images,
		logger:   logger,
	}
}

// EnsureProfile returns the caller's user document, creating it on first
// access. Two first requests racing each other both end up with the same
// document.
func (s *profileService) EnsureProfile(ctx context.Context, who identity.Identity) (*models.User, error) {
	if who.UserID == "" {
		return nil, NewAuthorizationError("Missing user identity")
	}

	user, err := s.userRepo.GetByID(ctx, who.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user = &models.User{
		ID:    who.UserID,
		Email: who.Email,
		Name:  who.Name,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, interfaces.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return s.GetProfile(ctx, who.UserID)
	}

	s.logger.LogUserAction(user.ID, "profile_created", map[string]interface{}{"email": user.Email})
	return user, nil
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, NewNotFoundError("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, req *validators.UpdateProfileRequest) (*models.User, error) {
	if errs := validators.ValidateUpdateProfile(req); len(errs) > 0 {
		return nil, validationFailure(errs)
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(req.Name)
	user.Email = strings.TrimSpace(req.Email)
	user.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	user.Bio = strings.TrimSpace(req.Bio)

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.LogUserAction(userID, "profile_updated", nil)
	return user, nil
}

func (s *profileService) RegisterDriver(ctx context.Context, userID string, req *validators.DriverInfoRequest) (*models.User, error) {
	if errs := validators.ValidateDriverInfo(req); len(errs) > 0 {
		return nil, validationFailure(errs)
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsDriver = true
	user.CarPlateNumber = strings.ToUpper(strings.TrimSpace(req.CarPlateNumber))
	user.CarModel = strings.TrimSpace(req.CarModel)
	user.CarColor = strings.TrimSpace(req.CarColor)

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.LogUserAction(userID, "driver_registered", map[string]interface{}{"car_model": user.CarModel})
	return user, nil
}

func (s *profileService) UploadProfileImage(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*models.User, error) {
	if errs := validators.ValidateImageUpload(header, s.images.MaxSize); len(errs) > 0 {
		return nil, validationFailure(errs)
	}
	contentType, _ := validators.ImageContentType(header.Filename)

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, err := utils.DownscaleImage(file, header.Filename, s.images.MaxDimension)
	if err != nil {
		return nil, NewValidationError("The image could not be read", map[string]interface{}{"image": err.Error()})
	}

	key := fmt.Sprintf("profile_images/%s/%s", userID, filepath.Base(header.Filename))
	uploaded, err := s.storage.Upload(ctx, &storage.UploadRequest{
		Key:          key,
		Reader:       bytes.NewReader(data),
		ContentType:  contentType,
		Size:         int64(len(data)),
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload profile image: %w", err)
	}

	user.ProfileImageURL = uploaded.URL
	if err := s.save(ctx, user); err != nil {
		if delErr := s.storage.Delete(ctx, uploaded.Key); delErr != nil {
			s.logger.WithError(delErr).WithField("key", uploaded.Key).Warn("Failed to remove orphaned profile image")
		}
		return nil, err
	}

	s.logger.LogUserAction(userID, "profile_image_uploaded", map[string]interface{}{
		"key":  uploaded.Key,
		"size": uploaded.Size,
	})
	return user, nil
}

func (s *profileService) save(ctx context.Context, user *models.User) error {
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return NewNotFoundError("User not found")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
