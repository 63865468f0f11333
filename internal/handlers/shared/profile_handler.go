package handlers

import (
	"ridemate/internal/middleware"
	"ridemate/internal/services"
	"ridemate/internal/utils"
	"ridemate/internal/validators"
	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileService services.ProfileService
	logger         *logger.Logger
}

func NewProfileHandler(profileService services.ProfileService, logger *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		logger:         logger,
	}
}

// GetProfile returns the caller's profile
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	user, err := h.profileService.GetProfile(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Profile retrieved successfully", user)
}

// UpdateProfile replaces the caller's personal details
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var request validators.UpdateProfileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	user, err := h.profileService.UpdateProfile(c.Request.Context(), c.GetString(middleware.ContextUserID), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Profile updated successfully", user)
}

// RegisterDriver stores the caller's vehicle and marks them as a driver
func (h *ProfileHandler) RegisterDriver(c *gin.Context) {
	var request validators.DriverInfoRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	user, err := h.profileService.RegisterDriver(c.Request.Context(), c.GetString(middleware.ContextUserID), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Driver information saved successfully", user)
}

// UploadProfileImage stores a new profile picture from the "image" form field
func (h *ProfileHandler) UploadProfileImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, "An image file is required")
		return
	}
	defer file.Close()

	user, err := h.profileService.UploadProfileImage(c.Request.Context(), c.GetString(middleware.ContextUserID), file, header)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Profile image uploaded successfully", user)
}
