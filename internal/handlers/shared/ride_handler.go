package handlers

import (
	"strconv"

	"ridemate/internal/middleware"
	"ridemate/internal/models"
	"ridemate/internal/services"
	"ridemate/internal/utils"
	"ridemate/internal/validators"
	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RideHandler struct {
	rideService       services.RideService
	membershipService services.MembershipService
	logger            *logger.Logger
}

func NewRideHandler(rideService services.RideService, membershipService services.MembershipService, logger *logger.Logger) *RideHandler {
	return &RideHandler{
		rideService:       rideService,
		membershipService: membershipService,
		logger:            logger,
	}
}

// CreateRide offers a new ride and opens its group chat
func (h *RideHandler) CreateRide(c *gin.Context) {
	var request validators.CreateRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateCreateRide(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	ride, err := h.membershipService.CreateRideWithChat(c.Request.Context(), actor, request.ToSpec())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

// ListRides lists upcoming rides, optionally filtered by type, search text
// and seat availability
func (h *RideHandler) ListRides(c *gin.Context) {
	filter := &models.RideFilter{
		RideType: models.RideType(c.Query("type")),
		Search:   c.Query("search"),
	}
	if filter.RideType != "" && !filter.RideType.IsValid() {
		utils.BadRequestResponse(c, "Ride type must be Carpool or Taxi")
		return
	}
	if available := c.Query("available"); available != "" {
		onlyAvailable, err := strconv.ParseBool(available)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid available flag")
			return
		}
		filter.OnlyAvailable = onlyAvailable
	}

	rides, err := h.rideService.ListUpcomingRides(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

// ListMyRides lists the rides the caller drives or rides in
func (h *RideHandler) ListMyRides(c *gin.Context) {
	rides, err := h.rideService.ListRidesForUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, &utils.Meta{Count: len(rides)})
}

// GetRide returns one ride, opening its chat first if it has none
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := objectIDParam(c, "id", "ride")
	if !ok {
		return
	}

	ride, err := h.membershipService.EnsureRideChat(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// JoinRide books a seat for the caller
func (h *RideHandler) JoinRide(c *gin.Context) {
	rideID, ok := objectIDParam(c, "id", "ride")
	if !ok {
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	ride, err := h.membershipService.Join(c.Request.Context(), rideID, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Joined ride successfully", ride)
}

// LeaveRide gives the caller's seat back
func (h *RideHandler) LeaveRide(c *gin.Context) {
	rideID, ok := objectIDParam(c, "id", "ride")
	if !ok {
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	ride, err := h.membershipService.Leave(c.Request.Context(), rideID, actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Left ride successfully", ride)
}
