package routes

import (
	handlers "ridemate/internal/handlers/shared"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up routes for offering, browsing and joining rides
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, auth ...gin.HandlerFunc) {
	rides := r.Group("/rides")
	rides.Use(auth...)
	{
		rides.POST("", rideHandler.CreateRide)
		rides.GET("", rideHandler.ListRides)
		rides.GET("/mine", rideHandler.ListMyRides)
		rides.GET("/:id", rideHandler.GetRide)

		// Membership
		rides.POST("/:id/join", rideHandler.JoinRide)
		rides.POST("/:id/leave", rideHandler.LeaveRide)
	}
}
