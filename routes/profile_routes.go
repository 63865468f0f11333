package routes

import (
	handlers "ridemate/internal/handlers/shared"

	"github.com/gin-gonic/gin"
)

// SetupProfileRoutes sets up routes for the caller's own profile
func SetupProfileRoutes(r *gin.RouterGroup, profileHandler *handlers.ProfileHandler, auth ...gin.HandlerFunc) {
	profile := r.Group("/profile")
	profile.Use(auth...)
	{
		profile.GET("", profileHandler.GetProfile)
		profile.PUT("", profileHandler.UpdateProfile)
		profile.PUT("/driver", profileHandler.RegisterDriver)
		profile.POST("/image", profileHandler.UploadProfileImage)
	}
}
