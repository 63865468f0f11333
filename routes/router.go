package routes

import (
	"net/http"

	handlers "ridemate/internal/handlers/shared"
	"ridemate/internal/middleware"
	"ridemate/internal/services"
	"ridemate/internal/utils"
	"ridemate/pkg/identity"
	"ridemate/pkg/logger"
	"ridemate/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Verifier         identity.Verifier
	ProfileService   services.ProfileService
	RideHandler      *handlers.RideHandler
	ChatHandler      *handlers.ChatHandler
	ProfileHandler   *handlers.ProfileHandler
	WebSocketHandler *websocket.Handler
	WebSocketPath    string
	AllowedOrigins   []string
	Logger           *logger.Logger
}

// NewRouter builds the gin engine with the global middleware and every API route.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	authenticated := []gin.HandlerFunc{
		middleware.AuthRequired(deps.Verifier),
		middleware.ActorRequired(deps.ProfileService, deps.Logger),
	}

	// API routes
	v1 := router.Group("/api/v1")
	{
		SetupRideRoutes(v1, deps.RideHandler, authenticated...)
		SetupChatRoutes(v1, deps.ChatHandler, authenticated...)
		SetupProfileRoutes(v1, deps.ProfileHandler, authenticated...)
	}

	if deps.WebSocketHandler != nil {
		path := deps.WebSocketPath
		if path == "" {
			path = "/ws"
		}
		router.GET(path, middleware.AuthRequired(deps.Verifier), deps.WebSocketHandler.HandleWebSocket)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": utils.AppName,
			"version": utils.AppVersion,
		})
	})

	return router
}
