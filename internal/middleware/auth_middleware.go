package middleware

import (
	"context"
	"strings"

	"ridemate/internal/models"
	"ridemate/internal/services"
	"ridemate/internal/utils"
	"ridemate/pkg/identity"
	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
	ContextActor    = "actor"
	ContextUser     = "user"
)

// AuthRequired verifies the bearer token and stores the caller's identity.
// Browsers cannot set headers on a websocket handshake, so a token query
// parameter is accepted as well.
func AuthRequired(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "Authorization header required")
			return
		}

		who, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid token")
			return
		}

		c.Set(ContextUserID, who.UserID)
		c.Set(ContextIdentity, who)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, who.UserID))
		c.Next()
	}
}

// ActorRequired loads the caller's profile, creating it on first access, and
// stores the per-request Actor used by the ride and chat services.
func ActorRequired(profiles services.ProfileService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := c.Get(ContextIdentity)
		if !ok {
			utils.UnauthorizedResponse(c, "")
			return
		}

		user, err := profiles.EnsureProfile(c.Request.Context(), *who.(*identity.Identity))
		if err != nil {
			log.WithError(err).WithUserID(c.GetString(ContextUserID)).Error("Failed to load caller profile")
			utils.InternalServerErrorResponse(c)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextActor, user.Actor())
		c.Next()
	}
}

// GetActor returns the Actor stored by ActorRequired.
func GetActor(c *gin.Context) (models.Actor, bool) {
	value, ok := c.Get(ContextActor)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return ""
		}
		return strings.TrimSpace(tokenString)
	}
	return c.Query("token")
}
