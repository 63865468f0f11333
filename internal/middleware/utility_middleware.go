package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"ridemate/internal/utils"
	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CORSMiddleware configures CORS headers for the given origins. "*" allows any.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware adds a request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggingMiddleware logs every request once it has been handled.
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		log.WithContext(c.Request.Context()).
			LogAPIRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start), c.GetString(ContextUserID))
	}
}

// RecoveryMiddleware turns a panic into a 500 response.
func RecoveryMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithRequestID(c.GetString("request_id")).WithFields(map[string]interface{}{
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("Recovered from panic")
				utils.InternalServerErrorResponse(c)
			}
		}()
		c.Next()
	}
}
