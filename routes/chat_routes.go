package routes

import (
	handlers "ridemate/internal/handlers/shared"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes sets up routes for ride and direct chats
func SetupChatRoutes(r *gin.RouterGroup, chatHandler *handlers.ChatHandler, auth ...gin.HandlerFunc) {
	chats := r.Group("/chats")
	chats.Use(auth...)
	{
		chats.GET("", chatHandler.ListChats)
		chats.POST("/direct", chatHandler.OpenDirectChat)
		chats.GET("/unread", chatHandler.UnreadSummary)

		chats.GET("/:id/messages", chatHandler.ListMessages)
		chats.POST("/:id/messages", chatHandler.SendMessage)
		chats.POST("/:id/read", chatHandler.MarkRead)
		chats.GET("/:id/unread", chatHandler.UnreadCount)
	}
}
