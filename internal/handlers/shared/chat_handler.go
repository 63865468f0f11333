package handlers

import (
	"time"

	"ridemate/internal/middleware"
	"ridemate/internal/services"
	"ridemate/internal/utils"
	"ridemate/internal/validators"
	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService services.ChatService
	logger      *logger.Logger
}

func NewChatHandler(chatService services.ChatService, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// ListChats lists the caller's chats, most recently active first
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatService.ListChats(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Chats retrieved successfully", chats, &utils.Meta{Count: len(chats)})
}

// OpenDirectChat returns the one-to-one chat with another user, creating it
// on first contact
func (h *ChatHandler) OpenDirectChat(c *gin.Context) {
	var request validators.DirectChatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	chat, err := h.chatService.CreateOrGetDirectChat(c.Request.Context(), c.GetString(middleware.ContextUserID), request.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Chat retrieved successfully", chat)
}

// UnreadSummary returns unread counts per chat based on the caller's read marks
func (h *ChatHandler) UnreadSummary(c *gin.Context) {
	summary, err := h.chatService.UnreadSummary(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Unread summary retrieved successfully", summary)
}

// UnreadCount counts messages from others newer than the since parameter
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id", "chat")
	if !ok {
		return
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			utils.BadRequestResponse(c, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	count, err := h.chatService.UnreadCount(c.Request.Context(), chatID, c.GetString(middleware.ContextUserID), since)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Unread count retrieved successfully", gin.H{"unread_count": count})
}

// ListMessages returns a page of messages, oldest first
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id", "chat")
	if !ok {
		return
	}
	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatService.ListMessages(c.Request.Context(), chatID, c.GetString(middleware.ContextUserID), params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Messages retrieved successfully", messages, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(messages),
	})
}

// SendMessage posts a message from the caller
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id", "chat")
	if !ok {
		return
	}
	var request validators.SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	message, err := h.chatService.AppendMessage(c.Request.Context(), chatID, actor, request.Content, false)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Message sent successfully", message)
}

// MarkRead records that the caller has read the chat up to now
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := objectIDParam(c, "id", "chat")
	if !ok {
		return
	}

	if err := h.chatService.MarkRead(c.Request.Context(), chatID, c.GetString(middleware.ContextUserID)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Chat marked as read", nil)
}
