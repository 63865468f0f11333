package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ridemate/internal/models"
)

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,not_blank"`
}

type DirectChatRequest struct {
	UserID string `json:"user_id" validate:"required,not_blank,max=128"`
}

func ValidateMessageContent(content string) ValidationErrors {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ValidationErrors{{Field: "content", Message: "Message cannot be empty"}}
	}
	if utf8.RuneCountInString(trimmed) > models.MaxMessageLength {
		return ValidationErrors{{
			Field:   "content",
			Message: fmt.Sprintf("Message must be at most %d characters", models.MaxMessageLength),
		}}
	}
	return nil
}
