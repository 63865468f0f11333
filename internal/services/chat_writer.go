package services

import (
	"context"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
)

// chatWriter holds the chat mutations shared by the chat and membership
// services. Every method expects to run inside a transaction.
type chatWriter struct {
	chatRepo interfaces.ChatRepository
	now      func() time.Time
}

// createRideChat creates the group chat of ride with the driver as its only
// participant and posts the creation notice.
func (w *chatWriter) createRideChat(ctx context.Context, ride *models.Ride, creatorName string) (*models.Chat, error) {
	rideID := ride.ID
	chat := &models.Chat{
		Participants: []string{ride.DriverID},
		IsRideChat:   true,
		RideID:       &rideID,
		ChatName:     models.RideChatName(ride),
		RideDetails:  models.NewRideDetails(ride),
	}
	if err := w.chatRepo.CreateChat(ctx, chat); err != nil {
		return nil, err
	}

	notice := fmt.Sprintf("Ride from %s to %s created by %s.", ride.DeparturePoint, ride.ArrivalPoint, creatorName)
	if _, err := w.appendSystem(ctx, chat, notice); err != nil {
		return nil, err
	}
	return chat, nil
}

func (w *chatWriter) appendSystem(ctx context.Context, chat *models.Chat, content string) (*models.Message, error) {
	return w.append(ctx, chat, &models.Message{
		SenderID:        models.SystemSenderID,
		SenderName:      models.SystemSenderName,
		Content:         content,
		IsSystemMessage: true,
	})
}

// append stores msg and moves the chat's last message fields in the same
// transaction. The guarded chat update serialises concurrent appends, so the
// timestamp assigned here is strictly after the previous message's.
func (w *chatWriter) append(ctx context.Context, chat *models.Chat, msg *models.Message) (*models.Message, error) {
	ts := w.now().UTC().Truncate(time.Millisecond)
	if !ts.After(chat.LastMessageTime) {
		ts = chat.LastMessageTime.Add(time.Millisecond)
	}
	msg.ChatID = chat.ID
	msg.Timestamp = ts

	if err := w.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := w.chatRepo.UpdateLastMessage(ctx, chat, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
