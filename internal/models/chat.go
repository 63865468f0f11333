package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Chat struct {
	ID                  primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Participants        []string            `json:"participants" bson:"participants"`
	IsRideChat          bool                `json:"is_ride_chat" bson:"is_ride_chat"`
	RideID              *primitive.ObjectID `json:"ride_id,omitempty" bson:"ride_id,omitempty"`
	DirectKey           string              `json:"-" bson:"direct_key,omitempty"`
	ChatName            string              `json:"chat_name,omitempty" bson:"chat_name,omitempty"`
	RideDetails         *RideDetails        `json:"ride_details,omitempty" bson:"ride_details,omitempty"`
	LastMessage         string              `json:"last_message" bson:"last_message"`
	LastMessageTime     time.Time           `json:"last_message_time" bson:"last_message_time"`
	LastMessageSenderID string              `json:"last_message_sender_id" bson:"last_message_sender_id"`
	Version             int64               `json:"version" bson:"version"`
	CreatedAt           time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" bson:"updated_at"`
}

// RideDetails is the ride snapshot shown in the header of a ride chat.
type RideDetails struct {
	DeparturePoint string    `json:"departure_point" bson:"departure_point"`
	ArrivalPoint   string    `json:"arrival_point" bson:"arrival_point"`
	DateTime       time.Time `json:"date_time" bson:"date_time"`
	DriverID       string    `json:"driver_id" bson:"driver_id"`
	DriverName     string    `json:"driver_name" bson:"driver_name"`
	TotalSeats     int       `json:"total_seats" bson:"total_seats"`
	RemainingSeats int       `json:"remaining_seats" bson:"remaining_seats"`
}

// ChatSummary is a chat as listed for one user.
type ChatSummary struct {
	*Chat
	UnreadCount int `json:"unread_count"`
}

type UnreadSummary struct {
	Total int            `json:"total"`
	Chats map[string]int `json:"chats"`
}

func NewRideDetails(r *Ride) *RideDetails {
	return &RideDetails{
		DeparturePoint: r.DeparturePoint,
		ArrivalPoint:   r.ArrivalPoint,
		DateTime:       r.DateTime,
		DriverID:       r.DriverID,
		DriverName:     r.DriverName,
		TotalSeats:     r.TotalSeats,
		RemainingSeats: r.AvailableSeats,
	}
}

func RideChatName(r *Ride) string {
	return fmt.Sprintf("%s → %s", r.DeparturePoint, r.ArrivalPoint)
}

func (c *Chat) HasParticipant(userID string) bool {
	return indexOf(c.Participants, userID) >= 0
}

// DirectChatKey identifies the one-to-one chat of a pair of users regardless
// of argument order. Stores keep it unique.
func DirectChatKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = append([]string{}, c.Participants...)
	if c.RideID != nil {
		id := *c.RideID
		cp.RideID = &id
	}
	if c.RideDetails != nil {
		d := *c.RideDetails
		cp.RideDetails = &d
	}
	return &cp
}
