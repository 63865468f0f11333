package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SystemSenderID   = "system"
	SystemSenderName = "System"

	MaxMessageLength = 1000
)

type Message struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChatID          primitive.ObjectID `json:"chat_id" bson:"chat_id"`
	SenderID        string             `json:"sender_id" bson:"sender_id"`
	SenderName      string             `json:"sender_name" bson:"sender_name"`
	Content         string             `json:"content" bson:"content"`
	Timestamp       time.Time          `json:"timestamp" bson:"timestamp"`
	IsSystemMessage bool               `json:"is_system_message" bson:"is_system_message"`
}
