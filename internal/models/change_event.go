package models

import (
	"time"
)

type OperationType string

const (
	CollectionRides    = "rides"
	CollectionChats    = "chats"
	CollectionMessages = "messages"
	CollectionUsers    = "users"

	OperationInsert OperationType = "insert"
	OperationUpdate OperationType = "update"
)

// ChangeEvent is one committed write as delivered to subscribers.
type ChangeEvent struct {
	Collection string        `json:"collection"`
	Operation  OperationType `json:"operation"`
	DocumentID string        `json:"document_id"`
	Document   interface{}   `json:"document"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SubscriptionQuery selects events of one collection. Empty filters match all.
type SubscriptionQuery struct {
	Collection  string `json:"collection"`
	ChatID      string `json:"chat_id,omitempty"`
	Participant string `json:"participant,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
}

func (q SubscriptionQuery) Matches(ev ChangeEvent) bool {
	if q.Collection != ev.Collection {
		return false
	}
	if q.DocumentID != "" && q.DocumentID != ev.DocumentID {
		return false
	}
	if q.ChatID != "" {
		m, ok := ev.Document.(*Message)
		if !ok || m.ChatID.Hex() != q.ChatID {
			return false
		}
	}
	if q.Participant != "" {
		switch doc := ev.Document.(type) {
		case *Chat:
			if !doc.HasParticipant(q.Participant) {
				return false
			}
		case *Ride:
			if doc.DriverID != q.Participant && !doc.HasPassenger(q.Participant) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
