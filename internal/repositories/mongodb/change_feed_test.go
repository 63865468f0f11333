package mongodb

import (
	"testing"
	"time"

	"ridemate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func matchOf(t *testing.T, query models.SubscriptionQuery) bson.M {
	t.Helper()
	stage, err := matchStage(query)
	require.NoError(t, err)
	require.Len(t, stage, 1)
	require.Equal(t, "$match", stage[0].Key)
	match, ok := stage[0].Value.(bson.M)
	require.True(t, ok)
	return match
}

func TestMatchStage(t *testing.T) {
	chatID := primitive.NewObjectID()
	rideID := primitive.NewObjectID()

	tests := []struct {
		name  string
		query models.SubscriptionQuery
		want  bson.M
	}{
		{
			name:  "all rides",
			query: models.SubscriptionQuery{Collection: models.CollectionRides},
			want:  bson.M{},
		},
		{
			name:  "rides of a member",
			query: models.SubscriptionQuery{Collection: models.CollectionRides, Participant: "u1"},
			want: bson.M{"$or": []bson.M{
				{"fullDocument.driver_id": "u1"},
				{"fullDocument.passengers": "u1"},
			}},
		},
		{
			name:  "one ride",
			query: models.SubscriptionQuery{Collection: models.CollectionRides, DocumentID: rideID.Hex()},
			want:  bson.M{"documentKey._id": rideID},
		},
		{
			name:  "chats of a participant",
			query: models.SubscriptionQuery{Collection: models.CollectionChats, Participant: "u1"},
			want:  bson.M{"fullDocument.participants": "u1"},
		},
		{
			name:  "messages of a chat",
			query: models.SubscriptionQuery{Collection: models.CollectionMessages, ChatID: chatID.Hex()},
			want:  bson.M{"fullDocument.chat_id": chatID},
		},
		{
			name:  "own user document keeps the string id",
			query: models.SubscriptionQuery{Collection: models.CollectionUsers, DocumentID: "firebase-uid"},
			want:  bson.M{"documentKey._id": "firebase-uid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := matchOf(t, tt.query)
			assert.Equal(t, bson.M{"$in": []string{"insert", "update", "replace"}}, match["operationType"])
			delete(match, "operationType")
			assert.Equal(t, tt.want, match)
		})
	}
}

func TestMatchStageRejectsBadIDs(t *testing.T) {
	_, err := matchStage(models.SubscriptionQuery{Collection: models.CollectionMessages, ChatID: "nope"})
	assert.Error(t, err)

	_, err = matchStage(models.SubscriptionQuery{Collection: models.CollectionRides, DocumentID: "nope"})
	assert.Error(t, err)
}

func TestToChangeEvent(t *testing.T) {
	msg := models.Message{
		ID:        primitive.NewObjectID(),
		ChatID:    primitive.NewObjectID(),
		SenderID:  "u1",
		Content:   "hello",
		Timestamp: time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	raw, err := bson.Marshal(msg)
	require.NoError(t, err)

	ev, err := toChangeEvent(models.CollectionMessages, &changeDocument{
		OperationType: "insert",
		FullDocument:  raw,
		DocumentKey:   bson.M{"_id": msg.ID},
		ClusterTime:   primitive.Timestamp{T: 1893488400},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OperationInsert, ev.Operation)
	assert.Equal(t, msg.ID.Hex(), ev.DocumentID)
	assert.Equal(t, time.Unix(1893488400, 0).UTC(), ev.Timestamp)

	got, ok := ev.Document.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, msg.ChatID, got.ChatID)

	ev, err = toChangeEvent(models.CollectionUsers, &changeDocument{
		OperationType: "replace",
		DocumentKey:   bson.M{"_id": "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OperationUpdate, ev.Operation)
	assert.Equal(t, "u1", ev.DocumentID)
	assert.Nil(t, ev.Document)

	_, err = toChangeEvent("payments", &changeDocument{OperationType: "insert"})
	assert.Error(t, err)
}
