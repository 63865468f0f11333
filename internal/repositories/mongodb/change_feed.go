package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/internal/repositories/interfaces"
	"ridemate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const changeBuffer = 256

type changeFeed struct {
	db     *mongo.Database
	logger *logger.Logger
}

func NewChangeFeed(db *mongo.Database, log *logger.Logger) interfaces.ChangeFeed {
	return &changeFeed{db: db, logger: log}
}

type changeDocument struct {
	OperationType string              `bson:"operationType"`
	FullDocument  bson.Raw            `bson:"fullDocument"`
	DocumentKey   bson.M              `bson:"documentKey"`
	ClusterTime   primitive.Timestamp `bson:"clusterTime"`
}

func (f *changeFeed) Subscribe(ctx context.Context, query models.SubscriptionQuery) (<-chan models.ChangeEvent, func(), error) {
	pipeline, err := matchStage(query)
	if err != nil {
		return nil, nil, err
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := f.db.Collection(query.Collection).Watch(ctx, mongo.Pipeline{pipeline}, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan models.ChangeEvent, changeBuffer)

	go func() {
		defer close(events)
		defer stream.Close(context.Background())

		for stream.Next(streamCtx) {
			var doc changeDocument
			if err := stream.Decode(&doc); err != nil {
				f.logger.WithError(err).Warn("Failed to decode change event")
				continue
			}
			ev, err := toChangeEvent(query.Collection, &doc)
			if err != nil {
				f.logger.WithError(err).Warn("Failed to convert change event")
				continue
			}
			select {
			case events <- ev:
			case <-streamCtx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			f.logger.WithError(err).WithField("collection", query.Collection).Error("Change stream terminated")
		}
	}()

	return events, cancel, nil
}

func matchStage(query models.SubscriptionQuery) (bson.D, error) {
	match := bson.M{"operationType": bson.M{"$in": []string{"insert", "update", "replace"}}}

	if query.DocumentID != "" {
		if query.Collection == models.CollectionUsers {
			match["documentKey._id"] = query.DocumentID
		} else {
			id, err := primitive.ObjectIDFromHex(query.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("invalid document id: %w", err)
			}
			match["documentKey._id"] = id
		}
	}
	if query.ChatID != "" {
		id, err := primitive.ObjectIDFromHex(query.ChatID)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id: %w", err)
		}
		match["fullDocument.chat_id"] = id
	}
	if query.Participant != "" {
		switch query.Collection {
		case models.CollectionRides:
			match["$or"] = []bson.M{
				{"fullDocument.driver_id": query.Participant},
				{"fullDocument.passengers": query.Participant},
			}
		default:
			match["fullDocument.participants"] = query.Participant
		}
	}

	return bson.D{{Key: "$match", Value: match}}, nil
}

func toChangeEvent(collection string, doc *changeDocument) (models.ChangeEvent, error) {
	op := models.OperationUpdate
	if doc.OperationType == "insert" {
		op = models.OperationInsert
	}
	ev := models.ChangeEvent{
		Collection: collection,
		Operation:  op,
		Timestamp:  time.Unix(int64(doc.ClusterTime.T), 0).UTC(),
	}
	switch id := doc.DocumentKey["_id"].(type) {
	case primitive.ObjectID:
		ev.DocumentID = id.Hex()
	case string:
		ev.DocumentID = id
	}

	var target interface{}
	switch collection {
	case models.CollectionRides:
		target = &models.Ride{}
	case models.CollectionChats:
		target = &models.Chat{}
	case models.CollectionMessages:
		target = &models.Message{}
	case models.CollectionUsers:
		target = &models.User{}
	default:
		return ev, fmt.Errorf("unsupported collection %q", collection)
	}
	if len(doc.FullDocument) > 0 {
		if err := bson.Unmarshal(doc.FullDocument, target); err != nil {
			return ev, fmt.Errorf("failed to decode %s document: %w", collection, err)
		}
		ev.Document = target
	}
	return ev, nil
}
