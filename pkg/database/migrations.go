package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridemate/internal/models"
	"ridemate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const migrationsCollection = "migrations"

type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, db *mongo.Database) error
	Down        func(ctx context.Context, db *mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		logger:     log,
	}
}

// Up applies every migration newer than the recorded version, in order.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.createMigrationsCollection(ctx); err != nil {
		return err
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}
		log := m.logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("Running migration")

		if err := migration.Up(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := m.updateVersion(ctx, migration.Version); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}

		log.Info("Migration completed")
	}

	return nil
}

// Down reverts migrations until targetVersion is the recorded version.
func (m *Migrator) Down(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > currentVersion || migration.Version <= targetVersion {
			continue
		}
		m.logger.WithField("version", migration.Version).Info("Reverting migration")

		if err := migration.Down(ctx, m.db); err != nil {
			return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
		}

		previousVersion := targetVersion
		if i > 0 && m.migrations[i-1].Version > targetVersion {
			previousVersion = m.migrations[i-1].Version
		}
		if err := m.updateVersion(ctx, previousVersion); err != nil {
			return fmt.Errorf("failed to update migration version: %w", err)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsCollection(ctx context.Context) error {
	collections, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: migrationsCollection}})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	if len(collections) > 0 {
		return nil
	}
	return m.db.CreateCollection(ctx, migrationsCollection)
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection(migrationsCollection).FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(ctx context.Context, version int) error {
	_, err := m.db.Collection(migrationsCollection).ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)
	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users collection with indexes",
			Up:          createUsersIndexes,
			Down:        dropCollection(models.CollectionUsers),
		},
		{
			Version:     2,
			Description: "Create rides collection with indexes",
			Up:          createRidesIndexes,
			Down:        dropCollection(models.CollectionRides),
		},
		{
			Version:     3,
			Description: "Create chats collection with indexes",
			Up:          createChatsIndexes,
			Down:        dropCollection(models.CollectionChats),
		},
		{
			Version:     4,
			Description: "Create messages collection with indexes",
			Up:          createMessagesIndexes,
			Down:        dropCollection(models.CollectionMessages),
		},
	}
}

func dropCollection(name string) func(ctx context.Context, db *mongo.Database) error {
	return func(ctx context.Context, db *mongo.Database) error {
		return db.Collection(name).Drop(ctx)
	}
}

func createUsersIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "is_driver", Value: 1}},
		},
	}

	_, err := db.Collection(models.CollectionUsers).Indexes().CreateMany(ctx, indexes)
	return err
}

func createRidesIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "date_time", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "ride_type", Value: 1}, {Key: "date_time", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "driver_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "passengers", Value: 1}},
		},
	}

	_, err := db.Collection(models.CollectionRides).Indexes().CreateMany(ctx, indexes)
	return err
}

// Ride chats are unique per ride and direct chats unique per user pair, so
// concurrent creators collide on insert instead of producing twins.
func createChatsIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_time", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "ride_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_ride_chat", Value: true}}),
		},
		{
			Keys: bson.D{{Key: "direct_key", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "direct_key", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	}

	_, err := db.Collection(models.CollectionChats).Indexes().CreateMany(ctx, indexes)
	return err
}

func createMessagesIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	}

	_, err := db.Collection(models.CollectionMessages).Indexes().CreateMany(ctx, indexes)
	return err
}
