package db

import (
	"context"
	"fmt"
	"time"

	"community-help/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReportsCollection = "reports"
	UsersCollection   = "users"
)

// Connect opens a client, pings it and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	logger.Log.WithField("database", database).Info("Connected to MongoDB")
	return client.Database(database), nil
}

// Disconnect closes the client behind database.
func Disconnect(database *mongo.Database) {
	if database == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := database.Client().Disconnect(ctx); err != nil {
		logger.Log.WithError(err).Warn("Failed to disconnect MongoDB")
		return
	}
	logger.Log.Info("Disconnected from MongoDB")
}

// EnsureIndexes creates the indexes the stores rely on. Creating an index
// that already exists is a no-op.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = database.Collection(ReportsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "geo", Value: "2dsphere"}},
			Options: options.Index().SetName("geo_2dsphere"),
		},
		{
			Keys:    bson.D{{Key: "latitude", Value: 1}, {Key: "longitude", Value: 1}},
			Options: options.Index().SetName("lat_lng"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_created_at"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_at"),
		},
		{
			Keys:    bson.D{{Key: "assigned_to", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("assignee_status"),
		},
	})
	if err != nil {
		return fmt.Errorf("create reports indexes: %w", err)
	}
	return nil
}
