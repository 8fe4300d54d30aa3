package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	usersColl    = "users"
	chatsColl    = "chats"
	messagesColl = "messages"
)

// Open connects to MongoDB and returns a handle to the named database.
func Open(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(100).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the query patterns rely on. All creates
// are idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "providerId", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "isOnline", Value: 1}}},
	}
	if _, err := db.Collection(usersColl).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	chatIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "members", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		// Unique pair key closes the duplicate 1:1 chat race: the second
		// concurrent create fails with a duplicate key error and refetches.
		{Keys: bson.D{{Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	}
	if _, err := db.Collection(chatsColl).Indexes().CreateMany(ctx, chatIndexes); err != nil {
		return fmt.Errorf("create chat indexes: %w", err)
	}

	msgIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := db.Collection(messagesColl).Indexes().CreateMany(ctx, msgIndexes); err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}
	return nil
}
