// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the collections used by the stores.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and
// returns a Client bound to the named database.
func New(ctx context.Context, mongoURI, dbName string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

func (c *Client) PendingRegistrationsCollection() *mongo.Collection {
	return c.db.Collection("pending_registrations")
}

func (c *Client) ProjectsCollection() *mongo.Collection {
	return c.db.Collection("projects")
}

func (c *Client) ShotsCollection() *mongo.Collection {
	return c.db.Collection("shots")
}

func (c *Client) FilesCollection() *mongo.Collection {
	return c.db.Collection("files")
}

func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

func (c *Client) ChatRoomsCollection() *mongo.Collection {
	return c.db.Collection("chat_rooms")
}

func (c *Client) PendingDeletionsCollection() *mongo.Collection {
	return c.db.Collection("pending_deletions")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the secondary indexes every store relies on.
// The unique partial indexes on chat_rooms guarantee a single project
// room per project and a single shot room per shot: racing first-access
// creations surface as duplicate-key errors and the loser re-fetches.
func (c *Client) CreateIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := c.UsersCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	if _, err := c.PendingRegistrationsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create pending_registrations index: %w", err)
	}

	projectIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}}},
		{Keys: bson.D{{Key: "members", Value: 1}}},
		{Keys: bson.D{{Key: "workers", Value: 1}}},
	}
	if _, err := c.ProjectsCollection().Indexes().CreateMany(ctx, projectIndexes); err != nil {
		return fmt.Errorf("failed to create projects indexes: %w", err)
	}

	if _, err := c.ShotsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "project_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create shots index: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "chat_room_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "project_id", Value: 1}}},
		{Keys: bson.D{{Key: "shot_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create messages indexes: %w", err)
	}

	fileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "project_id", Value: 1}}},
		{Keys: bson.D{{Key: "shot_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := c.FilesCollection().Indexes().CreateMany(ctx, fileIndexes); err != nil {
		return fmt.Errorf("failed to create files indexes: %w", err)
	}

	// One room per project and per shot. Partial filters keep personal
	// rooms (which carry neither back-reference) out of the unique scope.
	roomIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "chat_type", Value: 1}, {Key: "project_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "chat_type", Value: "project"}}),
		},
		{
			Keys: bson.D{{Key: "chat_type", Value: 1}, {Key: "shot_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "chat_type", Value: "shot"}}),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}
	if _, err := c.ChatRoomsCollection().Indexes().CreateMany(ctx, roomIndexes); err != nil {
		return fmt.Errorf("failed to create chat_rooms indexes: %w", err)
	}

	if _, err := c.PendingDeletionsCollection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "project_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create pending_deletions index: %w", err)
	}

	return nil
}

// EnsureAdmin creates the admin account or resets its password hash,
// so a fresh deployment always has a working admin login.
func (c *Client) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"password_hash": passwordHash,
			"is_admin":      true,
			"approved":      true,
		},
		"$setOnInsert": bson.M{
			"username":   username,
			"name":       "Administrator",
			"created_at": now,
		},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := c.UsersCollection().UpdateOne(ctx, bson.M{"username": username}, update, opts); err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	return nil
}
