package db

import (
	"context"
	"os"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func setup(t *testing.T) *Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, uri, "qepipeline_dbtest")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_ = c.UsersCollection().Drop(ctx)
	_ = c.ChatRoomsCollection().Drop(ctx)

	return c
}

func TestCreateIndexesIsIdempotent(t *testing.T) {
	c := setup(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.CreateIndexes(ctx); err != nil {
			t.Fatalf("CreateIndexes run %d failed: %v", i, err)
		}
	}
}

func TestUniqueRoomIndexesSkipPersonalRooms(t *testing.T) {
	c := setup(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	projectID := bson.NewObjectID()
	rooms := c.ChatRoomsCollection()

	if _, err := rooms.InsertOne(ctx, bson.M{"chat_type": "project", "project_id": projectID}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := rooms.InsertOne(ctx, bson.M{"chat_type": "project", "project_id": projectID}); err == nil {
		t.Fatal("expected duplicate-key error for second project room")
	}

	// personal rooms carry no back-references and stay outside the
	// unique scope, so many may coexist
	for i := 0; i < 2; i++ {
		if _, err := rooms.InsertOne(ctx, bson.M{"chat_type": "personal", "participants": []string{"a", "b"}}); err != nil {
			t.Fatalf("personal insert %d failed: %v", i, err)
		}
	}
}

func TestEnsureAdminUpsert(t *testing.T) {
	c := setup(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	if err := c.EnsureAdmin(ctx, "admin", "hash-one"); err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	// a second run resets the hash instead of duplicating the account
	if err := c.EnsureAdmin(ctx, "admin", "hash-two"); err != nil {
		t.Fatalf("second EnsureAdmin failed: %v", err)
	}

	count, err := c.UsersCollection().CountDocuments(ctx, bson.M{"username": "admin"})
	if err != nil || count != 1 {
		t.Fatalf("expected exactly one admin, got %d err=%v", count, err)
	}

	var doc struct {
		PasswordHash string `bson:"password_hash"`
		IsAdmin      bool   `bson:"is_admin"`
		Approved     bool   `bson:"approved"`
	}
	if err := c.UsersCollection().FindOne(ctx, bson.M{"username": "admin"}).Decode(&doc); err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if doc.PasswordHash != "hash-two" || !doc.IsAdmin || !doc.Approved {
		t.Fatalf("unexpected admin doc: %+v", doc)
	}
}
