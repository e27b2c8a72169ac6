package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/johwaworks/QEPipeline/internal/normalize"
)

// Legacy message endpoints scope messages directly to a project or shot
// instead of a chat room. Older clients still post and read through
// them, so they stay alongside the room-based API.

func (s *ChatStore) newLegacyMessage(ctx context.Context, username, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	username = normalize.Username(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	return &Message{
		AuthorUsername: username,
		AuthorName:     s.users.DisplayName(ctx, username),
		Content:        content,
		ReadBy:         []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *ChatStore) insertMessage(ctx context.Context, msg *Message) (*MessageView, error) {
	result, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)

	view := msg.View()
	view.File = s.files.InfoFor(ctx, msg.FileID)
	return view, nil
}

// CreateProjectMessage stores a message scoped directly to a project.
func (s *ChatStore) CreateProjectMessage(ctx context.Context, projectID, username, content string) (*MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	oid, err := ParseID(projectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	msg, err := s.newLegacyMessage(ctx, username, content)
	if err != nil {
		return nil, err
	}
	msg.ProjectID = oid
	return s.insertMessage(ctx, msg)
}

// CreateShotMessage stores a message scoped directly to a shot,
// optionally referencing an uploaded file.
func (s *ChatStore) CreateShotMessage(ctx context.Context, shotID, username, content, fileID string) (*MessageView, error) {
	if strings.TrimSpace(content) == "" && fileID == "" {
		return nil, fmt.Errorf("%w: message content or file is required", ErrInvalidInput)
	}
	oid, err := ParseID(shotID)
	if err != nil {
		return nil, err
	}
	if _, err := s.shots.GetShot(ctx, shotID); err != nil {
		return nil, err
	}

	msg, err := s.newLegacyMessage(ctx, username, content)
	if err != nil {
		return nil, err
	}
	msg.ShotID = oid
	if fileID != "" {
		fileOID, err := ParseID(fileID)
		if err != nil {
			return nil, err
		}
		msg.FileID = fileOID
	}
	return s.insertMessage(ctx, msg)
}

func (s *ChatStore) listLegacy(ctx context.Context, filter bson.M) ([]*MessageView, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*Message
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}

	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := m.View()
		view.File = s.files.InfoFor(ctx, m.FileID)
		views = append(views, view)
	}
	return views, nil
}

// GetProjectMessages returns a project's direct messages in
// chronological order.
func (s *ChatStore) GetProjectMessages(ctx context.Context, projectID string) ([]*MessageView, error) {
	oid, err := ParseID(projectID)
	if err != nil {
		return nil, err
	}
	return s.listLegacy(ctx, bson.M{"project_id": oid, "chat_room_id": bson.M{"$exists": false}})
}

// GetShotMessages returns a shot's direct messages in chronological
// order.
func (s *ChatStore) GetShotMessages(ctx context.Context, shotID string) ([]*MessageView, error) {
	oid, err := ParseID(shotID)
	if err != nil {
		return nil, err
	}
	return s.listLegacy(ctx, bson.M{"shot_id": oid, "chat_room_id": bson.M{"$exists": false}})
}

// GetMessage finds a single message by id.
func (s *ChatStore) GetMessage(ctx context.Context, messageID string) (*MessageView, error) {
	oid, err := ParseID(messageID)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := s.messages.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: message %q", ErrNotFound, messageID)
		}
		return nil, err
	}

	view := msg.View()
	view.File = s.files.InfoFor(ctx, msg.FileID)
	return view, nil
}
