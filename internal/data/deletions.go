package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/johwaworks/QEPipeline/internal/normalize"
)

// DeletionsStore handles the two-step project deletion flow: an owner
// requests deletion, an admin approves or rejects it. Approval cascades
// across everything the project owns: shots, files, project and shot
// chat rooms with their messages, and legacy messages. Personal rooms
// are never touched.
type DeletionsStore struct {
	pending  *mongo.Collection
	projects *mongo.Collection
	shots    *mongo.Collection
	files    *mongo.Collection
	messages *mongo.Collection
	rooms    *mongo.Collection
	store    *ProjectsStore
}

// NewDeletionsStore returns a DeletionsStore spanning the collections
// the cascade sweeps.
func NewDeletionsStore(pending, projects, shots, files, messages, rooms *mongo.Collection, store *ProjectsStore) *DeletionsStore {
	return &DeletionsStore{
		pending:  pending,
		projects: projects,
		shots:    shots,
		files:    files,
		messages: messages,
		rooms:    rooms,
		store:    store,
	}
}

// RequestDeletion records a deletion request for the project. A second
// request while one is pending is rejected.
func (s *DeletionsStore) RequestDeletion(ctx context.Context, projectID, username string) (*PendingDeletion, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	req := &PendingDeletion{
		ProjectID:   projectID,
		ProjectName: project.Name,
		RequestedBy: normalize.Username(username),
		CreatedAt:   time.Now().UTC(),
	}
	result, err := s.pending.InsertOne(ctx, req)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: deletion of project %q already requested", ErrAlreadyExists, projectID)
		}
		return nil, err
	}
	req.ID = result.InsertedID.(bson.ObjectID)
	return req, nil
}

// GetPendingDeletions returns all open deletion requests, oldest first.
func (s *DeletionsStore) GetPendingDeletions(ctx context.Context) ([]*PendingDeletion, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := s.pending.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var requests []*PendingDeletion
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ApproveDeletion resolves a pending deletion request. Approval deletes
// the project and cascades; rejection only discards the request. The
// request is consumed either way.
func (s *DeletionsStore) ApproveDeletion(ctx context.Context, projectID string, approve bool) error {
	result, err := s.pending.DeleteOne(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: no pending deletion for project %q", ErrNotFound, projectID)
	}
	if !approve {
		return nil
	}
	return s.cascade(ctx, projectID)
}

// cascade removes the project document and everything scoped to it.
func (s *DeletionsStore) cascade(ctx context.Context, projectID string) error {
	oid, err := ParseID(projectID)
	if err != nil {
		return err
	}

	// Collect shot ids before deleting the shot documents.
	cursor, err := s.shots.Find(ctx, bson.M{"project_id": projectID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return err
	}
	var shotDocs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &shotDocs); err != nil {
		return err
	}
	shotIDs := make(bson.A, 0, len(shotDocs))
	for _, d := range shotDocs {
		shotIDs = append(shotIDs, d.ID)
	}

	// Rooms first, so their messages can be matched by room id.
	roomFilter := bson.M{"$or": bson.A{
		bson.M{"chat_type": ChatTypeProject, "project_id": oid},
		bson.M{"chat_type": ChatTypeShot, "shot_id": bson.M{"$in": shotIDs}},
	}}
	roomCursor, err := s.rooms.Find(ctx, roomFilter,
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return err
	}
	var roomDocs []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err = roomCursor.All(ctx, &roomDocs); err != nil {
		return err
	}
	roomIDs := make(bson.A, 0, len(roomDocs))
	for _, d := range roomDocs {
		roomIDs = append(roomIDs, d.ID)
	}

	if _, err := s.messages.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"chat_room_id": bson.M{"$in": roomIDs}},
		bson.M{"project_id": oid},
		bson.M{"shot_id": bson.M{"$in": shotIDs}},
	}}); err != nil {
		return err
	}
	if _, err := s.rooms.DeleteMany(ctx, roomFilter); err != nil {
		return err
	}
	if _, err := s.files.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"project_id": oid},
		bson.M{"shot_id": bson.M{"$in": shotIDs}},
	}}); err != nil {
		return err
	}
	if _, err := s.shots.DeleteMany(ctx, bson.M{"project_id": projectID}); err != nil {
		return err
	}

	delResult, err := s.projects.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if delResult.DeletedCount == 0 {
		return fmt.Errorf("%w: project %q", ErrNotFound, projectID)
	}
	return nil
}
