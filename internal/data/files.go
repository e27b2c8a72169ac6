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

// FilesStore performs file-metadata DB operations. Blobs live on disk;
// these documents only point at them.
type FilesStore struct {
	coll  *mongo.Collection
	users *UsersStore
}

// NewFilesStore returns a FilesStore using the given collection.
func NewFilesStore(coll *mongo.Collection, users *UsersStore) *FilesStore {
	return &FilesStore{coll: coll, users: users}
}

func (s *FilesStore) insert(ctx context.Context, record *FileRecord) (*FileRecord, error) {
	result, err := s.coll.InsertOne(ctx, record)
	if err != nil {
		return nil, err
	}
	record.ID = result.InsertedID.(bson.ObjectID)
	return record, nil
}

func (s *FilesStore) newRecord(ctx context.Context, username, filename, path string, size int64, fileType string) *FileRecord {
	username = normalize.Username(username)
	now := time.Now().UTC()
	return &FileRecord{
		AuthorUsername: username,
		AuthorName:     s.users.DisplayName(ctx, username),
		Filename:       filename,
		FilePath:       path,
		FileSize:       size,
		FileType:       fileType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreateProjectFile records an uploaded blob owned by a project.
func (s *FilesStore) CreateProjectFile(ctx context.Context, projectID, username, filename, path string, size int64, fileType string) (*FileRecord, error) {
	oid, err := ParseID(projectID)
	if err != nil {
		return nil, err
	}
	record := s.newRecord(ctx, username, filename, path, size, fileType)
	record.ProjectID = oid
	return s.insert(ctx, record)
}

// CreateShotFile records an uploaded blob owned by a shot.
func (s *FilesStore) CreateShotFile(ctx context.Context, shotID, username, filename, path string, size int64, fileType string) (*FileRecord, error) {
	oid, err := ParseID(shotID)
	if err != nil {
		return nil, err
	}
	record := s.newRecord(ctx, username, filename, path, size, fileType)
	record.ShotID = oid
	return s.insert(ctx, record)
}

func (s *FilesStore) list(ctx context.Context, filter bson.M) ([]*FileRecord, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []*FileRecord
	if err = cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GetProjectFiles returns a project's file records, newest first.
func (s *FilesStore) GetProjectFiles(ctx context.Context, projectID string) ([]*FileRecord, error) {
	oid, err := ParseID(projectID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, bson.M{"project_id": oid})
}

// GetShotFiles returns a shot's file records, newest first.
func (s *FilesStore) GetShotFiles(ctx context.Context, shotID string) ([]*FileRecord, error) {
	oid, err := ParseID(shotID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, bson.M{"shot_id": oid})
}

// GetFile finds a file record by id.
func (s *FilesStore) GetFile(ctx context.Context, fileID string) (*FileRecord, error) {
	oid, err := ParseID(fileID)
	if err != nil {
		return nil, err
	}

	var record FileRecord
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&record); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: file %q", ErrNotFound, fileID)
		}
		return nil, err
	}
	return &record, nil
}

// GetProjectFile finds a file record owned by the given project.
func (s *FilesStore) GetProjectFile(ctx context.Context, projectID, fileID string) (*FileRecord, error) {
	record, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if hexOrEmpty(record.ProjectID) != projectID {
		return nil, fmt.Errorf("%w: file %q under project %q", ErrNotFound, fileID, projectID)
	}
	return record, nil
}

// GetShotFile finds a file record owned by the given shot.
func (s *FilesStore) GetShotFile(ctx context.Context, shotID, fileID string) (*FileRecord, error) {
	record, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if hexOrEmpty(record.ShotID) != shotID {
		return nil, fmt.Errorf("%w: file %q under shot %q", ErrNotFound, fileID, shotID)
	}
	return record, nil
}

// DeleteFile removes a file record. Deleting the blob on disk is the
// caller's job.
func (s *FilesStore) DeleteFile(ctx context.Context, fileID string) error {
	oid, err := ParseID(fileID)
	if err != nil {
		return err
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: file %q", ErrNotFound, fileID)
	}
	return nil
}

// InfoFor returns the embedded summary for a file id, or nil when the
// record is missing (messages keep rendering without their attachment).
func (s *FilesStore) InfoFor(ctx context.Context, fileID bson.ObjectID) *FileInfo {
	if fileID.IsZero() {
		return nil
	}
	record, err := s.GetFile(ctx, fileID.Hex())
	if err != nil {
		return nil
	}
	return &FileInfo{
		ID:       record.ID.Hex(),
		Filename: record.Filename,
		FileType: record.FileType,
		FileSize: record.FileSize,
	}
}
