package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ShotsStore performs shot DB operations.
type ShotsStore struct {
	coll     *mongo.Collection
	projects *ProjectsStore
}

// NewShotsStore returns a ShotsStore using the given collection.
func NewShotsStore(coll *mongo.Collection, projects *ProjectsStore) *ShotsStore {
	return &ShotsStore{coll: coll, projects: projects}
}

// CreateShot inserts a shot under an existing project.
func (s *ShotsStore) CreateShot(ctx context.Context, projectID, shotName, description string) (*Shot, error) {
	shotName = strings.TrimSpace(shotName)
	if shotName == "" {
		return nil, fmt.Errorf("%w: shot name is required", ErrInvalidInput)
	}

	// Reject shots under projects that do not exist.
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	shot := &Shot{
		ProjectID:   projectID,
		ShotName:    shotName,
		Description: description,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	result, err := s.coll.InsertOne(ctx, shot)
	if err != nil {
		return nil, err
	}
	shot.ID = result.InsertedID.(bson.ObjectID)
	return shot, nil
}

// GetShots returns a project's shots, newest first.
func (s *ShotsStore) GetShots(ctx context.Context, projectID string) ([]*Shot, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := s.coll.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shots []*Shot
	if err = cursor.All(ctx, &shots); err != nil {
		return nil, err
	}
	return shots, nil
}

// GetShot finds a shot by its hex id.
func (s *ShotsStore) GetShot(ctx context.Context, shotID string) (*Shot, error) {
	oid, err := ParseID(shotID)
	if err != nil {
		return nil, err
	}

	var shot Shot
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&shot); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: shot %q", ErrNotFound, shotID)
		}
		return nil, err
	}
	return &shot, nil
}

// GetShotDetail returns a shot with a snapshot of its parent project.
func (s *ShotsStore) GetShotDetail(ctx context.Context, shotID string) (*ShotDetail, error) {
	shot, err := s.GetShot(ctx, shotID)
	if err != nil {
		return nil, err
	}

	detail := &ShotDetail{Shot: shot}
	if project, err := s.projects.GetProject(ctx, shot.ProjectID); err == nil {
		detail.Project = &ProjectSummary{
			ID:               project.ID.Hex(),
			Name:             project.Name,
			Director:         project.Director,
			ProductionStatus: project.ProductionStatus,
		}
	}
	return detail, nil
}

// setFields applies a $set update on one shot, stamping updated_at.
func (s *ShotsStore) setFields(ctx context.Context, shotID string, fields bson.M) error {
	oid, err := ParseID(shotID)
	if err != nil {
		return err
	}
	fields["updated_at"] = time.Now().UTC()

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: shot %q", ErrNotFound, shotID)
	}
	return nil
}

// UpdateThumbnail stores a thumbnail path, or clears it when path is empty.
func (s *ShotsStore) UpdateThumbnail(ctx context.Context, shotID, path string) error {
	oid, err := ParseID(shotID)
	if err != nil {
		return err
	}

	var update bson.M
	if path != "" {
		update = bson.M{"$set": bson.M{"thumbnail_path": path, "updated_at": time.Now().UTC()}}
	} else {
		update = bson.M{
			"$unset": bson.M{"thumbnail_path": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		}
	}

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: shot %q", ErrNotFound, shotID)
	}
	return nil
}

// UpdateResolution sets a shot's resolution unless it is locked.
func (s *ShotsStore) UpdateResolution(ctx context.Context, shotID string, width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidInput)
	}
	shot, err := s.GetShot(ctx, shotID)
	if err != nil {
		return err
	}
	if shot.ResolutionLocked {
		return fmt.Errorf("%w: resolution is locked", ErrUnauthorized)
	}
	return s.setFields(ctx, shotID, bson.M{"resolution": Resolution{Width: width, Height: height}})
}

// UpdateDescription sets a shot's description unless it is locked.
func (s *ShotsStore) UpdateDescription(ctx context.Context, shotID, description string) error {
	shot, err := s.GetShot(ctx, shotID)
	if err != nil {
		return err
	}
	if shot.DescriptionLocked {
		return fmt.Errorf("%w: description is locked", ErrUnauthorized)
	}
	return s.setFields(ctx, shotID, bson.M{"description": strings.TrimSpace(description)})
}

// UpdateDuration merges the provided frame fields into the shot's
// duration unless it is locked. Nil fields preserve existing values.
func (s *ShotsStore) UpdateDuration(ctx context.Context, shotID string, startFrame, endFrame, totalFrames *int) error {
	shot, err := s.GetShot(ctx, shotID)
	if err != nil {
		return err
	}
	if shot.DurationLocked {
		return fmt.Errorf("%w: duration is locked", ErrUnauthorized)
	}

	duration := shot.Duration
	if duration == nil {
		duration = &Duration{}
	}
	for _, f := range []struct {
		val *int
		dst *int
	}{
		{startFrame, &duration.StartFrame},
		{endFrame, &duration.EndFrame},
		{totalFrames, &duration.TotalFrames},
	} {
		if f.val != nil {
			if *f.val < 0 {
				return fmt.Errorf("%w: frame counts must be non-negative", ErrInvalidInput)
			}
			*f.dst = *f.val
		}
	}

	return s.setFields(ctx, shotID, bson.M{"duration": duration})
}

// UpdateResolutionLock toggles the resolution lock flag.
func (s *ShotsStore) UpdateResolutionLock(ctx context.Context, shotID string, locked bool) error {
	return s.setFields(ctx, shotID, bson.M{"resolution_locked": locked})
}

// UpdateDescriptionLock toggles the description lock flag.
func (s *ShotsStore) UpdateDescriptionLock(ctx context.Context, shotID string, locked bool) error {
	return s.setFields(ctx, shotID, bson.M{"description_locked": locked})
}

// UpdateDurationLock toggles the duration lock flag.
func (s *ShotsStore) UpdateDurationLock(ctx context.Context, shotID string, locked bool) error {
	return s.setFields(ctx, shotID, bson.M{"duration_locked": locked})
}

// UpdateShotWorkers replaces a shot's worker list. The caller is
// responsible for resyncing the shot's chat room participants.
func (s *ShotsStore) UpdateShotWorkers(ctx context.Context, shotID string, workers []string) error {
	if workers == nil {
		workers = []string{}
	}
	return s.setFields(ctx, shotID, bson.M{"shot_workers": workers})
}

// UpdateWorkersAssignment replaces the worker-to-task assignment map.
func (s *ShotsStore) UpdateWorkersAssignment(ctx context.Context, shotID string, assignment map[string]string) error {
	if assignment == nil {
		assignment = map[string]string{}
	}
	return s.setFields(ctx, shotID, bson.M{"workers_assignment": assignment})
}
