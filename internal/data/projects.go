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

// ProjectsStore performs project DB operations.
type ProjectsStore struct {
	coll  *mongo.Collection
	users *UsersStore
}

// NewProjectsStore returns a ProjectsStore using the given collection.
// The users store denormalizes member/worker info on detail reads.
func NewProjectsStore(coll *mongo.Collection, users *UsersStore) *ProjectsStore {
	return &ProjectsStore{coll: coll, users: users}
}

// ProjectUpdate carries a partial project update; nil fields are left
// untouched.
type ProjectUpdate struct {
	Name             *string
	Director         *string
	Deadline         *string
	ProductionStatus *string
	VFXSupervisors   []string
	Members          []string
	Workers          []string
	Description      *string
}

// ValidProductionStatus reports whether s is one of the accepted
// production status values.
func ValidProductionStatus(s string) bool {
	for _, v := range ProductionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseID converts a hex id token from the API into an ObjectID.
func ParseID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("%w: malformed id %q", ErrInvalidInput, id)
	}
	return oid, nil
}

// ListProjects returns projects the given user works on, newest
// activity first. An empty username returns every project (admin view).
func (s *ProjectsStore) ListProjects(ctx context.Context, username string) ([]*Project, error) {
	filter := bson.M{}
	if username != "" {
		filter["workers"] = normalize.Username(username)
	}
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var projects []*Project
	if err = cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject inserts a new project. The owner is always a member
// and the sole initial worker.
func (s *ProjectsStore) CreateProject(ctx context.Context, name, owner, director, deadline, productionStatus, description string, vfxSupervisors, members []string) (*Project, error) {
	name = strings.TrimSpace(name)
	owner = normalize.Username(owner)
	if name == "" || owner == "" {
		return nil, fmt.Errorf("%w: project name and owner are required", ErrInvalidInput)
	}
	if productionStatus == "" {
		productionStatus = "Pre-Production"
	}
	if !ValidProductionStatus(productionStatus) {
		return nil, fmt.Errorf("%w: invalid production status %q", ErrInvalidInput, productionStatus)
	}

	if vfxSupervisors == nil {
		vfxSupervisors = []string{}
	}
	hasOwner := false
	for _, m := range members {
		if m == owner {
			hasOwner = true
			break
		}
	}
	if !hasOwner {
		members = append(members, owner)
	}

	now := time.Now().UTC()
	project := &Project{
		Name:             name,
		Description:      description,
		Owner:            owner,
		Director:         director,
		Deadline:         deadline,
		ProductionStatus: productionStatus,
		VFXSupervisors:   vfxSupervisors,
		Members:          members,
		Workers:          []string{owner},
		Status:           "active",
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	result, err := s.coll.InsertOne(ctx, project)
	if err != nil {
		return nil, err
	}
	project.ID = result.InsertedID.(bson.ObjectID)
	return project, nil
}

// GetProject finds a project by its hex id.
func (s *ProjectsStore) GetProject(ctx context.Context, projectID string) (*Project, error) {
	oid, err := ParseID(projectID)
	if err != nil {
		return nil, err
	}

	var project Project
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&project); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: project %q", ErrNotFound, projectID)
		}
		return nil, err
	}
	if project.Workers == nil {
		project.Workers = []string{}
	}
	return &project, nil
}

// GetProjectDetail returns a project with denormalized user info for
// supervisors, members and workers, resolved in a single users query.
func (s *ProjectsStore) GetProjectDetail(ctx context.Context, projectID string) (*ProjectDetail, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var lookup []string
	for _, list := range [][]string{project.VFXSupervisors, project.Members, project.Workers} {
		for _, u := range list {
			if !seen[u] {
				seen[u] = true
				lookup = append(lookup, u)
			}
		}
	}

	refs, err := s.users.RefsFor(ctx, lookup)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]UserRef, len(refs))
	for _, r := range refs {
		byName[r.Username] = r
	}
	resolve := func(usernames []string) []UserRef {
		out := make([]UserRef, 0, len(usernames))
		for _, u := range usernames {
			if ref, ok := byName[u]; ok {
				out = append(out, ref)
			} else {
				out = append(out, UserRef{Username: u, Name: u})
			}
		}
		return out
	}

	return &ProjectDetail{
		Project:            project,
		VFXSupervisorsInfo: resolve(project.VFXSupervisors),
		MembersInfo:        resolve(project.Members),
		WorkersInfo:        resolve(project.Workers),
	}, nil
}

// UpdateProject applies a partial update and stamps updated_at.
func (s *ProjectsStore) UpdateProject(ctx context.Context, projectID string, upd ProjectUpdate) error {
	oid, err := ParseID(projectID)
	if err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Director != nil {
		set["director"] = strings.TrimSpace(*upd.Director)
	}
	if upd.Deadline != nil {
		set["deadline"] = strings.TrimSpace(*upd.Deadline)
	}
	if upd.ProductionStatus != nil {
		status := strings.TrimSpace(*upd.ProductionStatus)
		if !ValidProductionStatus(status) {
			return fmt.Errorf("%w: invalid production status %q", ErrInvalidInput, status)
		}
		set["production_status"] = status
	}
	if upd.VFXSupervisors != nil {
		set["vfx_supervisors"] = upd.VFXSupervisors
	}
	if upd.Members != nil {
		set["members"] = upd.Members
	}
	if upd.Workers != nil {
		set["workers"] = upd.Workers
	}
	if upd.Description != nil {
		set["description"] = strings.TrimSpace(*upd.Description)
	}

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: project %q", ErrNotFound, projectID)
	}
	return nil
}
