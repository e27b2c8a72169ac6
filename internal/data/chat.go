package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/johwaworks/QEPipeline/internal/normalize"
)

// previewLength caps the last-message content shown in room listings.
const previewLength = 100

// DefaultMessageLimit bounds a room-history read when the client does
// not ask for a specific page size.
const DefaultMessageLimit = 100

// ChatStore manages chat rooms and their messages. Rooms are
// materialized lazily: the first access to a project's or shot's chat
// creates the room, seeded from the current worker list, and later
// worker-list changes replace the participant set wholesale.
type ChatStore struct {
	rooms    *mongo.Collection
	messages *mongo.Collection
	users    *UsersStore
	projects *ProjectsStore
	shots    *ShotsStore
	files    *FilesStore
}

// NewChatStore returns a ChatStore wired to its collections and the
// stores it denormalizes from.
func NewChatStore(rooms, messages *mongo.Collection, users *UsersStore, projects *ProjectsStore, shots *ShotsStore, files *FilesStore) *ChatStore {
	return &ChatStore{
		rooms:    rooms,
		messages: messages,
		users:    users,
		projects: projects,
		shots:    shots,
		files:    files,
	}
}

// findRoom decodes the single room matching the filter.
func (s *ChatStore) findRoom(ctx context.Context, filter bson.M) (*ChatRoom, error) {
	var room ChatRoom
	if err := s.rooms.FindOne(ctx, filter).Decode(&room); err != nil {
		return nil, err
	}
	return &room, nil
}

// GetOrCreateProjectRoom returns the project's chat room, creating it
// on first access with participants seeded from the project's worker
// list. The unique (chat_type, project_id) index makes the create
// atomic: a concurrent loser re-fetches the winner's room.
func (s *ChatStore) GetOrCreateProjectRoom(ctx context.Context, projectID, viewer string) (*RoomView, error) {
	oid, err := ParseID(projectID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"chat_type": ChatTypeProject, "project_id": oid}
	room, err := s.findRoom(ctx, filter)
	if err == mongo.ErrNoDocuments {
		project, perr := s.projects.GetProject(ctx, projectID)
		if perr != nil {
			return nil, perr
		}
		room, err = s.insertRoom(ctx, &ChatRoom{
			ChatType:     ChatTypeProject,
			Name:         project.Name,
			Participants: participantSet(project.Workers),
			ProjectID:    oid,
			CreatedBy:    project.Owner,
		}, filter)
	}
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, room, viewer)
}

// GetOrCreateShotRoom returns the shot's chat room, creating it on
// first access. The participant seed is the shot's own worker list;
// an empty shot_workers list falls back to the parent project's
// workers so the room is never born unreachable.
func (s *ChatStore) GetOrCreateShotRoom(ctx context.Context, shotID, viewer string) (*RoomView, error) {
	oid, err := ParseID(shotID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"chat_type": ChatTypeShot, "shot_id": oid}
	room, err := s.findRoom(ctx, filter)
	if err == mongo.ErrNoDocuments {
		shot, serr := s.shots.GetShot(ctx, shotID)
		if serr != nil {
			return nil, serr
		}

		participants := shot.ShotWorkers
		createdBy := ""
		if len(participants) == 0 {
			project, perr := s.projects.GetProject(ctx, shot.ProjectID)
			if perr != nil {
				return nil, perr
			}
			participants = project.Workers
			createdBy = project.Owner
		}

		projectOID, _ := bson.ObjectIDFromHex(shot.ProjectID)
		room, err = s.insertRoom(ctx, &ChatRoom{
			ChatType:     ChatTypeShot,
			Name:         shot.ShotName,
			Participants: participantSet(participants),
			ProjectID:    projectOID,
			ShotID:       oid,
			CreatedBy:    createdBy,
		}, filter)
	}
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, room, viewer)
}

// insertRoom stamps timestamps and inserts. A duplicate-key error
// means a concurrent request materialized the room first; re-fetch and
// use that one.
func (s *ChatStore) insertRoom(ctx context.Context, room *ChatRoom, refetch bson.M) (*ChatRoom, error) {
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now
	if room.Participants == nil {
		room.Participants = []string{}
	}

	result, err := s.rooms.InsertOne(ctx, room)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.findRoom(ctx, refetch)
		}
		return nil, err
	}
	room.ID = result.InsertedID.(bson.ObjectID)
	return room, nil
}

// SyncParticipants replaces a room's participant set with the given
// worker list. Replacement is wholesale, not additive: removed workers
// lose the room immediately, added workers gain it. Safe to retry.
func (s *ChatStore) SyncParticipants(ctx context.Context, roomID string, workers []string) error {
	oid, err := ParseID(roomID)
	if err != nil {
		return err
	}

	result, err := s.rooms.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"participants": participantSet(workers),
			"updated_at":   time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: chat room %q", ErrNotFound, roomID)
	}
	return nil
}

// SyncProjectRoom resyncs the project room's participants after a
// worker-list change. A project without a materialized room is a no-op.
func (s *ChatStore) SyncProjectRoom(ctx context.Context, projectID string, workers []string) error {
	oid, err := ParseID(projectID)
	if err != nil {
		return err
	}
	room, err := s.findRoom(ctx, bson.M{"chat_type": ChatTypeProject, "project_id": oid})
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return err
	}
	return s.SyncParticipants(ctx, room.ID.Hex(), workers)
}

// SyncShotRoom resyncs the shot room's participants after a
// shot-worker change, applying the same fallback as room creation:
// an empty shot worker list mirrors the parent project's workers.
func (s *ChatStore) SyncShotRoom(ctx context.Context, shotID string, workers []string) error {
	oid, err := ParseID(shotID)
	if err != nil {
		return err
	}
	room, err := s.findRoom(ctx, bson.M{"chat_type": ChatTypeShot, "shot_id": oid})
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return err
	}

	if len(workers) == 0 {
		shot, serr := s.shots.GetShot(ctx, shotID)
		if serr != nil {
			return serr
		}
		project, perr := s.projects.GetProject(ctx, shot.ProjectID)
		if perr != nil {
			return perr
		}
		workers = project.Workers
	}
	return s.SyncParticipants(ctx, room.ID.Hex(), workers)
}

// GetOrCreatePersonalRoom returns the 1:1 room between two users,
// creating it on first access. Both directions of the partnership must
// exist; an asymmetric partnership is Unauthorized. Lookup is by
// unordered pair and filtered on chat_type so a project room that
// happens to contain exactly these two users can never match.
func (s *ChatStore) GetOrCreatePersonalRoom(ctx context.Context, userA, userB, viewer string) (*RoomView, error) {
	userA = normalize.Username(userA)
	userB = normalize.Username(userB)
	if userA == "" || userB == "" || userA == userB {
		return nil, fmt.Errorf("%w: a personal room needs two distinct users", ErrInvalidInput)
	}

	abPartner, err := s.users.HasPartner(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	baPartner, err := s.users.HasPartner(ctx, userB, userA)
	if err != nil {
		return nil, err
	}
	if !abPartner || !baPartner {
		return nil, fmt.Errorf("%w: users are not partners", ErrUnauthorized)
	}

	filter := bson.M{
		"chat_type":    ChatTypePersonal,
		"participants": bson.M{"$all": bson.A{userA, userB}, "$size": 2},
	}
	room, err := s.findRoom(ctx, filter)
	if err == mongo.ErrNoDocuments {
		name := s.users.DisplayName(ctx, userA) + " & " + s.users.DisplayName(ctx, userB)
		room, err = s.insertRoom(ctx, &ChatRoom{
			ChatType:     ChatTypePersonal,
			Name:         name,
			Participants: []string{userA, userB},
			CreatedBy:    userA,
		}, filter)
	}
	if err != nil {
		return nil, err
	}

	if viewer == "" {
		viewer = userA
	}
	return s.enrich(ctx, room, viewer)
}

// GetRoom fetches a room by id and enriches it for the viewer.
func (s *ChatStore) GetRoom(ctx context.Context, roomID, viewer string) (*RoomView, error) {
	room, err := s.roomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, room, viewer)
}

func (s *ChatStore) roomByID(ctx context.Context, roomID string) (*ChatRoom, error) {
	oid, err := ParseID(roomID)
	if err != nil {
		return nil, err
	}
	room, err := s.findRoom(ctx, bson.M{"_id": oid})
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: chat room %q", ErrNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListPersonalRooms returns the user's personal rooms, enriched and
// sorted by latest activity.
func (s *ChatStore) ListPersonalRooms(ctx context.Context, username string) ([]*RoomView, error) {
	username = normalize.Username(username)
	filter := bson.M{"chat_type": ChatTypePersonal, "participants": username}
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	cursor, err := s.rooms.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []*ChatRoom
	if err = cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}

	views := make([]*RoomView, 0, len(rooms))
	for _, room := range rooms {
		view, err := s.enrich(ctx, room, username)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// ListRoomsForUser aggregates every room the user belongs to: one
// project room per project they work on, the shot rooms under those
// projects where they are a participant, and their personal rooms.
// Project and shot rooms are materialized on demand so a freshly added
// worker sees rooms before anyone has opened them.
func (s *ChatStore) ListRoomsForUser(ctx context.Context, username string) ([]*RoomView, error) {
	username = normalize.Username(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	var views []*RoomView

	projects, err := s.projects.ListProjects(ctx, username)
	if err != nil {
		return nil, err
	}
	for _, project := range projects {
		projectID := project.ID.Hex()

		view, err := s.GetOrCreateProjectRoom(ctx, projectID, username)
		if err != nil {
			return nil, err
		}
		views = append(views, view)

		shots, err := s.shots.GetShots(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for _, shot := range shots {
			shotView, err := s.GetOrCreateShotRoom(ctx, shot.ID.Hex(), username)
			if err != nil {
				return nil, err
			}
			// Shot rooms can scope tighter than the project; skip the
			// ones this user is not actually part of.
			if !containsUser(shotView.Participants, username) {
				continue
			}
			views = append(views, shotView)
		}
	}

	personal, err := s.ListPersonalRooms(ctx, username)
	if err != nil {
		return nil, err
	}
	views = append(views, personal...)

	sort.Slice(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
	return views, nil
}

// PostMessage stores a message in a room. Content may be empty only
// when a file is attached. The author's display name is denormalized
// at write time, and the parent room's updated_at is touched so room
// listings resort by activity.
func (s *ChatStore) PostMessage(ctx context.Context, roomID, username, content, fileID string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" && fileID == "" {
		return nil, fmt.Errorf("%w: message content or file is required", ErrInvalidInput)
	}
	username = normalize.Username(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	room, err := s.roomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ChatRoomID:     room.ID,
		AuthorUsername: username,
		AuthorName:     s.users.DisplayName(ctx, username),
		Content:        content,
		ReadBy:         []string{},
	}
	if fileID != "" {
		fileOID, err := ParseID(fileID)
		if err != nil {
			return nil, err
		}
		msg.FileID = fileOID
	}

	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	result, err := s.messages.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)

	// Best-effort: a failed touch only delays the room's sort position.
	_, _ = s.rooms.UpdateOne(ctx, bson.M{"_id": room.ID},
		bson.M{"$set": bson.M{"updated_at": now}})

	view := msg.View()
	view.File = s.files.InfoFor(ctx, msg.FileID)
	return view, nil
}

// ListMessages returns the room's most recent limit messages in
// chronological (oldest first) order.
func (s *ChatStore) ListMessages(ctx context.Context, roomID string, limit int64) ([]*MessageView, error) {
	oid, err := ParseID(roomID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetLimit(limit)

	cursor, err := s.messages.Find(ctx, bson.M{"chat_room_id": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*Message
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}

	// The query returned newest first; clients expect chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	views := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := m.View()
		view.File = s.files.InfoFor(ctx, m.FileID)
		views = append(views, view)
	}
	return views, nil
}

// MarkRead adds the user to the read set of every message in the room
// they have not written and not yet read. Idempotent: $addToSet makes
// a second call a no-op.
func (s *ChatStore) MarkRead(ctx context.Context, roomID, username string) error {
	oid, err := ParseID(roomID)
	if err != nil {
		return err
	}
	username = normalize.Username(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	filter := bson.M{
		"chat_room_id":    oid,
		"author_username": bson.M{"$ne": username},
		"read_by":         bson.M{"$ne": username},
	}
	_, err = s.messages.UpdateMany(ctx, filter, bson.M{
		"$addToSet": bson.M{"read_by": username},
	})
	return err
}

// UnreadCount counts the room's messages written by someone else that
// the user has not read.
func (s *ChatStore) UnreadCount(ctx context.Context, roomID bson.ObjectID, username string) (int64, error) {
	return s.messages.CountDocuments(ctx, bson.M{
		"chat_room_id":    roomID,
		"author_username": bson.M{"$ne": username},
		"read_by":         bson.M{"$ne": username},
	})
}

// lastMessage returns the newest message preview for a room, or nil
// when the room is empty.
func (s *ChatStore) lastMessage(ctx context.Context, roomID bson.ObjectID) (*MessagePreview, error) {
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var msg Message
	err := s.messages.FindOne(ctx, bson.M{"chat_room_id": roomID}, opts).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	content := msg.Content
	if len(content) > previewLength {
		content = content[:previewLength]
	}
	return &MessagePreview{
		Content:        content,
		AuthorUsername: msg.AuthorUsername,
		AuthorName:     msg.AuthorName,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

// enrich builds the API view of a room: last-message preview always,
// display name and unread count when a viewer is known.
func (s *ChatStore) enrich(ctx context.Context, room *ChatRoom, viewer string) (*RoomView, error) {
	view := room.View()

	preview, err := s.lastMessage(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	view.LastMessage = preview

	viewer = normalize.Username(viewer)
	if viewer == "" {
		return view, nil
	}

	unread, err := s.UnreadCount(ctx, room.ID, viewer)
	if err != nil {
		return nil, err
	}
	view.UnreadCount = unread

	// A personal room presents itself as the other participant.
	if room.ChatType == ChatTypePersonal {
		for _, p := range room.Participants {
			if p != viewer {
				view.DisplayName = s.users.DisplayName(ctx, p)
				break
			}
		}
	}
	return view, nil
}

// participantSet copies a worker list into a participant list,
// normalizing and de-duplicating usernames.
func participantSet(workers []string) []string {
	out := make([]string, 0, len(workers))
	seen := make(map[string]bool, len(workers))
	for _, w := range workers {
		w = normalize.Username(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func containsUser(list []string, username string) bool {
	for _, u := range list {
		if u == username {
			return true
		}
	}
	return false
}
