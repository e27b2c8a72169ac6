package data

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func createTestProject(t *testing.T, s *stores, name, owner string, workers []string) *Project {
	t.Helper()
	ctx := context.Background()
	project, err := s.projects.CreateProject(ctx, name, owner, "Director D", "2026-12-31", "Production", "", nil, nil)
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if workers != nil {
		if err := s.projects.UpdateProject(ctx, project.ID.Hex(), ProjectUpdate{Workers: workers}); err != nil {
			t.Fatalf("UpdateProject workers failed: %v", err)
		}
		project.Workers = workers
	}
	return project
}

func TestProjectRoomMaterializationIdempotent(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	project := createTestProject(t, s, "Alpha", "alice", nil)
	projectID := project.ID.Hex()

	room1, err := s.chat.GetOrCreateProjectRoom(ctx, projectID, "alice")
	if err != nil {
		t.Fatalf("first GetOrCreateProjectRoom failed: %v", err)
	}
	room2, err := s.chat.GetOrCreateProjectRoom(ctx, projectID, "alice")
	if err != nil {
		t.Fatalf("second GetOrCreateProjectRoom failed: %v", err)
	}

	if room1.ID != room2.ID {
		t.Fatalf("expected one room, got %s and %s", room1.ID, room2.ID)
	}
	if room1.Name != "Alpha" || room1.ChatType != ChatTypeProject {
		t.Fatalf("unexpected room: %+v", room1)
	}
	if len(room1.Participants) != 1 || room1.Participants[0] != "alice" {
		t.Fatalf("expected participants seeded from workers, got %v", room1.Participants)
	}
}

func TestShotRoomParticipantSeed(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	registerApproved(t, s, "bob", "Bob B")
	project := createTestProject(t, s, "Alpha", "alice", []string{"alice", "bob"})
	projectID := project.ID.Hex()

	// empty shot_workers falls back to the parent project's workers
	inherit, err := s.shots.CreateShot(ctx, projectID, "sh010", "")
	if err != nil {
		t.Fatalf("CreateShot failed: %v", err)
	}
	room, err := s.chat.GetOrCreateShotRoom(ctx, inherit.ID.Hex(), "alice")
	if err != nil {
		t.Fatalf("GetOrCreateShotRoom failed: %v", err)
	}
	if len(room.Participants) != 2 {
		t.Fatalf("expected inherited project workers, got %v", room.Participants)
	}

	// a non-empty shot worker list wins over the project's
	scoped, err := s.shots.CreateShot(ctx, projectID, "sh020", "")
	if err != nil {
		t.Fatalf("CreateShot failed: %v", err)
	}
	if err := s.shots.UpdateShotWorkers(ctx, scoped.ID.Hex(), []string{"bob"}); err != nil {
		t.Fatalf("UpdateShotWorkers failed: %v", err)
	}
	room, err = s.chat.GetOrCreateShotRoom(ctx, scoped.ID.Hex(), "bob")
	if err != nil {
		t.Fatalf("GetOrCreateShotRoom failed: %v", err)
	}
	if len(room.Participants) != 1 || room.Participants[0] != "bob" {
		t.Fatalf("expected shot-scoped participants, got %v", room.Participants)
	}
}

func TestSyncParticipantsReplacesWholesale(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	registerApproved(t, s, "bob", "Bob B")
	registerApproved(t, s, "carol", "Carol C")
	project := createTestProject(t, s, "Alpha", "alice", []string{"alice", "bob"})
	projectID := project.ID.Hex()

	room, err := s.chat.GetOrCreateProjectRoom(ctx, projectID, "")
	if err != nil {
		t.Fatalf("GetOrCreateProjectRoom failed: %v", err)
	}

	if err := s.chat.SyncProjectRoom(ctx, projectID, []string{"bob", "carol"}); err != nil {
		t.Fatalf("SyncProjectRoom failed: %v", err)
	}

	synced, err := s.chat.GetRoom(ctx, room.ID, "")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if len(synced.Participants) != 2 || synced.Participants[0] != "bob" || synced.Participants[1] != "carol" {
		t.Fatalf("expected exact replacement, got %v", synced.Participants)
	}

	// syncing a project that never materialized a room is a no-op
	ghost := createTestProject(t, s, "Beta", "alice", nil)
	if err := s.chat.SyncProjectRoom(ctx, ghost.ID.Hex(), []string{"alice"}); err != nil {
		t.Fatalf("sync without room should be a no-op, got %v", err)
	}
}

func TestPersonalRoomRequiresMutualPartnership(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	registerApproved(t, s, "bob", "Bob B")

	if _, err := s.chat.GetOrCreatePersonalRoom(ctx, "alice", "bob", "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-partners, got %v", err)
	}

	makePartners(t, s, "alice", "bob")

	room1, err := s.chat.GetOrCreatePersonalRoom(ctx, "alice", "bob", "alice")
	if err != nil {
		t.Fatalf("GetOrCreatePersonalRoom failed: %v", err)
	}
	if room1.DisplayName != "Bob B" {
		t.Fatalf("expected alice to see bob's name, got %q", room1.DisplayName)
	}

	// lookup is order-insensitive
	room2, err := s.chat.GetOrCreatePersonalRoom(ctx, "bob", "alice", "bob")
	if err != nil {
		t.Fatalf("reversed lookup failed: %v", err)
	}
	if room1.ID != room2.ID {
		t.Fatalf("expected one personal room, got %s and %s", room1.ID, room2.ID)
	}
	if room2.DisplayName != "Alice A" {
		t.Fatalf("expected bob to see alice's name, got %q", room2.DisplayName)
	}

	// an asymmetric partnership is not enough
	if err := s.users.RemovePartner(ctx, "alice", "bob"); err != nil {
		t.Fatalf("RemovePartner failed: %v", err)
	}
	if _, err := s.chat.GetOrCreatePersonalRoom(ctx, "alice", "bob", "alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for asymmetric partnership, got %v", err)
	}
}

func TestMessagesReadTrackingAndUnread(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	registerApproved(t, s, "bob", "Bob B")
	project := createTestProject(t, s, "Alpha", "alice", []string{"alice", "bob"})

	room, err := s.chat.GetOrCreateProjectRoom(ctx, project.ID.Hex(), "alice")
	if err != nil {
		t.Fatalf("GetOrCreateProjectRoom failed: %v", err)
	}

	if _, err := s.chat.PostMessage(ctx, room.ID, "alice", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty message, got %v", err)
	}

	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.chat.PostMessage(ctx, room.ID, "alice", content, ""); err != nil {
			t.Fatalf("PostMessage failed: %v", err)
		}
	}
	if _, err := s.chat.PostMessage(ctx, room.ID, "bob", "reply", ""); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	// own messages never count as unread
	bobView, err := s.chat.GetRoom(ctx, room.ID, "bob")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if bobView.UnreadCount != 3 {
		t.Fatalf("expected 3 unread for bob, got %d", bobView.UnreadCount)
	}
	aliceView, err := s.chat.GetRoom(ctx, room.ID, "alice")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if aliceView.UnreadCount != 1 {
		t.Fatalf("expected 1 unread for alice, got %d", aliceView.UnreadCount)
	}
	if aliceView.LastMessage == nil || aliceView.LastMessage.Content != "reply" {
		t.Fatalf("unexpected last message: %+v", aliceView.LastMessage)
	}

	// mark-read is idempotent
	for i := 0; i < 2; i++ {
		if err := s.chat.MarkRead(ctx, room.ID, "bob"); err != nil {
			t.Fatalf("MarkRead failed: %v", err)
		}
	}
	bobView, err = s.chat.GetRoom(ctx, room.ID, "bob")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if bobView.UnreadCount != 0 {
		t.Fatalf("expected 0 unread after MarkRead, got %d", bobView.UnreadCount)
	}

	msgs, err := s.chat.ListMessages(ctx, room.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[3].Content != "reply" {
		t.Fatalf("messages not chronological: %q ... %q", msgs[0].Content, msgs[3].Content)
	}
	// the author never appears in their own read set
	for _, m := range msgs {
		for _, r := range m.ReadBy {
			if r == m.AuthorUsername {
				t.Fatalf("author %q leaked into read_by", m.AuthorUsername)
			}
		}
	}

	limited, err := s.chat.ListMessages(ctx, room.ID, 2)
	if err != nil {
		t.Fatalf("ListMessages with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Content != "third" || limited[1].Content != "reply" {
		t.Fatalf("expected newest two in ascending order, got %+v", limited)
	}
}

func TestLastMessagePreviewTruncation(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	project := createTestProject(t, s, "Alpha", "alice", nil)

	room, err := s.chat.GetOrCreateProjectRoom(ctx, project.ID.Hex(), "alice")
	if err != nil {
		t.Fatalf("GetOrCreateProjectRoom failed: %v", err)
	}

	long := strings.Repeat("x", 250)
	if _, err := s.chat.PostMessage(ctx, room.ID, "alice", long, ""); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	view, err := s.chat.GetRoom(ctx, room.ID, "alice")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if view.LastMessage == nil || len(view.LastMessage.Content) != 100 {
		t.Fatalf("expected 100-char preview, got %d", len(view.LastMessage.Content))
	}
}

func TestListRoomsForUser(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	registerApproved(t, s, "bob", "Bob B")
	makePartners(t, s, "alice", "bob")

	project := createTestProject(t, s, "Alpha", "alice", []string{"alice", "bob"})
	projectID := project.ID.Hex()

	// a shot scoped to alice only: bob must not see its room
	shot, err := s.shots.CreateShot(ctx, projectID, "sh010", "")
	if err != nil {
		t.Fatalf("CreateShot failed: %v", err)
	}
	if err := s.shots.UpdateShotWorkers(ctx, shot.ID.Hex(), []string{"alice"}); err != nil {
		t.Fatalf("UpdateShotWorkers failed: %v", err)
	}

	if _, err := s.chat.GetOrCreatePersonalRoom(ctx, "alice", "bob", "bob"); err != nil {
		t.Fatalf("GetOrCreatePersonalRoom failed: %v", err)
	}

	rooms, err := s.chat.ListRoomsForUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListRoomsForUser failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected project + personal room for bob, got %d", len(rooms))
	}
	for _, r := range rooms {
		if r.ChatType == ChatTypeShot {
			t.Fatal("bob should not see the alice-only shot room")
		}
	}

	// alice sees all three, and posting bumps a room to the top
	aliceRooms, err := s.chat.ListRoomsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListRoomsForUser failed: %v", err)
	}
	if len(aliceRooms) != 3 {
		t.Fatalf("expected 3 rooms for alice, got %d", len(aliceRooms))
	}

	projectRoom, err := s.chat.GetOrCreateProjectRoom(ctx, projectID, "alice")
	if err != nil {
		t.Fatalf("GetOrCreateProjectRoom failed: %v", err)
	}
	if _, err := s.chat.PostMessage(ctx, projectRoom.ID, "bob", "hello", ""); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	aliceRooms, err = s.chat.ListRoomsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListRoomsForUser failed: %v", err)
	}
	if aliceRooms[0].ID != projectRoom.ID {
		t.Fatalf("expected freshest room first, got %s", aliceRooms[0].ChatType)
	}
	if aliceRooms[0].UnreadCount != 1 {
		t.Fatalf("expected 1 unread for alice in project room, got %d", aliceRooms[0].UnreadCount)
	}
}

func TestLegacyProjectAndShotMessages(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	project := createTestProject(t, s, "Alpha", "alice", nil)
	projectID := project.ID.Hex()

	if _, err := s.chat.CreateProjectMessage(ctx, projectID, "alice", "status update"); err != nil {
		t.Fatalf("CreateProjectMessage failed: %v", err)
	}
	msgs, err := s.chat.GetProjectMessages(ctx, projectID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected 1 project message, got %d err=%v", len(msgs), err)
	}
	if msgs[0].AuthorName != "Alice A" {
		t.Fatalf("expected denormalized author name, got %q", msgs[0].AuthorName)
	}

	shot, err := s.shots.CreateShot(ctx, projectID, "sh010", "")
	if err != nil {
		t.Fatalf("CreateShot failed: %v", err)
	}
	record, err := s.files.CreateShotFile(ctx, shot.ID.Hex(), "alice", "plate.exr", "/tmp/plate.exr", 1024, "image/x-exr")
	if err != nil {
		t.Fatalf("CreateShotFile failed: %v", err)
	}

	msg, err := s.chat.CreateShotMessage(ctx, shot.ID.Hex(), "alice", "", record.ID.Hex())
	if err != nil {
		t.Fatalf("CreateShotMessage failed: %v", err)
	}
	if msg.File == nil || msg.File.Filename != "plate.exr" {
		t.Fatalf("expected attached file info, got %+v", msg.File)
	}

	// legacy messages never bleed into chat rooms
	room, err := s.chat.GetOrCreateProjectRoom(ctx, projectID, "alice")
	if err != nil {
		t.Fatalf("GetOrCreateProjectRoom failed: %v", err)
	}
	roomMsgs, err := s.chat.ListMessages(ctx, room.ID, 0)
	if err != nil || len(roomMsgs) != 0 {
		t.Fatalf("expected empty room, got %d err=%v", len(roomMsgs), err)
	}
}
