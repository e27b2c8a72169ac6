package data

import (
	"context"
	"os"
	"testing"

	"github.com/johwaworks/QEPipeline/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "qepipeline_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.UsersCollection().Drop(ctx)
	_ = c.PendingRegistrationsCollection().Drop(ctx)
	_ = c.ProjectsCollection().Drop(ctx)
	_ = c.ShotsCollection().Drop(ctx)
	_ = c.FilesCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)
	_ = c.ChatRoomsCollection().Drop(ctx)
	_ = c.PendingDeletionsCollection().Drop(ctx)

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	return c
}

type stores struct {
	users     *UsersStore
	projects  *ProjectsStore
	shots     *ShotsStore
	files     *FilesStore
	chat      *ChatStore
	deletions *DeletionsStore
}

func setupStores(t *testing.T) (*db.Client, *stores) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection(), c.PendingRegistrationsCollection())
	projects := NewProjectsStore(c.ProjectsCollection(), users)
	shots := NewShotsStore(c.ShotsCollection(), projects)
	files := NewFilesStore(c.FilesCollection(), users)
	chat := NewChatStore(c.ChatRoomsCollection(), c.MessagesCollection(), users, projects, shots, files)
	deletions := NewDeletionsStore(
		c.PendingDeletionsCollection(),
		c.ProjectsCollection(),
		c.ShotsCollection(),
		c.FilesCollection(),
		c.MessagesCollection(),
		c.ChatRoomsCollection(),
		projects,
	)
	return c, &stores{
		users:     users,
		projects:  projects,
		shots:     shots,
		files:     files,
		chat:      chat,
		deletions: deletions,
	}
}

// registerApproved pushes a user through registration and admin
// approval so it can participate in tests.
func registerApproved(t *testing.T, s *stores, username, name string) {
	t.Helper()
	ctx := context.Background()
	if err := s.users.Register(ctx, username, "secret-password", name, "Compositor", ""); err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	if err := s.users.ApproveRegistration(ctx, username, true); err != nil {
		t.Fatalf("ApproveRegistration(%s) failed: %v", username, err)
	}
}

// makePartners wires a mutual partnership between two approved users.
func makePartners(t *testing.T, s *stores, a, b string) {
	t.Helper()
	ctx := context.Background()
	if err := s.users.SendPartnerRequest(ctx, a, b); err != nil {
		t.Fatalf("SendPartnerRequest(%s->%s) failed: %v", a, b, err)
	}
	if err := s.users.AcceptPartnerRequest(ctx, b, a); err != nil {
		t.Fatalf("AcceptPartnerRequest(%s<-%s) failed: %v", b, a, err)
	}
}
