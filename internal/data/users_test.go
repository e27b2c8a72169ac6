package data

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterApproveAuthenticate(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	if err := s.users.Register(ctx, "Alice ", "pw123456", "Alice A", "Compositor", "1990-01-01"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// pending accounts cannot log in
	if _, err := s.users.Authenticate(ctx, "alice", "pw123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before approval, got %v", err)
	}

	// duplicate registration while pending
	if err := s.users.Register(ctx, "alice", "other", "", "", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for pending duplicate, got %v", err)
	}

	pending, err := s.users.GetPendingRegistrations(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending registration, got %d err=%v", len(pending), err)
	}
	if pending[0].PasswordHash != "" {
		t.Fatal("pending registration leaked password hash")
	}

	if err := s.users.ApproveRegistration(ctx, "alice", true); err != nil {
		t.Fatalf("ApproveRegistration failed: %v", err)
	}

	user, err := s.users.Authenticate(ctx, "ALICE", "pw123456")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.Username != "alice" || !user.Approved {
		t.Fatalf("unexpected user after approval: %+v", user)
	}

	if _, err := s.users.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad password, got %v", err)
	}

	// login touched the heartbeat
	active, err := s.users.GetActiveUsers(ctx, 5*time.Minute)
	if err != nil || len(active) != 1 {
		t.Fatalf("expected alice active, got %d err=%v", len(active), err)
	}
}

func TestApproveRegistrationReject(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	if err := s.users.Register(ctx, "bob", "pw123456", "Bob", "TD", ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := s.users.ApproveRegistration(ctx, "bob", false); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if exists, _ := s.users.UserExists(ctx, "bob"); exists {
		t.Fatal("rejected registration should not create an account")
	}
	if err := s.users.ApproveRegistration(ctx, "bob", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after request consumed, got %v", err)
	}
}

func TestPartnerWorkflow(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")
	registerApproved(t, s, "bob", "Bob B")

	if err := s.users.SendPartnerRequest(ctx, "alice", "alice"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self-request, got %v", err)
	}

	if err := s.users.SendPartnerRequest(ctx, "alice", "bob"); err != nil {
		t.Fatalf("SendPartnerRequest failed: %v", err)
	}
	if err := s.users.SendPartnerRequest(ctx, "alice", "bob"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate request, got %v", err)
	}

	requests, err := s.users.GetPartnerRequests(ctx, "bob")
	if err != nil || len(requests) != 1 || requests[0].Username != "alice" {
		t.Fatalf("unexpected partner requests: %+v err=%v", requests, err)
	}

	if err := s.users.AcceptPartnerRequest(ctx, "bob", "alice"); err != nil {
		t.Fatalf("AcceptPartnerRequest failed: %v", err)
	}

	// accepting makes the partnership mutual
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := s.users.HasPartner(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Fatalf("HasPartner(%s,%s) = %v err=%v", pair[0], pair[1], ok, err)
		}
	}

	// sending again after partnered is rejected
	if err := s.users.SendPartnerRequest(ctx, "alice", "bob"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for partnered users, got %v", err)
	}

	// removal is one-directional
	if err := s.users.RemovePartner(ctx, "alice", "bob"); err != nil {
		t.Fatalf("RemovePartner failed: %v", err)
	}
	if ok, _ := s.users.HasPartner(ctx, "alice", "bob"); ok {
		t.Fatal("alice should no longer list bob")
	}
	if ok, _ := s.users.HasPartner(ctx, "bob", "alice"); !ok {
		t.Fatal("bob should still list alice")
	}
}

func TestRefsForFallsBackToUsername(t *testing.T) {
	c, s := setupStores(t)
	defer func() { _ = c.Close(context.Background()) }()
	ctx := context.Background()

	registerApproved(t, s, "alice", "Alice A")

	refs, err := s.users.RefsFor(ctx, []string{"alice", "ghost"})
	if err != nil {
		t.Fatalf("RefsFor failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Name != "Alice A" {
		t.Fatalf("expected resolved name, got %q", refs[0].Name)
	}
	if refs[1].Name != "ghost" {
		t.Fatalf("expected username fallback, got %q", refs[1].Name)
	}
}
