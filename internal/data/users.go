// Package data provides DB models and stores.
package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/johwaworks/QEPipeline/internal/auth"
	"github.com/johwaworks/QEPipeline/internal/normalize"
)

// UsersStore performs user DB operations on the users and
// pending_registrations collections.
type UsersStore struct {
	users   *mongo.Collection
	pending *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collections.
func NewUsersStore(users, pending *mongo.Collection) *UsersStore {
	return &UsersStore{users: users, pending: pending}
}

// Register creates a pending registration that an admin must approve
// before the account can log in. Duplicate usernames in either the
// users or pending_registrations collection are rejected.
func (s *UsersStore) Register(ctx context.Context, username, password, name, role, birthdate string) error {
	username = normalize.Username(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	if count, err := s.users.CountDocuments(ctx, bson.M{"username": username}); err != nil {
		return err
	} else if count > 0 {
		return fmt.Errorf("%w: username taken", ErrAlreadyExists)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	reg := &User{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		Birthdate:    birthdate,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.pending.InsertOne(ctx, reg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: registration already pending", ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// GetUser finds an account by username.
func (s *UsersStore) GetUser(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.users.FindOne(ctx, bson.M{"username": normalize.Username(username)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		return nil, err
	}
	return &user, nil
}

// UserExists checks account existence without decoding the document.
func (s *UsersStore) UserExists(ctx context.Context, username string) (bool, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"username": normalize.Username(username)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Authenticate verifies credentials for an approved account and, on
// success, touches the activity heartbeat.
func (s *UsersStore) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.Approved {
		return nil, fmt.Errorf("%w: registration pending admin approval", ErrUnauthorized)
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	_ = s.UpdateActivity(ctx, user.Username)
	return user, nil
}

// IsAdmin reports whether the credentials belong to an admin account.
func (s *UsersStore) IsAdmin(ctx context.Context, username, password string) (bool, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return false, err
	}
	if !user.IsAdmin {
		return false, nil
	}
	return auth.CheckPassword(user.PasswordHash, password) == nil, nil
}

// UpdateActivity stamps the user's last-activity heartbeat.
func (s *UsersStore) UpdateActivity(ctx context.Context, username string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"username": normalize.Username(username)},
		bson.M{"$set": bson.M{"last_activity": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return nil
}

// GetActiveUsers returns approved users whose heartbeat falls inside
// the window, most recent first.
func (s *UsersStore) GetActiveUsers(ctx context.Context, window time.Duration) ([]*ActiveUser, error) {
	cutoff := time.Now().UTC().Add(-window)
	filter := bson.M{
		"approved":      true,
		"last_activity": bson.M{"$gte": cutoff},
	}
	opts := options.Find().SetSort(bson.M{"last_activity": -1})

	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	active := make([]*ActiveUser, 0, len(users))
	for _, u := range users {
		active = append(active, &ActiveUser{
			UserRef:      refFor(u),
			LastActivity: u.LastActivity,
		})
	}
	return active, nil
}

// GetAllUsers returns every approved account as a UserRef, for member
// and worker selection in project forms.
func (s *UsersStore) GetAllUsers(ctx context.Context) ([]UserRef, error) {
	cursor, err := s.users.Find(ctx, bson.M{"approved": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	refs := make([]UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, refFor(u))
	}
	return refs, nil
}

// RefsFor resolves a list of usernames to denormalized UserRefs in one
// query. Unknown usernames still yield a ref with the raw username as
// the display name, so stale worker lists stay renderable.
func (s *UsersStore) RefsFor(ctx context.Context, usernames []string) ([]UserRef, error) {
	if len(usernames) == 0 {
		return []UserRef{}, nil
	}
	cursor, err := s.users.Find(ctx, bson.M{"username": bson.M{"$in": usernames}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	byName := make(map[string]UserRef, len(users))
	for _, u := range users {
		byName[u.Username] = refFor(u)
	}

	refs := make([]UserRef, 0, len(usernames))
	for _, username := range usernames {
		if ref, ok := byName[username]; ok {
			refs = append(refs, ref)
		} else {
			refs = append(refs, UserRef{Username: username, Name: username})
		}
	}
	return refs, nil
}

// DisplayName returns the user's display name, falling back to the raw
// username when no name is set or the account is missing.
func (s *UsersStore) DisplayName(ctx context.Context, username string) string {
	user, err := s.GetUser(ctx, username)
	if err != nil || user.Name == "" {
		return normalize.Username(username)
	}
	return user.Name
}

// SendPartnerRequest records a pending partner request on the target
// user. Requests to missing users, existing partners, yourself, or
// duplicates of an outstanding request are rejected.
func (s *UsersStore) SendPartnerRequest(ctx context.Context, from, to string) error {
	from = normalize.Username(from)
	to = normalize.Username(to)
	if from == to {
		return fmt.Errorf("%w: cannot send a partner request to yourself", ErrInvalidInput)
	}

	sender, err := s.GetUser(ctx, from)
	if err != nil {
		return err
	}
	target, err := s.GetUser(ctx, to)
	if err != nil {
		return err
	}

	for _, p := range sender.Partners {
		if p == to {
			return fmt.Errorf("%w: already partners", ErrAlreadyExists)
		}
	}
	for _, r := range target.PartnerRequests {
		if r == from {
			return fmt.Errorf("%w: request already sent", ErrAlreadyExists)
		}
	}

	_, err = s.users.UpdateOne(ctx,
		bson.M{"username": to},
		bson.M{"$addToSet": bson.M{"partner_requests": from}},
	)
	return err
}

// AcceptPartnerRequest removes the request and links both users as
// partners. The partnership becomes mutual in one call.
func (s *UsersStore) AcceptPartnerRequest(ctx context.Context, username, from string) error {
	username = normalize.Username(username)
	from = normalize.Username(from)

	user, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}
	found := false
	for _, r := range user.PartnerRequests {
		if r == from {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: partner request from %q", ErrNotFound, from)
	}

	if _, err := s.users.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{
			"$pull":     bson.M{"partner_requests": from},
			"$addToSet": bson.M{"partners": from},
		},
	); err != nil {
		return err
	}

	_, err = s.users.UpdateOne(ctx,
		bson.M{"username": from},
		bson.M{"$addToSet": bson.M{"partners": username}},
	)
	return err
}

// RejectPartnerRequest drops a pending request. Rejecting a request
// that was never sent is a no-op.
func (s *UsersStore) RejectPartnerRequest(ctx context.Context, username, from string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"username": normalize.Username(username)},
		bson.M{"$pull": bson.M{"partner_requests": normalize.Username(from)}},
	)
	return err
}

// RemovePartner removes partner from username's list. Removal is
// one-directional, matching the original behavior.
func (s *UsersStore) RemovePartner(ctx context.Context, username, partner string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"username": normalize.Username(username)},
		bson.M{"$pull": bson.M{"partners": normalize.Username(partner)}},
	)
	return err
}

// GetPartners returns the user's partners with denormalized name/role.
func (s *UsersStore) GetPartners(ctx context.Context, username string) ([]UserRef, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.RefsFor(ctx, user.Partners)
}

// GetPartnerRequests returns the pending requests addressed to the user.
func (s *UsersStore) GetPartnerRequests(ctx context.Context, username string) ([]UserRef, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.RefsFor(ctx, user.PartnerRequests)
}

// HasPartner reports whether other appears in owner's partner list.
// Mutual partnership requires this to hold in both directions.
func (s *UsersStore) HasPartner(ctx context.Context, owner, other string) (bool, error) {
	user, err := s.GetUser(ctx, owner)
	if err != nil {
		return false, err
	}
	other = normalize.Username(other)
	for _, p := range user.Partners {
		if p == other {
			return true, nil
		}
	}
	return false, nil
}

// GetPendingRegistrations lists registrations awaiting admin review.
func (s *UsersStore) GetPendingRegistrations(ctx context.Context) ([]*User, error) {
	cursor, err := s.pending.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var regs []*User
	if err = cursor.All(ctx, &regs); err != nil {
		return nil, err
	}
	// Never surface password hashes to the admin UI.
	for _, r := range regs {
		r.PasswordHash = ""
	}
	return regs, nil
}

// ApproveRegistration moves a pending registration into the users
// collection (approve) or discards it (reject). Either way the pending
// document is removed.
func (s *UsersStore) ApproveRegistration(ctx context.Context, username string, approve bool) error {
	username = normalize.Username(username)

	var reg User
	err := s.pending.FindOne(ctx, bson.M{"username": username}).Decode(&reg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return fmt.Errorf("%w: registration %q", ErrNotFound, username)
		}
		return err
	}

	if approve {
		user := &User{
			Username:     reg.Username,
			PasswordHash: reg.PasswordHash,
			Name:         reg.Name,
			Role:         reg.Role,
			Birthdate:    reg.Birthdate,
			Approved:     true,
			IsAdmin:      false,
			CreatedAt:    reg.CreatedAt,
		}
		if _, err := s.users.InsertOne(ctx, user); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: username taken", ErrAlreadyExists)
			}
			return err
		}
	}

	_, err = s.pending.DeleteOne(ctx, bson.M{"username": username})
	return err
}

func refFor(u *User) UserRef {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return UserRef{Username: u.Username, Name: name, Role: u.Role}
}
