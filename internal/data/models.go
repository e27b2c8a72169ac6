package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Chat room kinds stored in the chat_type field.
const (
	ChatTypeProject  = "project"
	ChatTypeShot     = "shot"
	ChatTypePersonal = "personal"
)

// Production status values accepted for projects.
var ProductionStatuses = []string{"Pre-Production", "Production", "Post-Production", "Finish"}

// Roles accepted at registration time.
var ValidRoles = []string{"Director", "Assistant Director", "VFX Supervisor", "FX Artist", "TD", "3D Generalist", "Compositor"}

// User maps to the users collection. Username is the unique key;
// partner lists hold usernames, not ids. The password hash never
// leaves the data layer in JSON form.
type User struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username        string        `bson:"username" json:"username"`
	PasswordHash    string        `bson:"password_hash" json:"-"`
	Name            string        `bson:"name" json:"name"`
	Role            string        `bson:"role" json:"role"`
	Birthdate       string        `bson:"birthdate,omitempty" json:"birthdate,omitempty"`
	Approved        bool          `bson:"approved" json:"approved"`
	IsAdmin         bool          `bson:"is_admin" json:"is_admin"`
	Partners        []string      `bson:"partners,omitempty" json:"partners,omitempty"`
	PartnerRequests []string      `bson:"partner_requests,omitempty" json:"partner_requests,omitempty"`
	LastActivity    time.Time     `bson:"last_activity,omitempty" json:"last_activity,omitzero"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
}

// UserRef is the canonical denormalized user record embedded in API
// responses (member lists, partner lists, request lists).
type UserRef struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// ActiveUser is a UserRef plus the last heartbeat time.
type ActiveUser struct {
	UserRef
	LastActivity time.Time `json:"last_activity"`
}

// Project maps to the projects collection.
type Project struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string        `bson:"name" json:"name"`
	Description      string        `bson:"description" json:"description"`
	Owner            string        `bson:"owner" json:"owner"`
	Director         string        `bson:"director" json:"director"`
	Deadline         string        `bson:"deadline" json:"deadline"`
	ProductionStatus string        `bson:"production_status" json:"production_status"`
	VFXSupervisors   []string      `bson:"vfx_supervisors" json:"vfx_supervisors"`
	Members          []string      `bson:"members" json:"members"`
	Workers          []string      `bson:"workers" json:"workers"`
	Status           string        `bson:"status" json:"status"`
	CreatedAt        time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `bson:"updated_at" json:"updated_at"`
}

// ProjectDetail is a project enriched with denormalized user info for
// every referenced list.
type ProjectDetail struct {
	*Project
	VFXSupervisorsInfo []UserRef `json:"vfx_supervisors_info"`
	MembersInfo        []UserRef `json:"members_info"`
	WorkersInfo        []UserRef `json:"workers_info"`
}

// ProjectSummary is the embedded parent snapshot on shot responses.
type ProjectSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Director         string `json:"director"`
	ProductionStatus string `json:"production_status"`
}

// Resolution is a shot's pixel dimensions.
type Resolution struct {
	Width  int `bson:"width" json:"width"`
	Height int `bson:"height" json:"height"`
}

// Duration is a shot's frame range.
type Duration struct {
	StartFrame  int `bson:"start_frame" json:"start_frame"`
	EndFrame    int `bson:"end_frame" json:"end_frame"`
	TotalFrames int `bson:"total_frames" json:"total_frames"`
}

// Shot maps to the shots collection. ProjectID is a back-reference to
// the owning project, stored as a hex string as the original documents
// were written.
type Shot struct {
	ID                bson.ObjectID     `bson:"_id,omitempty" json:"id"`
	ProjectID         string            `bson:"project_id" json:"project_id"`
	ShotName          string            `bson:"shot_name" json:"shot_name"`
	Description       string            `bson:"description" json:"description"`
	DescriptionLocked bool              `bson:"description_locked,omitempty" json:"description_locked"`
	Resolution        *Resolution       `bson:"resolution,omitempty" json:"resolution,omitempty"`
	ResolutionLocked  bool              `bson:"resolution_locked,omitempty" json:"resolution_locked"`
	Duration          *Duration         `bson:"duration,omitempty" json:"duration,omitempty"`
	DurationLocked    bool              `bson:"duration_locked,omitempty" json:"duration_locked"`
	ShotWorkers       []string          `bson:"shot_workers,omitempty" json:"shot_workers"`
	WorkersAssignment map[string]string `bson:"workers_assignment,omitempty" json:"workers_assignment,omitempty"`
	ThumbnailPath     string            `bson:"thumbnail_path,omitempty" json:"thumbnail_path,omitempty"`
	Status            string            `bson:"status" json:"status"`
	CreatedAt         time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `bson:"updated_at" json:"updated_at"`
}

// ShotDetail is a shot plus a snapshot of its parent project.
type ShotDetail struct {
	*Shot
	Project *ProjectSummary `json:"project,omitempty"`
}

// FileRecord maps to the files collection. Exactly one of ProjectID or
// ShotID is set, depending on which parent owns the blob.
type FileRecord struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID      bson.ObjectID `bson:"project_id,omitempty" json:"project_id,omitzero"`
	ShotID         bson.ObjectID `bson:"shot_id,omitempty" json:"shot_id,omitzero"`
	AuthorUsername string        `bson:"author_username" json:"author_username"`
	AuthorName     string        `bson:"author_name,omitempty" json:"author_name,omitempty"`
	Filename       string        `bson:"filename" json:"filename"`
	FilePath       string        `bson:"file_path" json:"-"`
	FileSize       int64         `bson:"file_size" json:"file_size"`
	FileType       string        `bson:"file_type" json:"file_type"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// FileInfo is the embedded file summary attached to messages that
// reference an uploaded file.
type FileInfo struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

// PendingDeletion maps to the pending_deletions collection: a project
// owner's deletion request awaiting admin approval.
type PendingDeletion struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID   string        `bson:"project_id" json:"project_id"`
	ProjectName string        `bson:"project_name" json:"project_name"`
	RequestedBy string        `bson:"requested_by" json:"requested_by"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
}

// ChatRoom maps to the chat_rooms collection. Exactly one project-type
// room exists per project and one shot-type room per shot (unique
// compound indexes); personal rooms hold exactly two participants.
type ChatRoom struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	ChatType     string        `bson:"chat_type"`
	Name         string        `bson:"name"`
	Participants []string      `bson:"participants"`
	ProjectID    bson.ObjectID `bson:"project_id,omitempty"`
	ShotID       bson.ObjectID `bson:"shot_id,omitempty"`
	CreatedBy    string        `bson:"created_by,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

// Message maps to the messages collection. ChatRoomID scopes room
// messages; the legacy ProjectID/ShotID fields scope the pre-room
// message endpoints. ReadBy never contains the author.
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	ChatRoomID     bson.ObjectID `bson:"chat_room_id,omitempty"`
	ProjectID      bson.ObjectID `bson:"project_id,omitempty"`
	ShotID         bson.ObjectID `bson:"shot_id,omitempty"`
	AuthorUsername string        `bson:"author_username"`
	AuthorName     string        `bson:"author_name,omitempty"`
	Content        string        `bson:"content"`
	FileID         bson.ObjectID `bson:"file_id,omitempty"`
	ReadBy         []string      `bson:"read_by"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}

// MessagePreview is the truncated last-message summary attached to a
// room listing.
type MessagePreview struct {
	Content        string    `json:"content"`
	AuthorUsername string    `json:"author_username"`
	AuthorName     string    `json:"author_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RoomView is a chat room as surfaced to API callers: string ids,
// per-viewer display name and unread count, last-message preview.
type RoomView struct {
	ID           string          `json:"id"`
	ChatType     string          `json:"chat_type"`
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name,omitempty"`
	Participants []string        `json:"participants"`
	ProjectID    string          `json:"project_id,omitempty"`
	ShotID       string          `json:"shot_id,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	LastMessage  *MessagePreview `json:"last_message,omitempty"`
	UnreadCount  int64           `json:"unread_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MessageView is a message as surfaced to API callers.
type MessageView struct {
	ID             string    `json:"id"`
	ChatRoomID     string    `json:"chat_room_id,omitempty"`
	ProjectID      string    `json:"project_id,omitempty"`
	ShotID         string    `json:"shot_id,omitempty"`
	AuthorUsername string    `json:"author_username"`
	AuthorName     string    `json:"author_name,omitempty"`
	Content        string    `json:"content"`
	FileID         string    `json:"file_id,omitempty"`
	File           *FileInfo `json:"file,omitempty"`
	ReadBy         []string  `json:"read_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// hexOrEmpty renders an ObjectID as hex, or "" for the zero id so
// omitempty drops unset back-references.
func hexOrEmpty(id bson.ObjectID) string {
	if id.IsZero() {
		return ""
	}
	return id.Hex()
}

// View converts a stored message into its API shape.
func (m *Message) View() *MessageView {
	readBy := m.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return &MessageView{
		ID:             m.ID.Hex(),
		ChatRoomID:     hexOrEmpty(m.ChatRoomID),
		ProjectID:      hexOrEmpty(m.ProjectID),
		ShotID:         hexOrEmpty(m.ShotID),
		AuthorUsername: m.AuthorUsername,
		AuthorName:     m.AuthorName,
		Content:        m.Content,
		FileID:         hexOrEmpty(m.FileID),
		ReadBy:         readBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// View converts a stored room into its API shape. Preview and unread
// enrichment happens in the chat store.
func (r *ChatRoom) View() *RoomView {
	participants := r.Participants
	if participants == nil {
		participants = []string{}
	}
	return &RoomView{
		ID:           r.ID.Hex(),
		ChatType:     r.ChatType,
		Name:         r.Name,
		Participants: participants,
		ProjectID:    hexOrEmpty(r.ProjectID),
		ShotID:       hexOrEmpty(r.ShotID),
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
