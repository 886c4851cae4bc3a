package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a Telegram user known to the bot
type User struct {
	ID        int64 // Telegram user ID
	StorageID int64 // ID of the storage (family) whose history the user shares
	// StorageRequestID is the storage the user asked to join, nil when there is no pending request
	StorageRequestID *int64
	Username         string
	FirstName        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewUser creates a user that owns its default storage
func NewUser(id int64, username, firstName string) User {
	now := time.Now().UTC()
	return User{
		ID:        id,
		StorageID: id,
		Username:  username,
		FirstName: firstName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DisplayName returns the best human readable name of the user
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "unknown"
}

// HasRequest reports whether the user waits for a family decision
func (u User) HasRequest() bool {
	return u.StorageRequestID != nil
}

// MediaType is the kind of media attached to a message
type MediaType string

const (
	MediaNone  MediaType = ""
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// AllMedia lists every media type served back to users
var AllMedia = []MediaType{MediaPhoto, MediaVideo}

// Message is one entry of a user's history
type Message struct {
	ID            uuid.UUID
	UserID        int64
	ChatID        int64
	MessageID     int
	MediaID       string // Telegram file ID used to send the media again
	MediaUniqueID string // Telegram file unique ID, stable across bots and re-uploads
	MediaType     MediaType
	MediaGroupID  string
	Raw           string // Original Telegram message as JSON
	CreatedAt     time.Time
}

// HasMedia reports whether the message references a photo or a video
func (m Message) HasMedia() bool {
	return m.MediaType != MediaNone && m.MediaID != ""
}

// Media is a stored media reference ready to be sent
type Media struct {
	FileID   string
	UniqueID string
	Type     MediaType
	UserID   int64
}
