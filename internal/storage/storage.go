package storage

import (
	"context"
	"errors"

	"bartbot/internal/models"
)

var (
	// ErrUserNotFound is returned when no user with the given ID exists
	ErrUserNotFound = errors.New("user not found")
	// ErrNoMedia is returned when a history has no media of the requested types
	ErrNoMedia = errors.New("no media found")
)

// Storage defines the interface for data storage operations
type Storage interface {
	// User operations
	GetUser(ctx context.Context, id int64) (models.User, error)
	CreateUser(ctx context.Context, user models.User) error
	UpdateUser(ctx context.Context, user models.User) error

	// ListParticipants returns users whose StorageID equals storageID
	ListParticipants(ctx context.Context, storageID int64) ([]models.User, error)
	// ListRequests returns users waiting to join storageID
	ListRequests(ctx context.Context, storageID int64) ([]models.User, error)

	// History operations
	AppendMessage(ctx context.Context, msg models.Message) error

	// RandomMedia returns a random media sent by any of userIDs.
	// Returns ErrNoMedia when nothing matches.
	RandomMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (models.Media, error)
	// ListMedia returns media sent by any of userIDs, oldest first
	ListMedia(ctx context.Context, userIDs []int64, types []models.MediaType) ([]models.Media, error)
	CountMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (int, error)
	HasMedia(ctx context.Context, userIDs []int64, uniqueID string) (bool, error)
	// DeleteMedia removes every history entry of userIDs referencing uniqueID and returns how many were removed
	DeleteMedia(ctx context.Context, userIDs []int64, uniqueID string) (int, error)

	CountHistory(ctx context.Context, userID int64) (int, error)
	DeleteHistory(ctx context.Context, userID int64) (int, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// ParticipantIDs returns IDs of the given users
func ParticipantIDs(users []models.User) []int64 {
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// MediaTypeStrings converts media types to their string form for query parameters
func MediaTypeStrings(types []models.MediaType) []string {
	if len(types) == 0 {
		types = models.AllMedia
	}
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
