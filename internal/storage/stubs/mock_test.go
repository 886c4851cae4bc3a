package stubs

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bartbot/internal/models"
	"bartbot/internal/storage"
)

func mediaMessage(userID int64, uniqueID string, mediaType models.MediaType) models.Message {
	return models.Message{
		ID:            uuid.New(),
		UserID:        userID,
		ChatID:        userID,
		MediaID:       "file-" + uniqueID,
		MediaUniqueID: uniqueID,
		MediaType:     mediaType,
	}
}

func TestMockDB_Users(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	_, err := db.GetUser(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	require.NoError(t, db.CreateUser(ctx, models.NewUser(1, "alice", "Alice")))
	require.NoError(t, db.CreateUser(ctx, models.NewUser(2, "bob", "Bob")))

	user, err := db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.StorageID)
	assert.Equal(t, "alice", user.Username)

	// Bob asks to join Alice's storage
	bob, err := db.GetUser(ctx, 2)
	require.NoError(t, err)
	target := int64(1)
	bob.StorageRequestID = &target
	require.NoError(t, db.UpdateUser(ctx, bob))

	requests, err := db.ListRequests(ctx, 1)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, int64(2), requests[0].ID)

	// Confirm
	bob.StorageID = 1
	bob.StorageRequestID = nil
	require.NoError(t, db.UpdateUser(ctx, bob))

	participants, err := db.ListParticipants(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, storage.ParticipantIDs(participants))

	requests, err = db.ListRequests(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, requests)

	assert.ErrorIs(t, db.UpdateUser(ctx, models.NewUser(42, "", "")), storage.ErrUserNotFound)
}

func TestMockDB_UserIsCopied(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	target := int64(5)
	user := models.NewUser(1, "alice", "")
	user.StorageRequestID = &target
	require.NoError(t, db.CreateUser(ctx, user))

	target = 6
	stored, err := db.GetUser(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored.StorageRequestID)
	assert.Equal(t, int64(5), *stored.StorageRequestID)
}

func TestMockDB_Media(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	require.NoError(t, db.AppendMessage(ctx, mediaMessage(1, "a", models.MediaPhoto)))
	require.NoError(t, db.AppendMessage(ctx, mediaMessage(1, "b", models.MediaVideo)))
	require.NoError(t, db.AppendMessage(ctx, mediaMessage(2, "c", models.MediaPhoto)))
	require.NoError(t, db.AppendMessage(ctx, models.Message{ID: uuid.New(), UserID: 1, ChatID: 1}))

	count, err := db.CountMedia(ctx, []int64{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = db.CountMedia(ctx, []int64{1, 2}, []models.MediaType{models.MediaPhoto})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	history, err := db.CountHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, history)

	media, err := db.RandomMedia(ctx, []int64{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", media.UniqueID)
	assert.Equal(t, "file-c", media.FileID)

	_, err = db.RandomMedia(ctx, []int64{3}, nil)
	assert.ErrorIs(t, err, storage.ErrNoMedia)

	list, err := db.ListMedia(ctx, []int64{1, 2}, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].UniqueID)

	has, err := db.HasMedia(ctx, []int64{1}, "c")
	require.NoError(t, err)
	assert.False(t, has)

	has, err = db.HasMedia(ctx, []int64{1, 2}, "c")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMockDB_Delete(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	require.NoError(t, db.AppendMessage(ctx, mediaMessage(1, "a", models.MediaPhoto)))
	require.NoError(t, db.AppendMessage(ctx, mediaMessage(1, "a", models.MediaPhoto)))
	require.NoError(t, db.AppendMessage(ctx, mediaMessage(2, "b", models.MediaPhoto)))

	removed, err := db.DeleteMedia(ctx, []int64{1}, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = db.DeleteMedia(ctx, []int64{1}, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = db.DeleteHistory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := db.CountMedia(ctx, []int64{1, 2}, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}
