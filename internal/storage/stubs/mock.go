package stubs

import (
	"context"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"bartbot/internal/models"
	"bartbot/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	messages []models.Message
}

var _ storage.Storage = (*MockDB)(nil)

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		users:    make(map[int64]models.User),
		messages: make([]models.Message, 0),
	}
}

// Initialize is a no-op, the mock starts empty
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

func (m *MockDB) GetUser(ctx context.Context, id int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (m *MockDB) CreateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *MockDB) UpdateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *MockDB) ListParticipants(ctx context.Context, storageID int64) ([]models.User, error) {
	return m.filterUsers(func(u models.User) bool { return u.StorageID == storageID }), nil
}

func (m *MockDB) ListRequests(ctx context.Context, storageID int64) ([]models.User, error) {
	return m.filterUsers(func(u models.User) bool {
		return u.StorageRequestID != nil && *u.StorageRequestID == storageID
	}), nil
}

func (m *MockDB) filterUsers(match func(models.User) bool) []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []models.User
	for _, u := range m.users {
		if match(u) {
			users = append(users, copyUser(u))
		}
	}

	// Sort by ID
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users
}

func (m *MockDB) AppendMessage(ctx context.Context, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MockDB) RandomMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (models.Media, error) {
	media := m.matchMedia(userIDs, types)
	if len(media) == 0 {
		return models.Media{}, storage.ErrNoMedia
	}
	return media[rand.IntN(len(media))], nil
}

func (m *MockDB) ListMedia(ctx context.Context, userIDs []int64, types []models.MediaType) ([]models.Media, error) {
	return m.matchMedia(userIDs, types), nil
}

func (m *MockDB) CountMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (int, error) {
	return len(m.matchMedia(userIDs, types)), nil
}

func (m *MockDB) matchMedia(userIDs []int64, types []models.MediaType) []models.Media {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(types) == 0 {
		types = models.AllMedia
	}

	var media []models.Media
	for _, msg := range m.messages {
		if !msg.HasMedia() || !slices.Contains(userIDs, msg.UserID) || !slices.Contains(types, msg.MediaType) {
			continue
		}
		media = append(media, models.Media{
			FileID:   msg.MediaID,
			UniqueID: msg.MediaUniqueID,
			Type:     msg.MediaType,
			UserID:   msg.UserID,
		})
	}
	return media
}

func (m *MockDB) HasMedia(ctx context.Context, userIDs []int64, uniqueID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, msg := range m.messages {
		if msg.HasMedia() && msg.MediaUniqueID == uniqueID && slices.Contains(userIDs, msg.UserID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockDB) DeleteMedia(ctx context.Context, userIDs []int64, uniqueID string) (int, error) {
	return m.deleteMessages(func(msg models.Message) bool {
		return msg.HasMedia() && msg.MediaUniqueID == uniqueID && slices.Contains(userIDs, msg.UserID)
	}), nil
}

func (m *MockDB) CountHistory(ctx context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, msg := range m.messages {
		if msg.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *MockDB) DeleteHistory(ctx context.Context, userID int64) (int, error) {
	return m.deleteMessages(func(msg models.Message) bool { return msg.UserID == userID }), nil
}

func (m *MockDB) deleteMessages(match func(models.Message) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.messages[:0]
	removed := 0
	for _, msg := range m.messages {
		if match(msg) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return removed
}

// Close is a no-op for mock database
func (m *MockDB) Close() error {
	return nil
}

func copyUser(u models.User) models.User {
	if u.StorageRequestID != nil {
		id := *u.StorageRequestID
		u.StorageRequestID = &id
	}
	return u
}
