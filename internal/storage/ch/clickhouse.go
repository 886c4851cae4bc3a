package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"bartbot/internal/models"
	"bartbot/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const userColumns = `id, storage_id, storage_request_id, username, first_name, created_at, updated_at`

type ClickHouseDB struct {
	conn clickhouse.Conn
}

var _ storage.Storage = (*ClickHouseDB)(nil)

// Options builds the connection options shared by the bot and the migration tool
func Options(host string, port int, database, user, password string, useTLS bool) *clickhouse.Options {
	options := &clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", host, port)},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}
	return options
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(Options(host, port, database, user, password, useTLS))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// Tables are managed via cmd/migrate (see migrations/clickhouse)
	return nil
}

// GetUser returns the latest version of a user
func (db *ClickHouseDB) GetUser(ctx context.Context, id int64) (models.User, error) {
	users, err := db.queryUsers(ctx, `SELECT `+userColumns+` FROM users FINAL WHERE id = ?`, id)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if len(users) == 0 {
		return models.User{}, storage.ErrUserNotFound
	}
	return users[0], nil
}

// CreateUser inserts a new user row
func (db *ClickHouseDB) CreateUser(ctx context.Context, user models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if err := db.insertUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser inserts a newer version of an existing user, ReplacingMergeTree keeps the latest one
func (db *ClickHouseDB) UpdateUser(ctx context.Context, user models.User) error {
	current, err := db.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	if !user.UpdatedAt.After(current.UpdatedAt) {
		user.UpdatedAt = current.UpdatedAt.Add(time.Millisecond)
	}
	if err := db.insertUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *ClickHouseDB) insertUser(ctx context.Context, user models.User) error {
	return db.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.StorageID, user.StorageRequestID, user.Username, user.FirstName, user.CreatedAt, user.UpdatedAt)
}

// ListParticipants returns all users of a storage
func (db *ClickHouseDB) ListParticipants(ctx context.Context, storageID int64) ([]models.User, error) {
	users, err := db.queryUsers(ctx, `SELECT `+userColumns+` FROM users FINAL WHERE storage_id = ? ORDER BY id`, storageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return users, nil
}

// ListRequests returns users waiting to join a storage
func (db *ClickHouseDB) ListRequests(ctx context.Context, storageID int64) ([]models.User, error) {
	users, err := db.queryUsers(ctx, `SELECT `+userColumns+` FROM users FINAL WHERE storage_request_id = ? ORDER BY id`, storageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return users, nil
}

func (db *ClickHouseDB) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.StorageID, &user.StorageRequestID, &user.Username, &user.FirstName,
			&user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// AppendMessage stores a history entry
func (db *ClickHouseDB) AppendMessage(ctx context.Context, msg models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := db.conn.Exec(ctx, `INSERT INTO messages
		(id, user_id, chat_id, message_id, media_id, media_unique_id, media_type, media_group_id, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, msg.ChatID, int64(msg.MessageID), msg.MediaID, msg.MediaUniqueID,
		string(msg.MediaType), msg.MediaGroupID, msg.Raw, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// RandomMedia returns one random media of the given users
func (db *ClickHouseDB) RandomMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (models.Media, error) {
	if len(userIDs) == 0 {
		return models.Media{}, storage.ErrNoMedia
	}
	media, err := db.queryMedia(ctx, `SELECT media_id, media_unique_id, media_type, user_id FROM messages
		WHERE has(?, user_id) AND has(?, media_type) AND media_id != ''
		ORDER BY rand() LIMIT 1`, userIDs, storage.MediaTypeStrings(types))
	if err != nil {
		return models.Media{}, fmt.Errorf("failed to get random media: %w", err)
	}
	if len(media) == 0 {
		return models.Media{}, storage.ErrNoMedia
	}
	return media[0], nil
}

// ListMedia returns all media of the given users, oldest first
func (db *ClickHouseDB) ListMedia(ctx context.Context, userIDs []int64, types []models.MediaType) ([]models.Media, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	media, err := db.queryMedia(ctx, `SELECT media_id, media_unique_id, media_type, user_id FROM messages
		WHERE has(?, user_id) AND has(?, media_type) AND media_id != ''
		ORDER BY created_at, id`, userIDs, storage.MediaTypeStrings(types))
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return media, nil
}

func (db *ClickHouseDB) queryMedia(ctx context.Context, query string, args ...any) ([]models.Media, error) {
	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var (
			item      models.Media
			mediaType string
		)
		if err := rows.Scan(&item.FileID, &item.UniqueID, &mediaType, &item.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		item.Type = models.MediaType(mediaType)
		media = append(media, item)
	}
	return media, rows.Err()
}

// CountMedia counts media of the given users
func (db *ClickHouseDB) CountMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	count, err := db.count(ctx, `SELECT count() FROM messages
		WHERE has(?, user_id) AND has(?, media_type) AND media_id != ''`, userIDs, storage.MediaTypeStrings(types))
	if err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return count, nil
}

// HasMedia reports whether any of the users already sent the media
func (db *ClickHouseDB) HasMedia(ctx context.Context, userIDs []int64, uniqueID string) (bool, error) {
	if len(userIDs) == 0 {
		return false, nil
	}
	count, err := db.count(ctx, `SELECT count() FROM messages
		WHERE has(?, user_id) AND media_unique_id = ? AND media_id != ''`, userIDs, uniqueID)
	if err != nil {
		return false, fmt.Errorf("failed to check media: %w", err)
	}
	return count > 0, nil
}

// DeleteMedia removes the media from the users' history
func (db *ClickHouseDB) DeleteMedia(ctx context.Context, userIDs []int64, uniqueID string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	where := `has(?, user_id) AND media_unique_id = ? AND media_id != ''`
	removed, err := db.deleteMessages(ctx, where, userIDs, uniqueID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete media: %w", err)
	}
	return removed, nil
}

// CountHistory counts every message sent by the user
func (db *ClickHouseDB) CountHistory(ctx context.Context, userID int64) (int, error) {
	count, err := db.count(ctx, `SELECT count() FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// DeleteHistory removes every message sent by the user
func (db *ClickHouseDB) DeleteHistory(ctx context.Context, userID int64) (int, error) {
	removed, err := db.deleteMessages(ctx, `user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}
	return removed, nil
}

// deleteMessages counts matching rows first since lightweight deletes report no affected rows
func (db *ClickHouseDB) deleteMessages(ctx context.Context, where string, args ...any) (int, error) {
	count, err := db.count(ctx, `SELECT count() FROM messages WHERE `+where, args...)
	if err != nil || count == 0 {
		return 0, err
	}
	if err := db.conn.Exec(ctx, `DELETE FROM messages WHERE `+where, args...); err != nil {
		return 0, err
	}
	return count, nil
}

func (db *ClickHouseDB) count(ctx context.Context, query string, args ...any) (int, error) {
	var count uint64
	if err := db.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
