// Package sqlite implements storage.Storage on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"bartbot/internal/models"
	"bartbot/internal/storage"
	"bartbot/migrations"
)

type userRow struct {
	ID               int64         `db:"id"`
	StorageID        int64         `db:"storage_id"`
	StorageRequestID sql.NullInt64 `db:"storage_request_id"`
	Username         string        `db:"username"`
	FirstName        string        `db:"first_name"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

func (r userRow) model() models.User {
	user := models.User{
		ID:        r.ID,
		StorageID: r.StorageID,
		Username:  r.Username,
		FirstName: r.FirstName,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.StorageRequestID.Valid {
		id := r.StorageRequestID.Int64
		user.StorageRequestID = &id
	}
	return user
}

type mediaRow struct {
	FileID    string `db:"media_id"`
	UniqueID  string `db:"media_unique_id"`
	MediaType string `db:"media_type"`
	UserID    int64  `db:"user_id"`
}

// SQLiteDB stores users and history in a local SQLite file
type SQLiteDB struct {
	db *sqlx.DB
}

var _ storage.Storage = (*SQLiteDB)(nil)

// NewSQLiteDB opens (creating if needed) the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Initialize applies the embedded migrations
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	return migrations.Up(ctx, s.db.DB, "sqlite")
}

func (s *SQLiteDB) GetUser(ctx context.Context, id int64) (models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return row.model(), nil
}

func (s *SQLiteDB) CreateUser(ctx context.Context, user models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users
		(id, storage_id, storage_request_id, username, first_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.StorageID, nullID(user.StorageRequestID), user.Username, user.FirstName, user.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SQLiteDB) UpdateUser(ctx context.Context, user models.User) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users
		SET storage_id = ?, storage_request_id = ?, username = ?, first_name = ?, updated_at = ?
		WHERE id = ?`,
		user.StorageID, nullID(user.StorageRequestID), user.Username, user.FirstName, time.Now().UTC(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func (s *SQLiteDB) ListParticipants(ctx context.Context, storageID int64) ([]models.User, error) {
	users, err := s.selectUsers(ctx, `SELECT * FROM users WHERE storage_id = ? ORDER BY id`, storageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return users, nil
}

func (s *SQLiteDB) ListRequests(ctx context.Context, storageID int64) ([]models.User, error) {
	users, err := s.selectUsers(ctx, `SELECT * FROM users WHERE storage_request_id = ? ORDER BY id`, storageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return users, nil
}

func (s *SQLiteDB) selectUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.model())
	}
	return users, nil
}

func (s *SQLiteDB) AppendMessage(ctx context.Context, msg models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO messages
		(id, user_id, chat_id, message_id, media_id, media_unique_id, media_type, media_group_id, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.UserID, msg.ChatID, msg.MessageID, msg.MediaID, msg.MediaUniqueID,
		string(msg.MediaType), msg.MediaGroupID, msg.Raw, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (s *SQLiteDB) RandomMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (models.Media, error) {
	if len(userIDs) == 0 {
		return models.Media{}, storage.ErrNoMedia
	}
	media, err := s.selectMedia(ctx, `SELECT media_id, media_unique_id, media_type, user_id FROM messages
		WHERE user_id IN (?) AND media_type IN (?) AND media_id != ''
		ORDER BY RANDOM() LIMIT 1`, userIDs, storage.MediaTypeStrings(types))
	if err != nil {
		return models.Media{}, fmt.Errorf("failed to get random media: %w", err)
	}
	if len(media) == 0 {
		return models.Media{}, storage.ErrNoMedia
	}
	return media[0], nil
}

func (s *SQLiteDB) ListMedia(ctx context.Context, userIDs []int64, types []models.MediaType) ([]models.Media, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	media, err := s.selectMedia(ctx, `SELECT media_id, media_unique_id, media_type, user_id FROM messages
		WHERE user_id IN (?) AND media_type IN (?) AND media_id != ''
		ORDER BY created_at, rowid`, userIDs, storage.MediaTypeStrings(types))
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return media, nil
}

func (s *SQLiteDB) selectMedia(ctx context.Context, query string, args ...any) ([]models.Media, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	var rows []mediaRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	media := make([]models.Media, 0, len(rows))
	for _, r := range rows {
		media = append(media, models.Media{
			FileID:   r.FileID,
			UniqueID: r.UniqueID,
			Type:     models.MediaType(r.MediaType),
			UserID:   r.UserID,
		})
	}
	return media, nil
}

func (s *SQLiteDB) CountMedia(ctx context.Context, userIDs []int64, types []models.MediaType) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	count, err := s.count(ctx, `SELECT COUNT(*) FROM messages
		WHERE user_id IN (?) AND media_type IN (?) AND media_id != ''`, userIDs, storage.MediaTypeStrings(types))
	if err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return count, nil
}

func (s *SQLiteDB) HasMedia(ctx context.Context, userIDs []int64, uniqueID string) (bool, error) {
	if len(userIDs) == 0 {
		return false, nil
	}
	count, err := s.count(ctx, `SELECT COUNT(*) FROM messages
		WHERE user_id IN (?) AND media_unique_id = ? AND media_id != ''`, userIDs, uniqueID)
	if err != nil {
		return false, fmt.Errorf("failed to check media: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteDB) DeleteMedia(ctx context.Context, userIDs []int64, uniqueID string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	removed, err := s.exec(ctx, `DELETE FROM messages
		WHERE user_id IN (?) AND media_unique_id = ? AND media_id != ''`, userIDs, uniqueID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete media: %w", err)
	}
	return removed, nil
}

func (s *SQLiteDB) CountHistory(ctx context.Context, userID int64) (int, error) {
	count, err := s.count(ctx, `SELECT COUNT(*) FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

func (s *SQLiteDB) DeleteHistory(ctx context.Context, userID int64) (int, error) {
	removed, err := s.exec(ctx, `DELETE FROM messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}
	return removed, nil
}

func (s *SQLiteDB) count(ctx context.Context, query string, args ...any) (int, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteDB) exec(ctx context.Context, query string, args ...any) (int, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the database file
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
