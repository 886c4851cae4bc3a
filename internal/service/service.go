// Package service implements the bot's operations on top of a storage session.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"bartbot/internal/models"
	"bartbot/internal/storage"
)

var (
	// ErrAlreadyInFamily is returned when the requester already shares the target's storage
	ErrAlreadyInFamily = errors.New("already in the same family")
	// ErrNoRequest is returned when a family decision has no matching pending request
	ErrNoRequest = errors.New("no pending family request")
	// ErrSelfRequest is returned when a user forwards their own message
	ErrSelfRequest = errors.New("cannot request own family")
)

// Service performs history and family operations on behalf of one user
type Service struct {
	db   storage.Storage
	user models.User
}

// New binds a service to the resolved user
func New(db storage.Storage, user models.User) *Service {
	return &Service{db: db, user: user}
}

// User returns the user the service acts for
func (s *Service) User() models.User {
	return s.user
}

// ResolveUser loads the Telegram user, creating it with its own storage when unknown.
// The returned flag is true for newly created users.
func ResolveUser(ctx context.Context, db storage.Storage, from *tgbotapi.User) (models.User, bool, error) {
	if from == nil {
		return models.User{}, false, errors.New("update has no sender")
	}

	user, err := db.GetUser(ctx, from.ID)
	if errors.Is(err, storage.ErrUserNotFound) {
		user = models.NewUser(from.ID, from.UserName, from.FirstName)
		if err := db.CreateUser(ctx, user); err != nil {
			return models.User{}, false, err
		}
		return user, true, nil
	}
	if err != nil {
		return models.User{}, false, err
	}

	if user.Username != from.UserName || user.FirstName != from.FirstName {
		user.Username = from.UserName
		user.FirstName = from.FirstName
		if err := db.UpdateUser(ctx, user); err != nil {
			return models.User{}, false, err
		}
	}
	return user, false, nil
}

// participantIDs returns IDs of every user sharing the storage of the bound user
func (s *Service) participantIDs(ctx context.Context) ([]int64, error) {
	users, err := s.db.ListParticipants(ctx, s.user.StorageID)
	if err != nil {
		return nil, err
	}
	ids := storage.ParticipantIDs(users)
	for _, id := range ids {
		if id == s.user.ID {
			return ids, nil
		}
	}
	return append(ids, s.user.ID), nil
}

// MediaOf returns the largest photo or the video attached to msg
func MediaOf(msg *tgbotapi.Message) (fileID, uniqueID string, mediaType models.MediaType) {
	if msg == nil {
		return "", "", models.MediaNone
	}
	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, size := range msg.Photo[1:] {
			if size.Width*size.Height >= largest.Width*largest.Height {
				largest = size
			}
		}
		return largest.FileID, largest.FileUniqueID, models.MediaPhoto
	}
	if msg.Video != nil {
		return msg.Video.FileID, msg.Video.FileUniqueID, models.MediaVideo
	}
	return "", "", models.MediaNone
}

// BuildMessage converts an incoming Telegram message into a history entry of userID
func BuildMessage(userID int64, msg *tgbotapi.Message) models.Message {
	fileID, uniqueID, mediaType := MediaOf(msg)
	entry := models.Message{
		ID:            uuid.New(),
		UserID:        userID,
		MessageID:     msg.MessageID,
		MediaID:       fileID,
		MediaUniqueID: uniqueID,
		MediaType:     mediaType,
		MediaGroupID:  msg.MediaGroupID,
		CreatedAt:     time.Now().UTC(),
	}
	if msg.Chat != nil {
		entry.ChatID = msg.Chat.ID
	}
	if msg.Date != 0 {
		entry.CreatedAt = msg.Time().UTC()
	}
	if raw, err := json.Marshal(msg); err == nil {
		entry.Raw = string(raw)
	}
	return entry
}

// RecordHistory stores msg in the user's history.
// Media already present in the storage is not stored again and reported as duplicate.
func (s *Service) RecordHistory(ctx context.Context, msg *tgbotapi.Message) (models.Message, bool, error) {
	entry := BuildMessage(s.user.ID, msg)
	if entry.HasMedia() {
		unlock := storageLocks.Lock(s.user.StorageID)
		defer unlock()

		ids, err := s.participantIDs(ctx)
		if err != nil {
			return entry, false, fmt.Errorf("failed to list participants: %w", err)
		}
		exists, err := s.db.HasMedia(ctx, ids, entry.MediaUniqueID)
		if err != nil {
			return entry, false, err
		}
		if exists {
			return entry, true, nil
		}
	}
	if err := s.db.AppendMessage(ctx, entry); err != nil {
		return entry, false, err
	}
	return entry, false, nil
}

// RandomMedia returns a random media of the storage, any type when none given
func (s *Service) RandomMedia(ctx context.Context, types ...models.MediaType) (models.Media, error) {
	ids, err := s.participantIDs(ctx)
	if err != nil {
		return models.Media{}, err
	}
	return s.db.RandomMedia(ctx, ids, types)
}

// MediaCount counts media of the storage
func (s *Service) MediaCount(ctx context.Context, types ...models.MediaType) (int, error) {
	ids, err := s.participantIDs(ctx)
	if err != nil {
		return 0, err
	}
	return s.db.CountMedia(ctx, ids, types)
}

// ListMedia returns all media of the storage, oldest first
func (s *Service) ListMedia(ctx context.Context) ([]models.Media, error) {
	ids, err := s.participantIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.db.ListMedia(ctx, ids, nil)
}

// DeleteMedia forgets the media attached to target in the whole storage
func (s *Service) DeleteMedia(ctx context.Context, target *tgbotapi.Message) (int, error) {
	_, uniqueID, mediaType := MediaOf(target)
	if mediaType == models.MediaNone {
		return 0, nil
	}
	ids, err := s.participantIDs(ctx)
	if err != nil {
		return 0, err
	}
	return s.db.DeleteMedia(ctx, ids, uniqueID)
}

// FlushHistory removes every message the user sent
func (s *Service) FlushHistory(ctx context.Context) (int, error) {
	return s.db.DeleteHistory(ctx, s.user.ID)
}

// ImportHistory appends messages with media to the user's history, skipping known media
func (s *Service) ImportHistory(ctx context.Context, messages []tgbotapi.Message) (int, error) {
	imported := 0
	for i := range messages {
		entry, duplicate, err := s.RecordHistory(ctx, &messages[i])
		if err != nil {
			return imported, fmt.Errorf("failed to import message %d: %w", messages[i].MessageID, err)
		}
		if !duplicate && entry.HasMedia() {
			imported++
		}
	}
	return imported, nil
}

// RequestFamily asks to join the storage of the target user
func (s *Service) RequestFamily(ctx context.Context, targetID int64) (models.User, error) {
	if targetID == s.user.ID {
		return models.User{}, ErrSelfRequest
	}
	target, err := s.db.GetUser(ctx, targetID)
	if err != nil {
		return models.User{}, err
	}
	if target.StorageID == s.user.StorageID {
		return target, ErrAlreadyInFamily
	}

	storageID := target.StorageID
	s.user.StorageRequestID = &storageID
	if err := s.db.UpdateUser(ctx, s.user); err != nil {
		return target, fmt.Errorf("failed to save family request: %w", err)
	}
	return target, nil
}

// ConfirmFamily moves the requester into the bound user's storage
func (s *Service) ConfirmFamily(ctx context.Context, requesterID int64) (models.User, error) {
	requester, err := s.pendingRequester(ctx, requesterID)
	if err != nil {
		return requester, err
	}
	requester.StorageID = s.user.StorageID
	requester.StorageRequestID = nil
	if err := s.db.UpdateUser(ctx, requester); err != nil {
		return requester, fmt.Errorf("failed to confirm family request: %w", err)
	}
	return requester, nil
}

// RejectFamily drops the requester's pending request
func (s *Service) RejectFamily(ctx context.Context, requesterID int64) (models.User, error) {
	requester, err := s.pendingRequester(ctx, requesterID)
	if err != nil {
		return requester, err
	}
	requester.StorageRequestID = nil
	if err := s.db.UpdateUser(ctx, requester); err != nil {
		return requester, fmt.Errorf("failed to reject family request: %w", err)
	}
	return requester, nil
}

// PendingRequests lists the users waiting to join the bound user's storage
func (s *Service) PendingRequests(ctx context.Context) ([]models.User, error) {
	users, err := s.db.ListRequests(ctx, s.user.StorageID)
	if err != nil {
		return nil, err
	}
	requests := users[:0]
	for _, u := range users {
		if u.ID != s.user.ID {
			requests = append(requests, u)
		}
	}
	return requests, nil
}

func (s *Service) pendingRequester(ctx context.Context, requesterID int64) (models.User, error) {
	requester, err := s.db.GetUser(ctx, requesterID)
	if err != nil {
		return models.User{}, err
	}
	if requester.StorageRequestID == nil || *requester.StorageRequestID != s.user.StorageID {
		return requester, ErrNoRequest
	}
	return requester, nil
}
