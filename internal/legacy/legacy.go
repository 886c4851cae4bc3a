// Package legacy reads the history archive of the previous flat-file storage:
// a JSON array of Telegram messages kept on Yandex Disk.
package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bartbot/internal/models"
	"bartbot/internal/service"
)

// Downloader fetches a remote file
type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Parse decodes the archive, keeping photo messages only, first occurrence of every photo wins
func Parse(data []byte) ([]tgbotapi.Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []tgbotapi.Message
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse legacy history: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	messages := make([]tgbotapi.Message, 0, len(raw))
	for i := range raw {
		_, uniqueID, mediaType := service.MediaOf(&raw[i])
		if mediaType != models.MediaPhoto {
			continue
		}
		if _, ok := seen[uniqueID]; ok {
			continue
		}
		seen[uniqueID] = struct{}{}
		messages = append(messages, raw[i])
	}
	return messages, nil
}

// Loader downloads and parses the archive
type Loader struct {
	remote Downloader
	path   string
}

// NewLoader creates a loader reading the archive at path
func NewLoader(remote Downloader, path string) *Loader {
	return &Loader{remote: remote, path: path}
}

// Load returns the archived photo messages
func (l *Loader) Load(ctx context.Context) ([]tgbotapi.Message, error) {
	data, err := l.remote.Download(ctx, l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to download legacy history: %w", err)
	}
	return Parse(data)
}
