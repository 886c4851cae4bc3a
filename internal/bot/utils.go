package bot

import (
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bartbot/internal/models"
)

// retryAfter returns the delay requested by a Telegram flood-control error
func (b *Bot) retryAfter(err error) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		return b.retryDelay(tgErr.RetryAfter), true
	}
	return 0, false
}

// send sends c, retrying once when Telegram asks to slow down
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.sender.Send(c)
	if delay, ok := b.retryAfter(err); ok {
		b.logger.Warn("Rate limited by Telegram, retrying", zap.Duration("delay", delay))
		time.Sleep(delay)
		msg, err = b.sender.Send(c)
	}
	return msg, err
}

func (b *Bot) sendMediaGroup(cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	msgs, err := b.sender.SendMediaGroup(cfg)
	if delay, ok := b.retryAfter(err); ok {
		b.logger.Warn("Rate limited by Telegram, retrying", zap.Duration("delay", delay))
		time.Sleep(delay)
		msgs, err = b.sender.SendMediaGroup(cfg)
	}
	return msgs, err
}

// sendMessage sends a text message and logs failures
func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", msg.ChatID))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// mediaConfig builds a send config for a stored media
func mediaConfig(chatID int64, media models.Media, caption string) (tgbotapi.Chattable, error) {
	switch media.Type {
	case models.MediaPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(media.FileID))
		photo.Caption = caption
		return photo, nil
	case models.MediaVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(media.FileID))
		video.Caption = caption
		return video, nil
	default:
		return nil, fmt.Errorf("unsupported media type %q", media.Type)
	}
}

// inputMedia builds an album item for a stored media
func inputMedia(media models.Media) (interface{}, error) {
	switch media.Type {
	case models.MediaPhoto:
		return tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(media.FileID)), nil
	case models.MediaVideo:
		return tgbotapi.NewInputMediaVideo(tgbotapi.FileID(media.FileID)), nil
	default:
		return nil, fmt.Errorf("unsupported media type %q", media.Type)
	}
}

func (b *Bot) sendMedia(chatID int64, media models.Media, caption string) error {
	cfg, err := mediaConfig(chatID, media, caption)
	if err != nil {
		return err
	}
	if _, err := b.send(cfg); err != nil {
		return fmt.Errorf("failed to send %s: %w", media.Type, err)
	}
	return nil
}
