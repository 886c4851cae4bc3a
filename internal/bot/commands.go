package bot

import (
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bartbot/internal/content"
)

const albumSize = 10

var errNotAdmin = errors.New("admin command from non-admin user")

// Commands lists the commands shown in the Telegram menu
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Say hello and show the food keyboard"},
	{Command: "count", Description: "How many photos and videos I remember"},
	{Command: "show", Description: "Show every photo and video"},
	{Command: "delete", Description: "Forget the photo you reply to"},
}

// handleStart greets the user and shows the food keyboard
func (b *Bot) handleStart(c *Context) error {
	text := content.Format(b.content.Messages.Start, "username", c.User.DisplayName())
	msg := tgbotapi.NewMessage(c.ChatID, text)
	msg.ReplyMarkup = b.content.Keyboard()
	b.sendMessage(msg)

	// Requests left unanswered are asked again, the text answer goes to the first one
	requests, err := c.Service.PendingRequests(c.Context())
	if err != nil {
		return fmt.Errorf("failed to list family requests: %w", err)
	}
	for i := len(requests) - 1; i >= 0; i-- {
		b.sendFamilyRequest(c.User.ID, requests[i])
	}
	return nil
}

func (b *Bot) handleCount(c *Context) error {
	count, err := c.Service.MediaCount(c.Context())
	if err != nil {
		return fmt.Errorf("failed to count media: %w", err)
	}
	if count == 0 {
		b.sendText(c.ChatID, b.content.Messages.Exceptions.NoPhotos)
		return nil
	}
	b.sendText(c.ChatID, content.Format(b.content.Messages.Count, "count", strconv.Itoa(count)))
	return nil
}

// handleShow sends the whole history in albums
func (b *Bot) handleShow(c *Context) error {
	media, err := c.Service.ListMedia(c.Context())
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}
	if len(media) == 0 {
		b.sendText(c.ChatID, b.content.Messages.Exceptions.NoPhotos)
		return nil
	}

	total := len(media)
	for start := 0; start < total; start += albumSize {
		end := min(start+albumSize, total)

		items := make([]interface{}, 0, end-start)
		for _, m := range media[start:end] {
			item, err := inputMedia(m)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if _, err := b.sendMediaGroup(tgbotapi.NewMediaGroup(c.ChatID, items)); err != nil {
			return fmt.Errorf("failed to send album: %w", err)
		}

		b.sendText(c.ChatID, content.Format(b.content.Messages.ShowPage,
			"from", strconv.Itoa(start+1),
			"to", strconv.Itoa(end),
			"total", strconv.Itoa(total),
		))
	}

	b.sendText(c.ChatID, b.content.Messages.SendPhoto.All.Random())
	return nil
}

// handleDelete forgets the media of the replied message
func (b *Bot) handleDelete(c *Context) error {
	target := c.Message.ReplyToMessage
	if target == nil || (len(target.Photo) == 0 && target.Video == nil) {
		b.sendText(c.ChatID, b.content.Messages.Delete.NoTarget)
		return nil
	}

	removed, err := c.Service.DeleteMedia(c.Context(), target)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	c.Logger.Info("Media deleted", zap.Int("removed", removed))
	b.sendText(c.ChatID, b.content.Messages.Delete.Done)
	return nil
}

func (b *Bot) requireAdmin(c *Context) error {
	if b.adminID == 0 || c.User.ID != b.adminID {
		return NewUserError(errNotAdmin, b.content.Messages.Exceptions.PermissionDenied)
	}
	return nil
}

// handleAdminLoadData imports the legacy archive into the admin's history
func (b *Bot) handleAdminLoadData(c *Context) error {
	if err := b.requireAdmin(c); err != nil {
		return err
	}
	if b.legacy == nil {
		return errors.New("legacy history loader is not configured")
	}

	messages, err := b.legacy.Load(c.Context())
	if err != nil {
		return err
	}
	imported, err := c.Service.ImportHistory(c.Context(), messages)
	if err != nil {
		return err
	}

	c.Logger.Info("Legacy history imported", zap.Int("archived", len(messages)), zap.Int("imported", imported))
	b.sendText(c.ChatID, content.Format(b.content.Messages.Loaded, "count", strconv.Itoa(imported)))
	return nil
}

// handleAdminFlushData removes the admin's own history
func (b *Bot) handleAdminFlushData(c *Context) error {
	if err := b.requireAdmin(c); err != nil {
		return err
	}

	removed, err := c.Service.FlushHistory(c.Context())
	if err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}
	c.Logger.Info("History flushed", zap.Int("removed", removed))
	b.sendText(c.ChatID, content.Format(b.content.Messages.Flushed, "count", strconv.Itoa(removed)))
	return nil
}
