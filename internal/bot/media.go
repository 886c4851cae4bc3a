package bot

import (
	"errors"
	"fmt"

	"bartbot/internal/storage"
)

// handleMedia answers a received photo or video
func (b *Bot) handleMedia(c *Context) error {
	if groupID := c.Message.MediaGroupID; groupID != "" && !b.firstOfGroup(c.ChatID, groupID) {
		// Only the first item of an album is answered
		return nil
	}

	if c.Duplicate {
		b.sendText(c.ChatID, b.content.Messages.Exceptions.RepeatedPhoto)
		return nil
	}

	replies := b.content.Messages.ReceivePhoto
	if c.Message.MediaGroupID != "" {
		b.sendText(c.ChatID, replies.Group.Random())
		return nil
	}

	count, err := c.Service.MediaCount(c.Context())
	if err != nil {
		return fmt.Errorf("failed to count media: %w", err)
	}
	if count <= 1 {
		b.sendText(c.ChatID, replies.Initial.Random())
		return nil
	}
	b.sendText(c.ChatID, replies.Basic.Random())
	return nil
}

// firstOfGroup reports whether groupID is new in the chat and remembers it
func (b *Bot) firstOfGroup(chatID int64, groupID string) bool {
	b.mediaGroupsMu.Lock()
	defer b.mediaGroupsMu.Unlock()

	if b.mediaGroups[chatID] == groupID {
		return false
	}
	b.mediaGroups[chatID] = groupID
	return true
}

// handleFeed thanks for the food and sends a random media back
func (b *Bot) handleFeed(c *Context) error {
	media, err := c.Service.RandomMedia(c.Context())
	if errors.Is(err, storage.ErrNoMedia) {
		return NewUserError(err, b.content.Messages.Exceptions.NoPhotos)
	}
	if err != nil {
		return fmt.Errorf("failed to get random media: %w", err)
	}
	b.sendText(c.ChatID, b.content.Messages.ReceiveFood.Random())
	return b.sendMedia(c.ChatID, media, b.content.Messages.SendPhoto.Any.Random())
}

// handleRegular answers any other text
func (b *Bot) handleRegular(c *Context) error {
	b.sendText(c.ChatID, b.content.Messages.Regular.Random())
	return nil
}
