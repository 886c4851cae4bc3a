package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bartbot/internal/service"
)

// SendFeedMe sends a random media of each configured chat's storage with a "feed me" caption.
// Chat IDs are user IDs of private chats.
func (b *Bot) SendFeedMe(ctx context.Context) error {
	var errs []error
	for _, chatID := range b.feedMeChatIDs {
		if err := b.sendFeedMe(ctx, chatID); err != nil {
			b.logger.Warn("Failed to send feed me message", zap.Int64("chat_id", chatID), zap.Error(err))
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		b.logger.Info("Feed me message sent", zap.Int64("chat_id", chatID))
	}
	return errors.Join(errs...)
}

func (b *Bot) sendFeedMe(ctx context.Context, chatID int64) error {
	user, err := b.db.GetUser(ctx, chatID)
	if err != nil {
		return err
	}
	media, err := service.New(b.db, user).RandomMedia(ctx)
	if err != nil {
		return err
	}
	return b.sendMedia(chatID, media, b.content.Messages.FeedMe.Random())
}
