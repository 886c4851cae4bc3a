package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// SetCommands publishes the command menu
func (b *Bot) SetCommands() {
	if _, err := b.sender.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		b.logger.Warn("Failed to set bot commands", zap.Error(err))
	}
}

// Start starts the bot in polling mode and blocks until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	// Create update configuration
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	// Get updates channel
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	// Handle updates (blocks here)
	b.handleUpdates(ctx, updates)
	return nil
}

const webhookPathPrefix = "/telegram-webhook/"

// WebhookPath is the HTTP path receiving updates, secret keeps it unguessable
func WebhookPath(secret string) string {
	return webhookPathPrefix + secret
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL, secret string) error {
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	// Configure webhook
	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + WebhookPath(secret))
	if err != nil {
		return err
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.logger.Info("Bot configured for webhook mode")
	return nil
}

// Dispatch handles update in the background
func (b *Bot) Dispatch(update tgbotapi.Update) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.HandleUpdate(context.Background(), update)
	}()
}

// Wait blocks until every dispatched update is handled.
// Callers must stop dispatching first.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

// handleUpdates processes incoming updates from polling mode
func (b *Bot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// Shutdown must not cancel an update already being handled
			b.HandleUpdate(context.WithoutCancel(ctx), update)
		}
	}
}
