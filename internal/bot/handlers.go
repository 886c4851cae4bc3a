package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// HandleUpdate runs one update through the middleware chain
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	c := newContext(ctx, update)
	if c.Message == nil && c.Callback == nil {
		return
	}

	if err := b.handler(c); err != nil {
		b.replyError(c, err)
	}
}

// route dispatches an update to the first matching handler
func (b *Bot) route(c *Context) error {
	if c.Callback != nil {
		return b.handleCallbackQuery(c)
	}

	message := c.Message
	if message.IsCommand() {
		// Any command interrupts an ongoing conversation
		b.clearState(c.User.ID)
		return b.handleCommand(c)
	}

	if message.ReplyToMessage != nil && b.content.IsDeleteTrigger(message.Text) {
		return b.handleDelete(c)
	}

	// Check if user is in a conversation
	if state := b.getState(c.User.ID); state != nil && message.Text != "" && !b.content.IsButton(message.Text) {
		return b.handleConversation(c, state)
	}

	switch {
	case isFamilyForward(message):
		return b.handleFamilyRequest(c)
	case c.Record.HasMedia():
		return b.handleMedia(c)
	case b.content.IsButton(message.Text):
		return b.handleFeed(c)
	case strings.TrimSpace(message.Text) != "":
		return b.handleRegular(c)
	}
	return nil
}

func (b *Bot) handleCommand(c *Context) error {
	switch c.Message.Command() {
	case "start", "help":
		return b.handleStart(c)
	case "count":
		return b.handleCount(c)
	case "show":
		return b.handleShow(c)
	case "delete":
		return b.handleDelete(c)
	case "admin_loaddata":
		return b.handleAdminLoadData(c)
	case "admin_flushdata":
		return b.handleAdminFlushData(c)
	default:
		return b.handleRegular(c)
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(c *Context) error {
	query := c.Callback

	// Answer the callback query to remove loading state
	if _, err := b.sender.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		c.Logger.Warn("Failed to answer callback query", zap.Error(err))
	}

	// Handle callback based on prefix
	data := query.Data
	if strings.HasPrefix(data, familyCallbackPrefix) {
		return b.handleFamilyCallback(c, strings.TrimPrefix(data, familyCallbackPrefix))
	}

	c.Logger.Warn("Unknown callback data", zap.String("callback_data", data))
	return nil
}

// handleConversation continues a multi-step flow
func (b *Bot) handleConversation(c *Context, state *ConversationState) error {
	switch state.Command {
	case commandFamily:
		return b.handleFamilyAnswer(c, state)
	default:
		c.Logger.Warn("Dropping unknown conversation", zap.String("command", state.Command))
		b.clearState(c.User.ID)
		return b.route(c)
	}
}

// replyError logs err and tells the user what went wrong
func (b *Bot) replyError(c *Context, err error) {
	logger := c.Logger
	if logger == nil {
		logger = b.logger
	}

	text, isUserError := userMessage(err, b.content.Messages.Exceptions.Default)
	if isUserError {
		logger.Info("Handler returned user error", zap.Error(err))
	} else {
		logger.Error("Failed to handle update", zap.Error(err))
	}

	if c.ChatID == 0 || text == "" {
		return
	}
	b.sendText(c.ChatID, text)
}
