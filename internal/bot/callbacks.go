package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	familyCallbackPrefix = "family:"
	actionConfirm        = "confirm"
	actionReject         = "reject"
)

// familyKeyboard creates the confirm/reject inline keyboard of a family request
func (b *Bot) familyKeyboard(requesterID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(requesterID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.content.ConfirmAnswers[0], familyCallbackPrefix+actionConfirm+":"+id),
			tgbotapi.NewInlineKeyboardButtonData(b.content.RejectAnswers[0], familyCallbackPrefix+actionReject+":"+id),
		),
	)
}

// handleFamilyCallback processes a confirm/reject button click
func (b *Bot) handleFamilyCallback(c *Context, data string) error {
	action, idStr, ok := strings.Cut(data, ":")
	if !ok {
		return fmt.Errorf("malformed family callback %q", data)
	}
	requesterID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed family callback %q: %w", data, err)
	}

	var confirm bool
	switch action {
	case actionConfirm:
		confirm = true
	case actionReject:
		confirm = false
	default:
		return fmt.Errorf("unknown family action %q", action)
	}

	b.removeKeyboard(c)
	return b.decideFamily(c, requesterID, confirm)
}

// removeKeyboard hides the inline keyboard of the clicked message
func (b *Bot) removeKeyboard(c *Context) {
	msg := c.Callback.Message
	if msg == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.sender.Request(edit); err != nil {
		c.Logger.Warn("Failed to remove inline keyboard", zap.Error(err))
	}
}
