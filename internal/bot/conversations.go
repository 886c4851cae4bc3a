package bot

import (
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bartbot/internal/content"
	"bartbot/internal/models"
	"bartbot/internal/service"
	"bartbot/internal/storage"
)

const (
	commandFamily  = "family"
	keyRequesterID = "requester_id"
)

var errHiddenForward = errors.New("forwarded message hides its sender")

// isFamilyForward reports whether msg is a forwarded message of a user, not of a channel
func isFamilyForward(msg *tgbotapi.Message) bool {
	if msg.ForwardFromChat != nil {
		return false
	}
	return msg.ForwardFrom != nil || msg.ForwardSenderName != ""
}

// handleFamilyRequest asks the author of the forwarded message to share their storage
func (b *Bot) handleFamilyRequest(c *Context) error {
	exceptions := b.content.Messages.Exceptions
	from := c.Message.ForwardFrom
	if from == nil {
		return NewUserError(errHiddenForward, exceptions.ForwardHidden)
	}
	if from.IsBot {
		return NewUserError(fmt.Errorf("forwarded from bot %d", from.ID), exceptions.UserNotStartBot)
	}

	target, err := c.Service.RequestFamily(c.Context(), from.ID)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return NewUserError(err, exceptions.UserNotStartBot)
	case errors.Is(err, service.ErrAlreadyInFamily), errors.Is(err, service.ErrSelfRequest):
		return NewUserError(err, exceptions.AlreadyAddedToFamily)
	case err != nil:
		return fmt.Errorf("failed to request family: %w", err)
	}

	b.sendFamilyRequest(target.ID, c.User)

	c.Logger.Info("Family request sent", zap.Int64("target_id", target.ID), zap.Int64("storage_id", target.StorageID))
	b.sendText(c.ChatID, content.Format(b.content.Messages.Family.RequestSent, "username", target.DisplayName()))
	return nil
}

// sendFamilyRequest asks targetID to answer the request of requester, by text or keyboard
func (b *Bot) sendFamilyRequest(targetID int64, requester models.User) {
	b.setState(targetID, &ConversationState{
		Command: commandFamily,
		Data:    map[string]string{keyRequesterID: strconv.FormatInt(requester.ID, 10)},
	})

	request := tgbotapi.NewMessage(targetID, content.Format(b.content.Messages.Family.Request, "username", requester.DisplayName()))
	request.ReplyMarkup = b.familyKeyboard(requester.ID)
	b.sendMessage(request)
}

// handleFamilyAnswer processes a text answer to a pending family request
func (b *Bot) handleFamilyAnswer(c *Context, state *ConversationState) error {
	requesterID, err := strconv.ParseInt(state.Data[keyRequesterID], 10, 64)
	if err != nil {
		b.clearState(c.User.ID)
		return fmt.Errorf("invalid family conversation state: %w", err)
	}

	text := c.Message.Text
	switch {
	case b.content.IsConfirm(text):
		return b.decideFamily(c, requesterID, true)
	case b.content.IsReject(text):
		return b.decideFamily(c, requesterID, false)
	default:
		msg := tgbotapi.NewMessage(c.ChatID, b.content.Messages.Family.UnknownAnswer)
		msg.ReplyMarkup = b.familyKeyboard(requesterID)
		b.sendMessage(msg)
		return nil
	}
}

// decideFamily confirms or rejects the request of requesterID and notifies both sides
func (b *Bot) decideFamily(c *Context, requesterID int64, confirm bool) error {
	if state := b.getState(c.User.ID); state != nil && state.Data[keyRequesterID] == strconv.FormatInt(requesterID, 10) {
		b.clearState(c.User.ID)
	}

	decide := c.Service.RejectFamily
	notice := b.content.Messages.Family.Reject
	if confirm {
		decide = c.Service.ConfirmFamily
		notice = b.content.Messages.Family.Confirm
	}

	requester, err := decide(c.Context(), requesterID)
	if errors.Is(err, service.ErrNoRequest) || errors.Is(err, storage.ErrUserNotFound) {
		return NewUserError(err, b.content.Messages.Exceptions.Default)
	}
	if err != nil {
		return fmt.Errorf("failed to decide family request: %w", err)
	}

	c.Logger.Info("Family request decided", zap.Int64("requester_id", requester.ID), zap.Bool("confirmed", confirm))
	b.sendText(c.ChatID, notice)
	b.sendText(requester.ID, notice)
	return nil
}
