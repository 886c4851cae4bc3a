package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bartbot/internal/models"
	"bartbot/internal/service"
	"bartbot/internal/storage"
)

// Context carries everything a handler needs for one update.
// Middlewares fill it in order: logger, session, user, service, recorded history entry.
type Context struct {
	ctx      context.Context
	Update   tgbotapi.Update
	Message  *tgbotapi.Message
	Callback *tgbotapi.CallbackQuery
	From     *tgbotapi.User
	ChatID   int64

	Logger  *zap.Logger
	DB      storage.Storage
	User    models.User
	NewUser bool
	Service *service.Service

	Record    models.Message
	Duplicate bool
}

// Context returns the request context of the update
func (c *Context) Context() context.Context {
	return c.ctx
}

// HandlerFunc handles one update
type HandlerFunc func(c *Context) error

// Middleware wraps a handler
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that the first middleware runs outermost
func Chain(h HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func newContext(ctx context.Context, update tgbotapi.Update) *Context {
	c := &Context{ctx: ctx, Update: update}
	switch {
	case update.Message != nil:
		c.Message = update.Message
		c.From = update.Message.From
		c.ChatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		c.Callback = update.CallbackQuery
		c.From = update.CallbackQuery.From
		if update.CallbackQuery.Message != nil {
			c.ChatID = update.CallbackQuery.Message.Chat.ID
		}
	}
	return c
}

func (b *Bot) withLogging(next HandlerFunc) HandlerFunc {
	return func(c *Context) error {
		c.Logger = b.logger.With(
			zap.String("trace_id", uuid.NewString()),
			zap.Int("update_id", c.Update.UpdateID),
			zap.Int64("chat_id", c.ChatID),
		)
		if c.From != nil {
			c.Logger = c.Logger.With(zap.Int64("user_id", c.From.ID), zap.String("username", c.From.UserName))
		}

		start := time.Now()
		err := next(c)
		c.Logger.Debug("Update handled", zap.Duration("took", time.Since(start)), zap.Bool("failed", err != nil))
		return err
	}
}

func (b *Bot) withRecover(next HandlerFunc) HandlerFunc {
	return func(c *Context) (err error) {
		// Recover from panics to prevent bot crashes
		defer func() {
			if r := recover(); r != nil {
				c.Logger.Error("Recovered from panic in handler", zap.Any("panic", r), zap.Stack("stack"))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return next(c)
	}
}

func (b *Bot) withSession(next HandlerFunc) HandlerFunc {
	return func(c *Context) error {
		ctx, cancel := context.WithTimeout(c.ctx, b.sessionTimeout)
		defer cancel()

		c.ctx = ctx
		c.DB = b.db
		return next(c)
	}
}

func (b *Bot) withUser(next HandlerFunc) HandlerFunc {
	return func(c *Context) error {
		if c.From == nil {
			// Channel posts and other sender-less updates
			return nil
		}

		user, created, err := service.ResolveUser(c.ctx, c.DB, c.From)
		if err != nil {
			return fmt.Errorf("failed to resolve user: %w", err)
		}
		if created {
			c.Logger.Info("New user registered")
		}
		c.User = user
		c.NewUser = created
		return next(c)
	}
}

func (b *Bot) withService(next HandlerFunc) HandlerFunc {
	return func(c *Context) error {
		c.Service = service.New(c.DB, c.User)
		return next(c)
	}
}

func (b *Bot) withHistory(next HandlerFunc) HandlerFunc {
	return func(c *Context) error {
		if c.Message == nil || isFamilyForward(c.Message) {
			return next(c)
		}

		record, duplicate, err := c.Service.RecordHistory(c.ctx, c.Message)
		if err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}
		c.Record = record
		c.Duplicate = duplicate
		return next(c)
	}
}
