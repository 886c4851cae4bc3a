package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bartbot/internal/content"
	"bartbot/internal/storage"
)

const defaultSessionTimeout = 2 * time.Minute

// NewAPI connects to the Telegram Bot API
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// NewBot creates a Telegram bot on top of an API connection
func NewBot(api *tgbotapi.BotAPI, db storage.Storage, c *content.Content, logger *zap.Logger, opts ...Option) (*Bot, error) {
	b := newBot(api, db, c, logger, opts...)
	b.api = api
	if err := b.loadStates(); err != nil {
		return nil, err
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))
	return b, nil
}

func newBot(sender Sender, db storage.Storage, c *content.Content, logger *zap.Logger, opts ...Option) *Bot {
	b := &Bot{
		sender:         sender,
		db:             db,
		content:        c,
		logger:         logger,
		sessionTimeout: defaultSessionTimeout,
		retryDelay:     func(seconds int) time.Duration { return time.Duration(seconds+1) * time.Second },
		states:         make(map[int64]*ConversationState),
		mediaGroups:    make(map[int64]string),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.handler = Chain(b.route,
		b.withLogging,
		b.withRecover,
		b.withSession,
		b.withUser,
		b.withService,
		b.withHistory,
	)
	return b
}
