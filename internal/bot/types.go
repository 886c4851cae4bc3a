package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"bartbot/internal/content"
	"bartbot/internal/storage"
)

// Sender is the part of the Telegram API the handlers use
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// StateStore persists conversation states between restarts
type StateStore interface {
	Put(userID int64, value []byte) error
	Delete(userID int64) error
	ForEach(fn func(userID int64, value []byte) error) error
}

// HistoryLoader provides the archive imported by /admin_loaddata
type HistoryLoader interface {
	Load(ctx context.Context) ([]tgbotapi.Message, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api     *tgbotapi.BotAPI // nil in tests, only used for receiving updates
	sender  Sender
	db      storage.Storage
	content *content.Content
	logger  *zap.Logger

	adminID        int64
	feedMeChatIDs  []int64
	legacy         HistoryLoader
	stateStore     StateStore
	sessionTimeout time.Duration
	retryDelay     func(seconds int) time.Duration

	states   map[int64]*ConversationState
	statesMu sync.RWMutex

	// Last media group seen per chat, only its first item is answered
	mediaGroups   map[int64]string
	mediaGroupsMu sync.Mutex

	handler  HandlerFunc
	inflight sync.WaitGroup
}

// ConversationState tracks the state of multi-step flows
type ConversationState struct {
	Command string            `json:"command"`
	Data    map[string]string `json:"data,omitempty"`
}

// Option configures optional bot features
type Option func(*Bot)

// WithAdmin enables admin commands and error alerts for chatID
func WithAdmin(chatID int64) Option {
	return func(b *Bot) { b.adminID = chatID }
}

// WithFeedMeChats sets the chats receiving scheduled photos
func WithFeedMeChats(chatIDs []int64) Option {
	return func(b *Bot) { b.feedMeChatIDs = chatIDs }
}

// WithHistoryLoader enables /admin_loaddata
func WithHistoryLoader(loader HistoryLoader) Option {
	return func(b *Bot) { b.legacy = loader }
}

// WithStateStore persists conversation states
func WithStateStore(store StateStore) Option {
	return func(b *Bot) { b.stateStore = store }
}

// WithSessionTimeout limits the time spent on one update
func WithSessionTimeout(d time.Duration) Option {
	return func(b *Bot) { b.sessionTimeout = d }
}
