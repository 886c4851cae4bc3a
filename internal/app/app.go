package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bartbot/internal/bot"
	"bartbot/internal/config"
	"bartbot/internal/content"
	"bartbot/internal/legacy"
	"bartbot/internal/logging"
	"bartbot/internal/persistence"
	"bartbot/internal/persistence/yadisk"
	"bartbot/internal/scheduler"
	"bartbot/internal/storage"
	"bartbot/internal/storage/ch"
	"bartbot/internal/storage/sqlite"
	"bartbot/internal/storage/stubs"
)

const jobTimeout = time.Minute

// stateStore is a conversation state store owned by the application
type stateStore interface {
	bot.StateStore
	Close() error
}

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger

	api     *tgbotapi.BotAPI
	content *content.Content
	db      storage.Storage
	states  stateStore
	synced  *persistence.Synced
	yadisk  *yadisk.Client
	bot     *bot.Bot
	cron    *scheduler.Scheduler
	server  *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}
	if cfg.YaDiskToken != "" {
		app.yadisk = yadisk.New(cfg.YaDiskToken)
	}

	logger.Info("Starting Bart Photos Bot...", zap.String("db_driver", cfg.DBDriver), zap.Bool("webhook_mode", cfg.WebhookMode))

	steps := []func() error{
		app.initAPI,
		app.initContent,
		app.initDatabase,
		app.initStates,
		app.initBot,
		app.initScheduler,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			app.close()
			return nil, err
		}
	}
	app.initHTTPServer()

	return app, nil
}

// initAPI connects to Telegram and routes error logs to the admin chat
func (a *App) initAPI() error {
	api, err := bot.NewAPI(a.config.TelegramToken, a.config.Debug)
	if err != nil {
		return err
	}
	a.api = api

	if adminID := a.config.AdminChatID; adminID != 0 {
		core := logging.NewAlertCore(zapcore.ErrorLevel, func(text string) error {
			_, err := api.Send(tgbotapi.NewMessage(adminID, text))
			return err
		})
		a.logger = logging.Attach(a.logger, core)
		a.logger.Info("Error alerts enabled", zap.Int64("admin_chat_id", adminID))
	}
	return nil
}

func (a *App) initContent() error {
	var (
		c   *content.Content
		err error
	)
	if a.config.ContentFile != "" {
		c, err = content.Load(a.config.ContentFile)
	} else {
		c, err = content.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}
	a.content = c
	return nil
}

// initDatabase initializes the database connection
func (a *App) initDatabase() error {
	var db storage.Storage
	switch a.config.DBDriver {
	case config.DriverMock:
		a.logger.Info("Using mock database")
		db = stubs.NewMockDB()
	case config.DriverSQLite:
		a.logger.Info("Opening SQLite database", zap.String("path", a.config.SQLitePath))
		sqliteDB, err := sqlite.NewSQLiteDB(a.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB
	default:
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	}
	a.db = db

	// Initialize database schema
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")
	return nil
}

// initStates opens the conversation state file, mirrored to Yandex Disk when a token is set
func (a *App) initStates() error {
	if a.yadisk == nil {
		store, err := persistence.OpenBolt(a.config.StateFile)
		if err != nil {
			return fmt.Errorf("failed to open state file: %w", err)
		}
		a.states = store
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	synced, err := persistence.OpenSynced(ctx, a.config.StateFile, a.yadisk, a.config.YaDiskStatePath, a.logger)
	if err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}
	a.states = synced
	a.synced = synced
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	opts := []bot.Option{
		bot.WithAdmin(a.config.AdminChatID),
		bot.WithFeedMeChats(a.config.FeedMeChatIDs),
		bot.WithStateStore(a.states),
	}
	if a.yadisk != nil {
		opts = append(opts, bot.WithHistoryLoader(legacy.NewLoader(a.yadisk, a.config.YaDiskLegacyPath)))
	}

	telegramBot, err := bot.NewBot(a.api, a.db, a.content, a.logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	telegramBot.SetCommands()

	a.bot = telegramBot
	return nil
}

func (a *App) initScheduler() error {
	a.cron = scheduler.New(a.config.FeedMeLocation, jobTimeout, a.logger)
	if len(a.config.FeedMeChatIDs) == 0 {
		a.logger.Info("No feed me chats configured, scheduler is idle")
		return nil
	}
	if err := a.cron.Add("feed_me", a.config.FeedMeSchedule, a.bot.SendFeedMe); err != nil {
		return fmt.Errorf("failed to schedule feed me: %w", err)
	}
	return nil
}

// initHTTPServer initializes the HTTP server for health checks and webhook
func (a *App) initHTTPServer() {
	mux := http.NewServeMux()
	bot.NewHTTPServer(a.bot, a.config.WebhookMode, a.config.WebhookSecret).RegisterRoutes(mux)

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	syncDone := make(chan struct{})
	if a.synced != nil {
		go func() {
			defer close(syncDone)
			a.synced.Run(ctx, a.config.StateSyncInterval)
		}()
	} else {
		close(syncDone)
	}

	a.cron.Start()

	// Start bot in appropriate mode
	pollDone := make(chan struct{})
	if a.config.WebhookMode {
		close(pollDone)
		if err := a.bot.StartWebhook(a.config.WebhookURL, a.config.WebhookSecret); err != nil {
			stop()
			a.stopIntake()
			<-syncDone
			a.close()
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint")
	} else {
		go func() {
			defer close(pollDone)
			if err := a.bot.Start(ctx); err != nil {
				a.logger.Error("Polling stopped", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	<-ctx.Done()
	a.logger.Info("Shutting down...")

	<-pollDone
	<-syncDone
	return a.Shutdown()
}

// stopIntake stops accepting updates and waits for those being handled
func (a *App) stopIntake() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	a.bot.Wait()
}

// Shutdown gracefully shuts down the application.
// Updates stop first, then the state is flushed and the stores are closed.
func (a *App) Shutdown() error {
	a.stopIntake()

	err := a.close()
	if err == nil {
		a.logger.Info("Shutdown complete")
	}
	_ = a.logger.Sync()
	return err
}

// close releases everything opened by New, in reverse order
func (a *App) close() error {
	var errs []error
	if a.cron != nil {
		a.cron.Stop()
	}
	// Closing the synced store uploads the last state
	if a.states != nil {
		if err := a.states.Close(); err != nil {
			a.logger.Error("Error closing state file", zap.Error(err))
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
