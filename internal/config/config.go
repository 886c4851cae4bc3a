package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Storage drivers
const (
	DriverClickHouse = "clickhouse"
	DriverSQLite     = "sqlite"
	DriverMock       = "mock"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string
	AdminChatID   int64 // Receives error alerts and may run admin commands, 0 disables both
	Debug         bool
	ContentFile   string // Empty selects the embedded content

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	// Last path segment of the webhook endpoint, derived from the token unless set
	WebhookSecret string

	DBDriver   string
	SQLitePath string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// Conversation state persistence
	StateFile         string
	YaDiskToken       string // Empty keeps the state file local only
	YaDiskStatePath   string
	YaDiskLegacyPath  string
	StateSyncInterval time.Duration

	// Scheduled "feed me" messages
	FeedMeChatIDs  []int64
	FeedMeSchedule []string
	FeedMeLocation *time.Location
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %s", v)
		}
		config.AdminChatID = id
	}

	config.Debug = os.Getenv("DEBUG") == "true"
	config.ContentFile = os.Getenv("CONTENT_FILE")

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = strings.TrimSuffix(os.Getenv("WEBHOOK_URL"), "/")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
		config.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
		if config.WebhookSecret == "" {
			config.WebhookSecret = deriveWebhookSecret(config.TelegramToken)
		}
		if strings.ContainsAny(config.WebhookSecret, "/?#") {
			return nil, fmt.Errorf("WEBHOOK_SECRET must be a single path segment")
		}
	}
	config.Port = getEnv("PORT", "8080")

	config.DBDriver = getEnv("DB_DRIVER", DriverClickHouse)
	// Kept for compatibility with existing deployments
	if os.Getenv("USE_MOCK_DB") == "true" {
		config.DBDriver = DriverMock
	}

	switch config.DBDriver {
	case DriverClickHouse:
		if err := loadClickHouse(config); err != nil {
			return nil, err
		}
	case DriverSQLite:
		config.SQLitePath = getEnv("SQLITE_PATH", "bartbot.db")
	case DriverMock:
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q (expected clickhouse, sqlite or mock)", config.DBDriver)
	}

	config.StateFile = getEnv("STATE_FILE", "bartbot_state.db")
	config.YaDiskToken = os.Getenv("YADISK_TOKEN")
	config.YaDiskStatePath = getEnv("YADISK_STATE_PATH", "/bart-bot/bartbot_state.db")
	config.YaDiskLegacyPath = getEnv("YADISK_LEGACY_PATH", "/bart-bot-2.0/bart_bot_yandex_disk_storage_messages_data")

	interval, err := time.ParseDuration(getEnv("STATE_SYNC_INTERVAL", "60s"))
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid STATE_SYNC_INTERVAL: %q", os.Getenv("STATE_SYNC_INTERVAL"))
	}
	config.StateSyncInterval = interval

	if err := loadFeedMe(config); err != nil {
		return nil, err
	}

	return config, nil
}

func loadClickHouse(config *Config) error {
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost == "" {
		return fmt.Errorf("CLICKHOUSE_HOST is required when DB_DRIVER is clickhouse")
	}

	portStr := os.Getenv("CLICKHOUSE_PORT")
	if portStr == "" {
		config.ClickHousePort = 9000 // Default ClickHouse native port
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		config.ClickHousePort = port
	}

	config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
	config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	return nil
}

func loadFeedMe(config *Config) error {
	if v := os.Getenv("FEED_ME_CHAT_IDS"); v != "" {
		for _, idStr := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat ID in FEED_ME_CHAT_IDS: %s", idStr)
			}
			config.FeedMeChatIDs = append(config.FeedMeChatIDs, id)
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, spec := range strings.Split(getEnv("FEED_ME_SCHEDULE", "17 7 * * *;53 12 * * *;16 19 * * *"), ";") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid FEED_ME_SCHEDULE entry %q: %w", spec, err)
		}
		config.FeedMeSchedule = append(config.FeedMeSchedule, spec)
	}

	loc, err := time.LoadLocation(getEnv("FEED_ME_TIMEZONE", "Europe/Moscow"))
	if err != nil {
		return fmt.Errorf("invalid FEED_ME_TIMEZONE: %w", err)
	}
	config.FeedMeLocation = loc
	return nil
}

// deriveWebhookSecret hashes the bot token so the webhook path cannot be guessed
// without leaking the token itself
func deriveWebhookSecret(token string) string {
	sum := sha256.Sum256([]byte("webhook:" + token))
	return hex.EncodeToString(sum[:16])
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
