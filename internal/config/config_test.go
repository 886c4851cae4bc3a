package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("CLICKHOUSE_HOST", "localhost")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.TelegramToken)
	assert.Equal(t, DriverClickHouse, cfg.DBDriver)
	assert.Equal(t, 9000, cfg.ClickHousePort)
	assert.Equal(t, "default", cfg.ClickHouseDatabase)
	assert.Equal(t, "default", cfg.ClickHouseUser)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "bartbot_state.db", cfg.StateFile)
	assert.Equal(t, time.Minute, cfg.StateSyncInterval)
	assert.Equal(t, []string{"17 7 * * *", "53 12 * * *", "16 19 * * *"}, cfg.FeedMeSchedule)
	assert.Equal(t, "Europe/Moscow", cfg.FeedMeLocation.String())
	assert.Empty(t, cfg.FeedMeChatIDs)
	assert.Zero(t, cfg.AdminChatID)
	assert.False(t, cfg.WebhookMode)
}

func TestLoadFromEnv_Full(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("ADMIN_CHAT_ID", "12345")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/data/bart.db")
	t.Setenv("WEBHOOK_MODE", "true")
	t.Setenv("WEBHOOK_URL", "https://bart.example.com/")
	t.Setenv("FEED_ME_CHAT_IDS", "1, -1002")
	t.Setenv("FEED_ME_SCHEDULE", "0 9 * * *; @hourly")
	t.Setenv("FEED_ME_TIMEZONE", "UTC")
	t.Setenv("STATE_SYNC_INTERVAL", "5m")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(12345), cfg.AdminChatID)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/data/bart.db", cfg.SQLitePath)
	assert.Equal(t, "https://bart.example.com", cfg.WebhookURL)
	assert.Len(t, cfg.WebhookSecret, 32)
	assert.NotContains(t, cfg.WebhookSecret, "token")
	assert.Equal(t, []int64{1, -1002}, cfg.FeedMeChatIDs)
	assert.Equal(t, []string{"0 9 * * *", "@hourly"}, cfg.FeedMeSchedule)
	assert.Equal(t, time.UTC, cfg.FeedMeLocation)
	assert.Equal(t, 5*time.Minute, cfg.StateSyncInterval)
}

func TestLoadFromEnv_WebhookSecret(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("DB_DRIVER", "mock")
	t.Setenv("WEBHOOK_MODE", "true")
	t.Setenv("WEBHOOK_URL", "https://bart.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	derived := cfg.WebhookSecret

	t.Setenv("TELEGRAM_BOT_TOKEN", "other-token")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.NotEqual(t, derived, cfg.WebhookSecret)

	t.Setenv("WEBHOOK_SECRET", "s3cret")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)

	t.Setenv("WEBHOOK_SECRET", "a/b")
	_, err = LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnv_MockAlias(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("USE_MOCK_DB", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverMock, cfg.DBDriver)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing token",
			env:  map[string]string{},
			want: "TELEGRAM_BOT_TOKEN is required",
		},
		{
			name: "missing clickhouse host",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t"},
			want: "CLICKHOUSE_HOST is required",
		},
		{
			name: "webhook without url",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "mock", "WEBHOOK_MODE": "true"},
			want: "WEBHOOK_URL is required",
		},
		{
			name: "unknown driver",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "postgres"},
			want: "unknown DB_DRIVER",
		},
		{
			name: "bad admin id",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "mock", "ADMIN_CHAT_ID": "admin"},
			want: "invalid ADMIN_CHAT_ID",
		},
		{
			name: "bad cron",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "mock", "FEED_ME_SCHEDULE": "every day"},
			want: "invalid FEED_ME_SCHEDULE",
		},
		{
			name: "bad timezone",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "mock", "FEED_ME_TIMEZONE": "Mars/Olympus"},
			want: "invalid FEED_ME_TIMEZONE",
		},
		{
			name: "bad chat id",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "mock", "FEED_ME_CHAT_IDS": "1,x"},
			want: "invalid chat ID in FEED_ME_CHAT_IDS",
		},
		{
			name: "bad sync interval",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "t", "DB_DRIVER": "mock", "STATE_SYNC_INTERVAL": "-1s"},
			want: "invalid STATE_SYNC_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"TELEGRAM_BOT_TOKEN", "CLICKHOUSE_HOST", "DB_DRIVER", "USE_MOCK_DB"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
