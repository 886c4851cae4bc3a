package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bartbot/internal/bot"
	"bartbot/internal/config"
	"bartbot/internal/content"
	"bartbot/internal/models"
	"bartbot/internal/persistence"
	"bartbot/internal/scheduler"
	"bartbot/internal/storage/stubs"
)

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	if cfg.FeedMeLocation == nil {
		cfg.FeedMeLocation = time.UTC
	}
	a := &App{config: cfg, logger: zap.NewNop()}
	t.Cleanup(func() { _ = a.close() })
	return a
}

func TestApp_InitContent(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	require.NoError(t, a.initContent())
	assert.Len(t, a.content.Buttons, 9)

	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buttons: [a]"), 0o600))

	a = newTestApp(t, &config.Config{ContentFile: path})
	assert.Error(t, a.initContent())
}

func TestApp_InitDatabase(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"mock", &config.Config{DBDriver: config.DriverMock}},
		{"sqlite", &config.Config{DBDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "bart.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, tt.cfg)
			require.NoError(t, a.initDatabase())
			assert.NotNil(t, a.db)
		})
	}
}

func TestApp_InitLocalStates(t *testing.T) {
	a := newTestApp(t, &config.Config{StateFile: filepath.Join(t.TempDir(), "state.db")})
	require.NoError(t, a.initStates())

	assert.Nil(t, a.synced)
	_, ok := a.states.(*persistence.BoltStore)
	assert.True(t, ok)
	require.NoError(t, a.states.Put(1, []byte("{}")))
}

func TestApp_InitScheduler(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	require.NoError(t, a.initScheduler())
	assert.Zero(t, a.cron.Entries())

	a = newTestApp(t, &config.Config{
		FeedMeChatIDs:  []int64{1},
		FeedMeSchedule: []string{"17 7 * * *", "53 12 * * *"},
	})
	require.NoError(t, a.initScheduler())
	assert.Equal(t, 2, a.cron.Entries())
}

// events is an ordered log shared by the fakes below
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, event)
}

func (e *events) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

// okClient answers every Bot API call with success
type okClient struct{}

func (okClient) Do(req *http.Request) (*http.Response, error) {
	body := `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Bart","username":"bart_bot"}}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

// gatedDB holds user lookups until gate is closed
type gatedDB struct {
	*stubs.MockDB
	gate   chan struct{}
	once   sync.Once
	events *events
}

func (g *gatedDB) GetUser(ctx context.Context, id int64) (models.User, error) {
	<-g.gate
	g.once.Do(func() { g.events.add("update handled") })
	return g.MockDB.GetUser(ctx, id)
}

type recordingStates struct {
	events *events
}

func (r *recordingStates) Put(userID int64, value []byte) error { return nil }

func (r *recordingStates) Delete(userID int64) error { return nil }

func (r *recordingStates) ForEach(fn func(int64, []byte) error) error { return nil }

func (r *recordingStates) Close() error {
	r.events.add("states closed")
	return nil
}

func TestApp_ShutdownWaitsForWebhookUpdates(t *testing.T) {
	log := &events{}
	db := &gatedDB{MockDB: stubs.NewMockDB(), gate: make(chan struct{}), events: log}
	states := &recordingStates{events: log}

	api, err := tgbotapi.NewBotAPIWithClient("token", tgbotapi.APIEndpoint, okClient{})
	require.NoError(t, err)
	c, err := content.Default()
	require.NoError(t, err)
	b, err := bot.NewBot(api, db, c, zap.NewNop(), bot.WithStateStore(states))
	require.NoError(t, err)

	a := &App{
		config:  &config.Config{WebhookMode: true, WebhookSecret: "s3cret"},
		logger:  zap.NewNop(),
		api:     api,
		content: c,
		db:      db,
		states:  states,
		bot:     b,
		cron:    scheduler.New(time.UTC, jobTimeout, zap.NewNop()),
	}
	a.initHTTPServer()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = a.server.Serve(ln) }()

	update := `{"update_id":1,"message":{"message_id":1,"from":{"id":7,"first_name":"Ann"},"chat":{"id":7,"type":"private"},"date":1700000000,"text":"hello"}}`
	resp, err := http.Post("http://"+ln.Addr().String()+bot.WebhookPath("s3cret"), "application/json", strings.NewReader(update))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	done := make(chan error, 1)
	go func() { done <- a.Shutdown() }()

	select {
	case <-done:
		t.Fatal("shutdown finished while an update was being handled")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, log.get())

	close(db.gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.Equal(t, []string{"update handled", "states closed"}, log.get())
}
