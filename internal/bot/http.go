package bot

import (
	"encoding/json"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// HTTPServer serves health checks and the Telegram webhook
type HTTPServer struct {
	bot         *Bot
	webhookMode bool
	secret      string
}

// NewHTTPServer creates the HTTP routes of the bot.
// The webhook route exists only in webhook mode, under WebhookPath(secret).
func NewHTTPServer(bot *Bot, webhookMode bool, secret string) *HTTPServer {
	return &HTTPServer{
		bot:         bot,
		webhookMode: webhookMode,
		secret:      secret,
	}
}

// RegisterRoutes registers all HTTP routes
func (hs *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", hs.handleHealth)
	if hs.webhookMode && hs.secret != "" {
		mux.HandleFunc(WebhookPath(hs.secret), hs.handleWebhook)
	}
	mux.HandleFunc("/", hs.handleIndex)
}

func (hs *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (hs *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	mode := "polling"
	if hs.webhookMode {
		mode = "webhook"
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Bart Photos Bot is running (mode: %s)", mode)
}

func (hs *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		hs.bot.logger.Warn("Error decoding webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Process update in background to respond quickly to Telegram
	hs.bot.Dispatch(update)

	w.WriteHeader(http.StatusOK)
}
