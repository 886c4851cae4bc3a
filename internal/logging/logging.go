// Package logging builds the application logger and the admin chat alert core.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a JSON production logger, or a console development logger when debug is set
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	}
	return zap.NewProduction()
}

// AlertFunc delivers an alert text, it must not log through the alerting logger
type AlertFunc func(text string) error

// maxAlertLength is the Telegram limit for a message text
const maxAlertLength = 4096

// AlertCore forwards error entries to an AlertFunc.
// Every distinct message with its call-site fields is delivered once per process,
// context fields such as trace ids do not make an alert distinct.
type AlertCore struct {
	zapcore.LevelEnabler
	enc    zapcore.Encoder // context and call-site fields
	keyEnc zapcore.Encoder // call-site fields only
	send   AlertFunc

	mu   *sync.Mutex
	sent map[string]struct{}
}

// NewAlertCore creates a core alerting on entries at level or above
func NewAlertCore(level zapcore.Level, send AlertFunc) *AlertCore {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.LevelKey = ""
	encCfg.MessageKey = ""
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	return &AlertCore{
		LevelEnabler: level,
		enc:          zapcore.NewJSONEncoder(encCfg),
		keyEnc:       zapcore.NewJSONEncoder(encCfg),
		send:         send,
		mu:           &sync.Mutex{},
		sent:         make(map[string]struct{}),
	}
}

// Attach tees the alert core into logger
func Attach(logger *zap.Logger, core *AlertCore) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))
}

func (c *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.enc = c.enc.Clone()
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return &clone
}

func (c *AlertCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	key := entry.Message + encodeFields(c.keyEnc, entry, fields)
	if !c.reserve(key) {
		return nil
	}

	text := entry.Level.CapitalString() + ": " + entry.Message + encodeFields(c.enc, entry, fields)

	// Delivery failures are dropped, the entry is retried next time it is logged
	if err := c.send(truncate(text, maxAlertLength)); err != nil {
		c.release(key)
	}
	return nil
}

// encodeFields renders fields as a JSON line prefixed with a newline, empty when there are none
func encodeFields(enc zapcore.Encoder, entry zapcore.Entry, fields []zapcore.Field) string {
	buf, err := enc.EncodeEntry(entry, fields)
	if err != nil {
		return ""
	}
	defer buf.Free()

	details := strings.TrimSpace(buf.String())
	if details == "{}" || details == "" {
		return ""
	}
	return "\n" + details
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

func (c *AlertCore) Sync() error {
	return nil
}

func (c *AlertCore) reserve(message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sent[message]; ok {
		return false
	}
	c.sent[message] = struct{}{}
	return true
}

func (c *AlertCore) release(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sent, message)
}
