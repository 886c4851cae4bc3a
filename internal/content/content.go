// Package content holds every text the bot sends.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultContent []byte

// Replies is a set of interchangeable replies
type Replies []string

// Random returns one of the replies
func (r Replies) Random() string {
	if len(r) == 0 {
		return ""
	}
	return r[rand.IntN(len(r))]
}

type SendPhotoReplies struct {
	Any Replies `yaml:"any"`
	All Replies `yaml:"all"`
}

type ReceivePhotoReplies struct {
	Initial Replies `yaml:"initial"`
	Basic   Replies `yaml:"basic"`
	Group   Replies `yaml:"group"`
}

type DeleteMessages struct {
	Done     string `yaml:"done"`
	NoTarget string `yaml:"no_target"`
}

type FamilyMessages struct {
	Request       string `yaml:"request"`
	RequestSent   string `yaml:"request_sent"`
	Confirm       string `yaml:"confirm"`
	Reject        string `yaml:"reject"`
	UnknownAnswer string `yaml:"unknown_answer"`
}

type ExceptionMessages struct {
	Default              string `yaml:"default"`
	RepeatedPhoto        string `yaml:"repeated_photo"`
	NoPhotos             string `yaml:"no_photos"`
	UserNotStartBot      string `yaml:"user_not_start_bot"`
	AlreadyAddedToFamily string `yaml:"already_added_to_family"`
	ForwardHidden        string `yaml:"forward_hidden"`
	PermissionDenied     string `yaml:"permission_denied"`
}

type Messages struct {
	Start string `yaml:"start"`
	// Regular replies answer any text no other handler recognised
	Regular      Replies             `yaml:"regular"`
	FeedMe       Replies             `yaml:"feedme"`
	ReceiveFood  Replies             `yaml:"receive_food"`
	SendPhoto    SendPhotoReplies    `yaml:"send_photo"`
	ReceivePhoto ReceivePhotoReplies `yaml:"receive_photo"`
	Count        string              `yaml:"count"`
	ShowPage     string              `yaml:"show_page"`
	Delete       DeleteMessages      `yaml:"delete"`
	Flushed      string              `yaml:"flushed"`
	Loaded       string              `yaml:"loaded"`
	Family       FamilyMessages      `yaml:"family"`
	Exceptions   ExceptionMessages   `yaml:"exceptions"`
}

// Content is the full set of bot texts
type Content struct {
	Buttons        []string `yaml:"buttons"`
	Messages       Messages `yaml:"messages"`
	ConfirmAnswers []string `yaml:"confirm_answers"`
	RejectAnswers  []string `yaml:"reject_answers"`
	// DeleteTriggers are words that, in a reply to a photo or video, forget it
	DeleteTriggers []string `yaml:"delete_triggers"`
}

// Default returns the content embedded into the binary
func Default() (*Content, error) {
	return Parse(defaultContent)
}

// Load reads content from a YAML file, an empty path selects the embedded default
func Load(path string) (*Content, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML content
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every reply the bot may send is present
func (c *Content) Validate() error {
	var errs []error
	if len(c.Buttons) != 9 {
		errs = append(errs, fmt.Errorf("buttons: expected 9, got %d", len(c.Buttons)))
	}

	m := c.Messages
	lists := []struct {
		name  string
		value []string
	}{
		{"messages.regular", m.Regular},
		{"messages.feedme", m.FeedMe},
		{"messages.receive_food", m.ReceiveFood},
		{"messages.send_photo.any", m.SendPhoto.Any},
		{"messages.send_photo.all", m.SendPhoto.All},
		{"messages.receive_photo.initial", m.ReceivePhoto.Initial},
		{"messages.receive_photo.basic", m.ReceivePhoto.Basic},
		{"messages.receive_photo.group", m.ReceivePhoto.Group},
		{"confirm_answers", c.ConfirmAnswers},
		{"reject_answers", c.RejectAnswers},
		{"delete_triggers", c.DeleteTriggers},
	}
	for _, l := range lists {
		if len(l.value) == 0 {
			errs = append(errs, fmt.Errorf("%s: must not be empty", l.name))
		}
		for i, v := range l.value {
			if strings.TrimSpace(v) == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: must not be blank", l.name, i))
			}
		}
	}

	texts := []struct {
		name  string
		value string
	}{
		{"messages.start", m.Start},
		{"messages.count", m.Count},
		{"messages.show_page", m.ShowPage},
		{"messages.delete.done", m.Delete.Done},
		{"messages.delete.no_target", m.Delete.NoTarget},
		{"messages.flushed", m.Flushed},
		{"messages.loaded", m.Loaded},
		{"messages.family.request", m.Family.Request},
		{"messages.family.request_sent", m.Family.RequestSent},
		{"messages.family.confirm", m.Family.Confirm},
		{"messages.family.reject", m.Family.Reject},
		{"messages.family.unknown_answer", m.Family.UnknownAnswer},
		{"messages.exceptions.default", m.Exceptions.Default},
		{"messages.exceptions.repeated_photo", m.Exceptions.RepeatedPhoto},
		{"messages.exceptions.no_photos", m.Exceptions.NoPhotos},
		{"messages.exceptions.user_not_start_bot", m.Exceptions.UserNotStartBot},
		{"messages.exceptions.already_added_to_family", m.Exceptions.AlreadyAddedToFamily},
		{"messages.exceptions.forward_hidden", m.Exceptions.ForwardHidden},
		{"messages.exceptions.permission_denied", m.Exceptions.PermissionDenied},
	}
	for _, t := range texts {
		if strings.TrimSpace(t.value) == "" {
			errs = append(errs, fmt.Errorf("%s: must not be empty", t.name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid content: %w", errors.Join(errs...))
	}
	return nil
}

// Keyboard lays the buttons out in three rows of three
func (c *Content) Keyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(c.Buttons); i += 3 {
		end := min(i+3, len(c.Buttons))
		var row []tgbotapi.KeyboardButton
		for _, text := range c.Buttons[i:end] {
			row = append(row, tgbotapi.NewKeyboardButton(text))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// IsButton reports whether text is one of the keyboard buttons
func (c *Content) IsButton(text string) bool {
	text = strings.TrimSpace(text)
	for _, b := range c.Buttons {
		if b == text {
			return true
		}
	}
	return false
}

// IsConfirm reports whether text accepts a family request
func (c *Content) IsConfirm(text string) bool {
	return matchAnswer(c.ConfirmAnswers, text)
}

// IsReject reports whether text rejects a family request
func (c *Content) IsReject(text string) bool {
	return matchAnswer(c.RejectAnswers, text)
}

// IsDeleteTrigger reports whether any word of text is a delete trigger
func (c *Content) IsDeleteTrigger(text string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	for _, w := range words {
		for _, trigger := range c.DeleteTriggers {
			if strings.EqualFold(stripVariation(w), stripVariation(trigger)) {
				return true
			}
		}
	}
	return false
}

// stripVariation drops emoji presentation selectors, "🗑️" and "🗑" are the same trigger
func stripVariation(s string) string {
	return strings.ReplaceAll(s, "\uFE0F", "")
}

func matchAnswer(answers []string, text string) bool {
	text = strings.TrimSpace(text)
	for _, a := range answers {
		if strings.EqualFold(a, text) {
			return true
		}
	}
	return false
}

// Format replaces {key} placeholders, pairs are given as key, value, key, value...
func Format(text string, pairs ...string) string {
	if len(pairs) == 0 {
		return text
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(text)
}
