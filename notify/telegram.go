// Package notify handles delivering campaign notifications to Telegram.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sendTimeout bounds a single Telegram API call.
const sendTimeout = 20 * time.Second

// ErrNotConfigured is returned by Send when Telegram credentials are absent
// or unusable. Callers treat it as "not sent", never as a fatal condition.
var ErrNotConfigured = errors.New("telegram credentials not configured")

// Provider defines the interface for notification delivery implementations.
type Provider interface {
	// Send delivers plain text to the configured destination.
	Send(ctx context.Context, text string) error
}

// Telegram sends messages to a fixed chat via the Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
	chatID int64
}

// NewTelegram creates a Telegram provider. Missing or invalid credentials
// produce a provider whose Send reports ErrNotConfigured instead of failing
// construction: the monitor still runs, it just cannot notify.
func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	t := &Telegram{logger: logger}

	if token == "" || chatID == "" {
		logger.Warn("Telegram credentials not set, notifications disabled")
		return t
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		logger.Warn("Invalid TELEGRAM_CHAT_ID, notifications disabled", "error", err)
		return t
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		logger.Warn("Telegram bot initialization failed, notifications disabled", "error", err)
		return t
	}

	t.bot = bot
	t.chatID = id
	return t
}

// Send delivers text to the configured chat with link previews disabled.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if t.bot == nil {
		t.logger.Warn("Skipping Telegram notification (not configured)", "text_length", len(text))
		return ErrNotConfigured
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true

	err := retry.Do(
		func() error {
			t.logger.Info("Telegram API request starting",
				"method", "POST",
				"endpoint", "sendMessage",
				"chat_id", t.chatID,
				"text_length", len(text))

			startTime := time.Now()
			_, sendErr := t.bot.Send(msg)
			duration := time.Since(startTime)

			if sendErr != nil {
				t.logger.Warn("Telegram send failed, will retry",
					"chat_id", t.chatID,
					"duration_ms", duration.Milliseconds(),
					"error", sendErr)
				return sendErr
			}

			t.logger.Info("Telegram API request completed",
				"endpoint", "sendMessage",
				"chat_id", t.chatID,
				"duration_ms", duration.Milliseconds(),
				"status", "success")
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			t.logger.Info("Retrying Telegram send after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	t.logger.Info("Telegram notification sent", "chat_id", t.chatID)
	return nil
}

// Mock is a notification provider for local development and tests. It logs
// and records each message instead of sending it.
type Mock struct {
	logger   *slog.Logger
	Messages []string
	Fail     bool // When set, Send reports a failure without recording.
}

// NewMock creates a new mock provider.
func NewMock(logger *slog.Logger) *Mock {
	return &Mock{logger: logger}
}

// Send records the message instead of delivering it.
func (m *Mock) Send(_ context.Context, text string) error {
	if m.Fail {
		return errors.New("mock send failure")
	}
	m.logger.Info("MOCK NOTIFICATION", "text_length", len(text))
	m.Messages = append(m.Messages, text)
	return nil
}
