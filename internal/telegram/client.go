// Package telegram bridges the support relay with the Telegram Bot API:
// outbound admin notifications and inbound webhook command processing.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	tgbot "github.com/go-telegram/bot"

	"github.com/arabesque/support-relay/internal/settings"
)

// Sender issues one outbound Telegram message. Abstracted for tests.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// BotSender sends through the Bot API client, resolving the token per call so
// an admin-panel token change applies without a restart. The underlying
// client is rebuilt only when the resolved token changes.
type BotSender struct {
	settings *settings.Resolver
	logger   *slog.Logger

	mu    sync.Mutex
	token string
	bot   *tgbot.Bot
}

// NewBotSender creates a sender backed by the settings resolver.
func NewBotSender(resolver *settings.Resolver, logger *slog.Logger) *BotSender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BotSender{
		settings: resolver,
		logger:   logger.With("component", "telegram_sender"),
	}
}

// SendMessage sends text to a Telegram chat. The caller bounds the call with
// its context; there are no retries.
func (s *BotSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	token := s.settings.BotToken(ctx)
	if token == "" {
		return fmt.Errorf("telegram bot token is not configured")
	}

	b, err := s.client(token)
	if err != nil {
		return err
	}

	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
	}

	s.logger.DebugContext(ctx, "Telegram message sent", "chat_id", chatID)
	return nil
}

func (s *BotSender) client(token string) (*tgbot.Bot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bot != nil && s.token == token {
		return s.bot, nil
	}

	b, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	s.token = token
	s.bot = b
	return b, nil
}
