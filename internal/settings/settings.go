// Package settings resolves operational configuration that admins can change
// at runtime. A value persisted in the settings store takes precedence when
// non-empty; otherwise the environment-supplied config value applies.
package settings

import (
	"context"
	"io"
	"log/slog"

	"github.com/arabesque/support-relay/internal/database"
)

// Persisted setting keys the relay consumes.
const (
	KeyBotToken      = "telegram.bot_token"
	KeyWebhookSecret = "telegram.webhook_secret"
)

// Resolver reads one setting per operation rather than caching process-wide
// state, so an admin-panel change applies to the next request.
type Resolver struct {
	store  database.Store
	logger *slog.Logger

	botTokenFallback      string
	webhookSecretFallback string
}

// NewResolver creates a resolver with the environment-supplied fallbacks.
func NewResolver(store database.Store, logger *slog.Logger, botTokenFallback, webhookSecretFallback string) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		store:                 store,
		logger:                logger.With("component", "settings"),
		botTokenFallback:      botTokenFallback,
		webhookSecretFallback: webhookSecretFallback,
	}
}

// BotToken resolves the Telegram bot token.
func (r *Resolver) BotToken(ctx context.Context) string {
	return r.resolve(ctx, KeyBotToken, r.botTokenFallback)
}

// WebhookSecret resolves the webhook path secret.
func (r *Resolver) WebhookSecret(ctx context.Context) string {
	return r.resolve(ctx, KeyWebhookSecret, r.webhookSecretFallback)
}

func (r *Resolver) resolve(ctx context.Context, key, fallback string) string {
	value, err := r.store.GetSetting(ctx, key)
	if err != nil {
		// Store trouble falls back to the environment value; the error is
		// already logged by the store.
		return fallback
	}
	if value != "" {
		return value
	}
	return fallback
}
