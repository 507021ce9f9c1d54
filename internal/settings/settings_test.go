package settings_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/settings"
)

func newTestResolver(t *testing.T, botTokenFallback, webhookSecretFallback string) (database.Store, *settings.Resolver) {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, log)
	return store, settings.NewResolver(store, log, botTokenFallback, webhookSecretFallback)
}

func TestResolverFallsBackToEnvironment(t *testing.T) {
	t.Parallel()

	_, resolver := newTestResolver(t, "env-token", "env-secret")
	ctx := context.Background()

	if got := resolver.BotToken(ctx); got != "env-token" {
		t.Fatalf("BotToken = %q, want environment fallback", got)
	}
	if got := resolver.WebhookSecret(ctx); got != "env-secret" {
		t.Fatalf("WebhookSecret = %q, want environment fallback", got)
	}
}

func TestResolverPrefersPersistedValue(t *testing.T) {
	t.Parallel()

	store, resolver := newTestResolver(t, "env-token", "env-secret")
	ctx := context.Background()

	if err := store.SetSetting(ctx, settings.KeyBotToken, "panel-token"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if got := resolver.BotToken(ctx); got != "panel-token" {
		t.Fatalf("BotToken = %q, want persisted value", got)
	}
	// The other key is untouched and still falls back.
	if got := resolver.WebhookSecret(ctx); got != "env-secret" {
		t.Fatalf("WebhookSecret = %q, want environment fallback", got)
	}

	// Clearing the persisted value restores the fallback.
	if err := store.SetSetting(ctx, settings.KeyBotToken, ""); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if got := resolver.BotToken(ctx); got != "env-token" {
		t.Fatalf("BotToken after clear = %q, want environment fallback", got)
	}
}

func TestResolverChangeAppliesWithoutRestart(t *testing.T) {
	t.Parallel()

	store, resolver := newTestResolver(t, "", "")
	ctx := context.Background()

	if got := resolver.BotToken(ctx); got != "" {
		t.Fatalf("BotToken = %q, want empty with nothing configured", got)
	}

	if err := store.SetSetting(ctx, settings.KeyBotToken, "fresh-token"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if got := resolver.BotToken(ctx); got != "fresh-token" {
		t.Fatalf("BotToken = %q, change should apply on next resolution", got)
	}
}
