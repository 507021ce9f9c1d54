// Package database_test tests the data access layer against a real SQLite
// database.
package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/errs"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustAppend(t *testing.T, store database.Store, p database.AppendMessageParams) *database.Message {
	t.Helper()

	msg, created, err := store.AppendMessage(context.Background(), p)
	if err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if !created {
		t.Fatalf("AppendMessage reported an unexpected duplicate")
	}
	return msg
}

func TestGuestConversationLifecycle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv, minted, err := store.FindOrCreateGuestConversation(ctx, "")
	if err != nil {
		t.Fatalf("first contact failed: %v", err)
	}
	if minted == "" {
		t.Fatal("expected a minted token on first contact")
	}
	if !conv.GuestToken.Valid || conv.GuestToken.String != minted {
		t.Fatalf("conversation token %q does not match minted token %q", conv.GuestToken.String, minted)
	}
	if conv.UserID.Valid {
		t.Fatal("guest conversation must not carry a user id")
	}
	if conv.Status != database.StatusOpen {
		t.Fatalf("new conversation status = %q, want %q", conv.Status, database.StatusOpen)
	}

	// The minted token resolves back to the same conversation with no new
	// token.
	again, mintedAgain, err := store.FindOrCreateGuestConversation(ctx, minted)
	if err != nil {
		t.Fatalf("re-resolve failed: %v", err)
	}
	if mintedAgain != "" {
		t.Fatalf("re-resolve minted a token: %q", mintedAgain)
	}
	if again.ID != conv.ID {
		t.Fatalf("re-resolve returned conversation %d, want %d", again.ID, conv.ID)
	}

	// An unknown token is first contact, not an error.
	fresh, freshToken, err := store.FindOrCreateGuestConversation(ctx, "no-such-token")
	if err != nil {
		t.Fatalf("unknown token resolve failed: %v", err)
	}
	if freshToken == "" || freshToken == minted {
		t.Fatalf("expected a distinct fresh token, got %q", freshToken)
	}
	if fresh.ID == conv.ID {
		t.Fatal("unknown token must not attach to an existing conversation")
	}
}

func TestGuestTokenResolvesRegardlessOfStatus(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv, minted, err := store.FindOrCreateGuestConversation(ctx, "")
	if err != nil {
		t.Fatalf("first contact failed: %v", err)
	}
	if err := store.UpdateConversationStatus(ctx, conv.ID, database.StatusClosed); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	again, _, err := store.FindOrCreateGuestConversation(ctx, minted)
	if err != nil {
		t.Fatalf("re-resolve failed: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("closed guest conversation should still resolve by token, got %d want %d", again.ID, conv.ID)
	}
}

func TestUserConversationResolution(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.FindOrCreateUserConversation(ctx, 0); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("zero user id: got %v, want ErrValidation", err)
	}

	conv, err := store.FindOrCreateUserConversation(ctx, 42)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !conv.UserID.Valid || conv.UserID.Int64 != 42 {
		t.Fatalf("conversation user id = %+v, want 42", conv.UserID)
	}
	if conv.GuestToken.Valid {
		t.Fatal("user conversation must not carry a guest token")
	}

	again, err := store.FindOrCreateUserConversation(ctx, 42)
	if err != nil {
		t.Fatalf("re-resolve failed: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("re-resolve returned %d, want %d", again.ID, conv.ID)
	}

	// Closing the thread starts a fresh one on next contact.
	if err := store.UpdateConversationStatus(ctx, conv.ID, database.StatusClosed); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	fresh, err := store.FindOrCreateUserConversation(ctx, 42)
	if err != nil {
		t.Fatalf("resolve after close failed: %v", err)
	}
	if fresh.ID == conv.ID {
		t.Fatal("closed conversation must not be reused")
	}
}

func TestAppendMessage(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv, _, err := store.FindOrCreateGuestConversation(ctx, "")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	msg := mustAppend(t, store, database.AppendMessageParams{
		ConversationID: conv.ID,
		SenderType:     database.SenderGuest,
		Source:         database.SourceWeb,
		Body:           "  hello there  ",
	})
	if msg.ID == 0 {
		t.Fatal("message id was not assigned")
	}
	if msg.Body != "hello there" {
		t.Fatalf("body = %q, want trimmed %q", msg.Body, "hello there")
	}

	// The owning conversation's activity timestamp advances with the append.
	reloaded, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.LastMessageAt.Before(conv.LastMessageAt) {
		t.Fatalf("last_message_at went backwards: %v -> %v", conv.LastMessageAt, reloaded.LastMessageAt)
	}
	if !reloaded.LastMessageAt.Equal(msg.SentAt) {
		t.Fatalf("last_message_at = %v, want sent_at %v", reloaded.LastMessageAt, msg.SentAt)
	}

	_, _, err = store.AppendMessage(ctx, database.AppendMessageParams{
		ConversationID: conv.ID,
		SenderType:     database.SenderGuest,
		Source:         database.SourceWeb,
		Body:           "   ",
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("blank body: got %v, want ErrValidation", err)
	}

	_, _, err = store.AppendMessage(ctx, database.AppendMessageParams{
		ConversationID: 99999,
		SenderType:     database.SenderGuest,
		Source:         database.SourceWeb,
		Body:           "orphan",
	})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown conversation: got %v, want ErrNotFound", err)
	}
}

func TestAppendMessageTelegramIdempotency(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv, _, err := store.FindOrCreateGuestConversation(ctx, "")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	adminID := int64(7)
	updateID := int64(424242)
	params := database.AppendMessageParams{
		ConversationID:   conv.ID,
		SenderType:       database.SenderAdmin,
		SenderUserID:     &adminID,
		Source:           database.SourceTelegram,
		Body:             "first delivery",
		TelegramUpdateID: &updateID,
	}

	first, created, err := store.AppendMessage(ctx, params)
	if err != nil || !created {
		t.Fatalf("first delivery: created=%v err=%v", created, err)
	}

	// The retried delivery is a no-op returning the stored row.
	params.Body = "second delivery of the same update"
	second, created, err := store.AppendMessage(ctx, params)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if created {
		t.Fatal("duplicate delivery reported created=true")
	}
	if second.ID != first.ID || second.Body != first.Body {
		t.Fatalf("duplicate returned a different row: %+v vs %+v", second, first)
	}

	msgs, err := store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected a single stored message, got %d", len(msgs))
	}
}

func TestListMessagesOrderingAndLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv, _, err := store.FindOrCreateGuestConversation(ctx, "")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	bodies := []string{"one", "two", "three", "four"}
	for _, body := range bodies {
		mustAppend(t, store, database.AppendMessageParams{
			ConversationID: conv.ID,
			SenderType:     database.SenderGuest,
			Source:         database.SourceWeb,
			Body:           body,
		})
	}

	msgs, err := store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != len(bodies) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(bodies))
	}
	for i, msg := range msgs {
		if msg.Body != bodies[i] {
			t.Fatalf("message %d body = %q, want %q", i, msg.Body, bodies[i])
		}
		if i > 0 && msgs[i-1].ID >= msg.ID {
			t.Fatalf("messages not in ascending id order at index %d", i)
		}
	}

	limited, err := store.ListMessages(ctx, conv.ID, 2)
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit 2 returned %d messages", len(limited))
	}
}

func TestListConversations(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.FindOrCreateUserConversation(ctx, 1)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	second, err := store.FindOrCreateUserConversation(ctx, 2)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// Activity on the first conversation moves it to the front.
	mustAppend(t, store, database.AppendMessageParams{
		ConversationID: first.ID,
		SenderType:     database.SenderUser,
		Source:         database.SourceWeb,
		Body:           "bump",
	})

	convs, err := store.ListConversations(ctx, "", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != first.ID {
		t.Fatalf("most recently active conversation should be first, got %d", convs[0].ID)
	}

	if err := store.UpdateConversationStatus(ctx, second.ID, database.StatusResolved); err != nil {
		t.Fatalf("status update failed: %v", err)
	}
	resolved, err := store.ListConversations(ctx, database.StatusResolved, 0)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(resolved) != 1 || resolved[0].ID != second.ID {
		t.Fatalf("status filter returned %+v", resolved)
	}

	if _, err := store.ListConversations(ctx, "bogus", 0); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("bogus status filter: got %v, want ErrValidation", err)
	}
}

func TestConversationStatusAndAssignment(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.FindOrCreateUserConversation(ctx, 5)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := store.UpdateConversationStatus(ctx, conv.ID, "nope"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("invalid status: got %v, want ErrValidation", err)
	}
	if err := store.UpdateConversationStatus(ctx, 99999, database.StatusResolved); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing conversation: got %v, want ErrNotFound", err)
	}
	if err := store.UpdateConversationStatus(ctx, conv.ID, database.StatusInProgress); err != nil {
		t.Fatalf("valid status update failed: %v", err)
	}

	if err := store.AssignAdmin(ctx, 99999, 7); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("assign to missing conversation: got %v, want ErrNotFound", err)
	}
	if err := store.AssignAdmin(ctx, conv.ID, 7); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	reloaded, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Status != database.StatusInProgress {
		t.Fatalf("status = %q, want %q", reloaded.Status, database.StatusInProgress)
	}
	if !reloaded.AssignedAdminID.Valid || reloaded.AssignedAdminID.Int64 != 7 {
		t.Fatalf("assigned admin = %+v, want 7", reloaded.AssignedAdminID)
	}
}

func TestAdminLinks(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	link, err := store.SaveAdminLink(ctx, 10, 1000)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !link.IsActive {
		t.Fatal("new link should be active")
	}

	resolved, err := store.ActiveLinkByTelegramUserID(ctx, 1000)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved == nil || resolved.UserID != 10 {
		t.Fatalf("resolved link = %+v, want user 10", resolved)
	}

	// Relinking the same admin replaces their mapping.
	if _, err := store.SaveAdminLink(ctx, 10, 2000); err != nil {
		t.Fatalf("relink failed: %v", err)
	}
	if resolved, _ := store.ActiveLinkByTelegramUserID(ctx, 1000); resolved != nil {
		t.Fatal("old telegram id should no longer resolve")
	}

	// A Telegram account can back at most one admin.
	if _, err := store.SaveAdminLink(ctx, 11, 2000); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("duplicate telegram id: got %v, want ErrValidation", err)
	}

	if err := store.SetAdminLinkActive(ctx, 10, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if resolved, _ := store.ActiveLinkByTelegramUserID(ctx, 2000); resolved != nil {
		t.Fatal("inactive link must not authorize")
	}
	if err := store.SetAdminLinkActive(ctx, 99999, true); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("toggle missing link: got %v, want ErrNotFound", err)
	}

	links, err := store.ListLinks(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("got %d links, want 1", len(links))
	}
}

func TestListActiveLinksExclusion(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for userID, tgID := range map[int64]int64{1: 100, 2: 200, 3: 300} {
		if _, err := store.SaveAdminLink(ctx, userID, tgID); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	if err := store.SetAdminLinkActive(ctx, 3, false); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	links, err := store.ListActiveLinks(ctx, []int64{100})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(links) != 1 || links[0].TelegramUserID != 200 {
		t.Fatalf("exclusion fan-out returned %+v, want only telegram user 200", links)
	}

	all, err := store.ListActiveLinks(ctx, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("active links = %d, want 2 (inactive excluded)", len(all))
	}
}

func TestSettings(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.GetSetting(ctx, "telegram.bot_token")
	if err != nil {
		t.Fatalf("get absent failed: %v", err)
	}
	if value != "" {
		t.Fatalf("absent setting = %q, want empty", value)
	}

	if err := store.SetSetting(ctx, "telegram.bot_token", "123:abc"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.SetSetting(ctx, "telegram.bot_token", "456:def"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	value, err = store.GetSetting(ctx, "telegram.bot_token")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "456:def" {
		t.Fatalf("setting = %q, want last written value", value)
	}

	if err := store.SetSetting(ctx, "", "x"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty key: got %v, want ErrValidation", err)
	}
}

func TestMintGuestToken(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	for range 32 {
		token, err := database.MintGuestToken()
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}
		if len(token) < 40 {
			t.Fatalf("token %q too short for 256 bits of entropy", token)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("token collision: %q", token)
		}
		seen[token] = struct{}{}
	}
}
