package telegram_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/telegram"
)

func newNotifierFixture(t *testing.T, previewLength int) (database.Store, *fakeSender, *telegram.Notifier) {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, log)
	sender := &fakeSender{}
	return store, sender, telegram.NewNotifier(store, sender, log, previewLength)
}

func notifierConversation(id int64) *database.Conversation {
	return &database.Conversation{
		ID:            id,
		GuestToken:    sql.NullString{String: "tok", Valid: true},
		Status:        database.StatusOpen,
		LastMessageAt: time.Now().UTC(),
	}
}

func notifierMessage(convID int64, body string) *database.Message {
	return &database.Message{
		ID:             1,
		ConversationID: convID,
		SenderType:     database.SenderGuest,
		Source:         database.SourceWeb,
		Body:           body,
		SentAt:         time.Now().UTC(),
	}
}

func TestNotifyAdminsFanOut(t *testing.T) {
	t.Parallel()

	store, sender, notifier := newNotifierFixture(t, 0)
	ctx := context.Background()

	for userID, tgID := range map[int64]int64{1: 111, 2: 222, 3: 333} {
		if _, err := store.SaveAdminLink(ctx, userID, tgID); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	if err := store.SetAdminLinkActive(ctx, 3, false); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	conv := notifierConversation(9)
	err := notifier.NotifyAdmins(ctx, conv, notifierMessage(conv.ID, "when is the next ballet class?"), []int64{111})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	got := sender.messages()
	if len(got) != 1 {
		t.Fatalf("got %d sends, want exactly 1 (excluded sender, inactive link)", len(got))
	}
	if got[0].ChatID != 222 {
		t.Fatalf("notified chat %d, want 222", got[0].ChatID)
	}
	if !strings.Contains(got[0].Text, "#9") || !strings.Contains(got[0].Text, "/reply 9") {
		t.Fatalf("notification text missing conversation id or reply hint: %q", got[0].Text)
	}
	if !strings.Contains(got[0].Text, "ballet") {
		t.Fatalf("notification text missing preview: %q", got[0].Text)
	}
}

func TestNotifyAdminsNoLinks(t *testing.T) {
	t.Parallel()

	_, sender, notifier := newNotifierFixture(t, 0)

	conv := notifierConversation(1)
	if err := notifier.NotifyAdmins(context.Background(), conv, notifierMessage(conv.ID, "hi"), nil); err != nil {
		t.Fatalf("notify with no links failed: %v", err)
	}
	if got := sender.messages(); len(got) != 0 {
		t.Fatalf("unexpected sends: %+v", got)
	}
}

func TestNotifyAdminsTruncatesPreview(t *testing.T) {
	t.Parallel()

	store, sender, notifier := newNotifierFixture(t, 20)
	ctx := context.Background()

	if _, err := store.SaveAdminLink(ctx, 1, 111); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	long := strings.Repeat("abcde ", 20)
	conv := notifierConversation(2)
	if err := notifier.NotifyAdmins(ctx, conv, notifierMessage(conv.ID, long), nil); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	got := sender.messages()
	if len(got) != 1 {
		t.Fatalf("got %d sends, want 1", len(got))
	}
	if !strings.Contains(got[0].Text, "...") {
		t.Fatalf("long body was not truncated: %q", got[0].Text)
	}
	if strings.Contains(got[0].Text, long) {
		t.Fatal("full body leaked into the notification")
	}
}

func TestNotifyAdminsReportsSendFailures(t *testing.T) {
	t.Parallel()

	store, sender, notifier := newNotifierFixture(t, 0)
	ctx := context.Background()

	if _, err := store.SaveAdminLink(ctx, 1, 111); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	sender.fail = true

	conv := notifierConversation(3)
	if err := notifier.NotifyAdmins(ctx, conv, notifierMessage(conv.ID, "hi"), nil); err == nil {
		t.Fatal("expected an error when every send fails")
	}
}
