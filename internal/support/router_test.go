package support_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/errs"
	"github.com/arabesque/support-relay/internal/support"
)

func newTestRouter(t *testing.T) (*support.Router, database.Store) {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return support.NewRouter(store, nil), store
}

func TestParseReplyCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    support.ReplyCommand
		wantErr bool
	}{
		{
			name:  "simple reply",
			input: "/reply 42 thanks, see you at class",
			want:  support.ReplyCommand{ConversationID: 42, Text: "thanks, see you at class"},
		},
		{
			name:  "multiline text",
			input: "/reply 7 first line\nsecond line",
			want:  support.ReplyCommand{ConversationID: 7, Text: "first line\nsecond line"},
		},
		{
			name:  "surrounding whitespace",
			input: "  /reply 3 hello  ",
			want:  support.ReplyCommand{ConversationID: 3, Text: "hello"},
		},
		{
			name:    "non-numeric id",
			input:   "/reply abc hi",
			wantErr: true,
		},
		{
			name:    "missing text",
			input:   "/reply 42",
			wantErr: true,
		},
		{
			name:    "missing id",
			input:   "/reply hello there",
			wantErr: true,
		},
		{
			name:    "zero id",
			input:   "/reply 0 hi",
			wantErr: true,
		},
		{
			name:    "not a reply command",
			input:   "/start",
			wantErr: true,
		},
		{
			name:    "plain text",
			input:   "hello",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := support.ParseReplyCommand(tc.input)
			if tc.wantErr {
				if !errors.Is(err, errs.ErrCommandParse) {
					t.Fatalf("got err %v, want ErrCommandParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRouterResolveUserWinsOverGuest(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)
	ctx := context.Background()

	// Seed a guest conversation whose token the user's browser might still
	// hold.
	guestConv, token, err := store.FindOrCreateGuestConversation(ctx, "")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	p := support.UserPrincipal(42)
	p.GuestToken = token

	conv, minted, err := router.Resolve(ctx, p)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if minted != "" {
		t.Fatalf("user resolution minted a guest token: %q", minted)
	}
	if conv.ID == guestConv.ID {
		t.Fatal("authenticated user was routed to the guest conversation")
	}
	if !conv.UserID.Valid || conv.UserID.Int64 != 42 {
		t.Fatalf("conversation user id = %+v, want 42", conv.UserID)
	}
}

func TestRouterResolveGuest(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	ctx := context.Background()

	conv, minted, err := router.Resolve(ctx, support.GuestPrincipal(""))
	if err != nil {
		t.Fatalf("first contact failed: %v", err)
	}
	if minted == "" {
		t.Fatal("expected a minted token")
	}

	again, mintedAgain, err := router.Resolve(ctx, support.GuestPrincipal(minted))
	if err != nil {
		t.Fatalf("re-resolve failed: %v", err)
	}
	if mintedAgain != "" || again.ID != conv.ID {
		t.Fatalf("re-resolve: conversation %d token %q, want %d and no token", again.ID, mintedAgain, conv.ID)
	}
}

func TestRouterResolveAdminReply(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)
	ctx := context.Background()

	conv, err := store.FindOrCreateUserConversation(ctx, 5)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err := router.ResolveAdminReply(ctx, conv.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.ID != conv.ID {
		t.Fatalf("resolved conversation %d, want %d", got.ID, conv.ID)
	}

	if _, err := router.ResolveAdminReply(ctx, 99999); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing conversation: got %v, want ErrNotFound", err)
	}
}
