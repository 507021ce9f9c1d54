package support

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/errs"
)

// replyCommandRe matches "/reply <conversationId> <text>". The (?s) flag lets
// the reply text span newlines.
var replyCommandRe = regexp.MustCompile(`(?s)^/reply\s+(\d+)\s+(.+)$`)

// ReplyCommand is a parsed "/reply <id> <text>" Telegram command.
type ReplyCommand struct {
	ConversationID int64
	Text           string
}

// ParseReplyCommand extracts the target conversation id and reply text from
// command text. Ill-formed commands fail with errs.ErrCommandParse.
func ParseReplyCommand(text string) (ReplyCommand, error) {
	m := replyCommandRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ReplyCommand{}, fmt.Errorf("expected /reply <conversation-id> <text>: %w", errs.ErrCommandParse)
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return ReplyCommand{}, fmt.Errorf("conversation id %q is not a positive integer: %w", m[1], errs.ErrCommandParse)
	}

	body := strings.TrimSpace(m[2])
	if body == "" {
		return ReplyCommand{}, fmt.Errorf("reply text is empty: %w", errs.ErrCommandParse)
	}

	return ReplyCommand{ConversationID: id, Text: body}, nil
}

// Router translates a request's authentication context into the correct
// conversation and authorizes access to it.
type Router struct {
	store  database.Store
	logger *slog.Logger
}

// NewRouter creates a conversation router backed by the given store.
func NewRouter(store database.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		store:  store,
		logger: logger.With("component", "router"),
	}
}

// Resolve finds or creates the conversation for a principal. Authenticated
// identity always wins: for a user principal any guest token the request may
// also carry is ignored. The returned token is non-empty only when a new
// guest token was minted.
func (r *Router) Resolve(ctx context.Context, p Principal) (*database.Conversation, string, error) {
	switch p.Kind {
	case KindUser:
		conv, err := r.store.FindOrCreateUserConversation(ctx, p.UserID)
		if err != nil {
			return nil, "", err
		}
		return conv, "", nil
	case KindGuest:
		return r.store.FindOrCreateGuestConversation(ctx, p.GuestToken)
	default:
		return nil, "", fmt.Errorf("unknown principal kind %q: %w", p.Kind, errs.ErrValidation)
	}
}

// ResolveAdminReply resolves the explicit target conversation of an admin
// reply. Admins service many conversations, so there is no implicit
// resolution; an unknown id fails with errs.ErrNotFound.
func (r *Router) ResolveAdminReply(ctx context.Context, conversationID int64) (*database.Conversation, error) {
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		r.logger.WarnContext(ctx, "Admin reply to unknown conversation", "conversation_id", conversationID)
		return nil, fmt.Errorf("conversation %d: %w", conversationID, errs.ErrNotFound)
	}
	return conv, nil
}
