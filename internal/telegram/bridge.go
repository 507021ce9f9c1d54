package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/errs"
	"github.com/arabesque/support-relay/internal/settings"
	"github.com/arabesque/support-relay/internal/support"
)

const usageHint = "Could not parse that command.\nUsage: /reply <conversation-id> <text>"

// Bridge processes inbound Telegram webhook updates: it authorizes the
// sender through the admin link table, parses the /reply command, appends the
// reply through the store (which enforces update-id idempotency), and fans
// the result out.
type Bridge struct {
	store       database.Store
	router      *support.Router
	broadcaster *support.Broadcaster
	sender      Sender
	settings    *settings.Resolver
	logger      *slog.Logger
}

// NewBridge wires the webhook processing pipeline.
func NewBridge(
	store database.Store,
	router *support.Router,
	broadcaster *support.Broadcaster,
	sender Sender,
	resolver *settings.Resolver,
	logger *slog.Logger,
) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{
		store:       store,
		router:      router,
		broadcaster: broadcaster,
		sender:      sender,
		settings:    resolver,
		logger:      logger.With("component", "telegram_bridge"),
	}
}

// VerifySecret compares the path-embedded webhook secret against the
// configured one in constant time. An unconfigured secret rejects everything.
func (b *Bridge) VerifySecret(ctx context.Context, pathSecret string) bool {
	configured := b.settings.WebhookSecret(ctx)
	if configured == "" || pathSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pathSecret), []byte(configured)) == 1
}

// ProcessUpdate runs the webhook state machine for one already-authenticated
// update. It never returns an error to the transport: the webhook must
// acknowledge promptly regardless of internal outcome, so failures are logged
// here and, where useful, reported back to the originating chat.
func (b *Bridge) ProcessUpdate(ctx context.Context, update *tgmodels.Update) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		b.logger.DebugContext(ctx, "Ignoring non-text update")
		return
	}
	if update.Message.From == nil {
		b.logger.DebugContext(ctx, "Ignoring update without sender", "update_id", update.ID)
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID
	log := b.logger.With("update_id", update.ID, "telegram_user_id", from.ID)

	link, err := b.store.ActiveLinkByTelegramUserID(ctx, from.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve admin link", "error", err)
		return
	}
	if link == nil {
		// Unlinked senders are not trusted and have nothing to route to.
		log.InfoContext(ctx, "Ignoring update from unlinked telegram user")
		return
	}

	cmd, err := support.ParseReplyCommand(update.Message.Text)
	if err != nil {
		log.InfoContext(ctx, "Rejecting ill-formed command", "error", err)
		b.replyToChat(ctx, chatID, usageHint)
		return
	}

	conv, err := b.router.ResolveAdminReply(ctx, cmd.ConversationID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			b.replyToChat(ctx, chatID, "No such conversation. Check the id and try again.")
		} else {
			log.ErrorContext(ctx, "Failed to resolve conversation", "conversation_id", cmd.ConversationID, "error", err)
		}
		return
	}

	updateID := update.ID
	msg, created, err := b.store.AppendMessage(ctx, database.AppendMessageParams{
		ConversationID:   conv.ID,
		SenderType:       database.SenderAdmin,
		SenderUserID:     &link.UserID,
		Source:           database.SourceTelegram,
		Body:             cmd.Text,
		TelegramUpdateID: &updateID,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to append telegram reply", "conversation_id", conv.ID, "error", err)
		return
	}
	if !created {
		// Retried webhook delivery; the first one already broadcast.
		log.InfoContext(ctx, "Duplicate webhook delivery, skipping broadcast", "message_id", msg.ID)
		return
	}

	conv.LastMessageAt = msg.SentAt
	b.broadcaster.Broadcast(conv, msg, []int64{from.ID})

	log.InfoContext(ctx, "Telegram reply relayed",
		"conversation_id", conv.ID, "message_id", msg.ID, "admin_user_id", link.UserID)
}

func (b *Bridge) replyToChat(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendMessage(ctx, chatID, text); err != nil {
		b.logger.WarnContext(ctx, "Failed to send reply to telegram chat", "chat_id", chatID, "error", err)
	}
}
