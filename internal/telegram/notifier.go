package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/arabesque/support-relay/internal/database"
)

const defaultPreviewLength = 120

// Notifier pushes new-message notifications to every actively linked admin.
// Delivery is best-effort: a missed push is recoverable because the message
// persists and shows up on the next admin page load.
type Notifier struct {
	store         database.Store
	sender        Sender
	logger        *slog.Logger
	previewLength int
}

// NewNotifier creates a notifier. previewLength bounds the body excerpt in
// runes; zero selects a default.
func NewNotifier(store database.Store, sender Sender, logger *slog.Logger, previewLength int) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if previewLength <= 0 {
		previewLength = defaultPreviewLength
	}
	return &Notifier{
		store:         store,
		sender:        sender,
		logger:        logger.With("component", "telegram_notifier"),
		previewLength: previewLength,
	}
}

// NotifyAdmins sends one message per active admin link whose Telegram user id
// is not excluded. Per-recipient failures are logged and do not stop the
// remaining sends.
func (n *Notifier) NotifyAdmins(ctx context.Context, conv *database.Conversation, msg *database.Message, excludeTelegramUserIDs []int64) error {
	links, err := n.store.ListActiveLinks(ctx, excludeTelegramUserIDs)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		n.logger.DebugContext(ctx, "No admin links to notify", "conversation_id", conv.ID)
		return nil
	}

	text := n.composeNotification(conv, msg)

	var sendErrs []error
	for _, link := range links {
		if err := n.sender.SendMessage(ctx, link.TelegramUserID, text); err != nil {
			n.logger.WarnContext(ctx, "Failed to notify admin",
				"admin_user_id", link.UserID, "telegram_user_id", link.TelegramUserID, "error", err)
			sendErrs = append(sendErrs, err)
		}
	}

	n.logger.InfoContext(ctx, "Admin notification fan-out finished",
		"conversation_id", conv.ID, "recipients", len(links), "failures", len(sendErrs))
	return errors.Join(sendErrs...)
}

// composeNotification renders the fixed notification template: conversation
// id, sender role, bounded body preview, and a reply hint. The preview bound
// keeps the payload under provider size limits.
func (n *Notifier) composeNotification(conv *database.Conversation, msg *database.Message) string {
	return fmt.Sprintf("New support message in conversation #%d\nFrom: %s\n\n%s\n\nReply with: /reply %d <text>",
		conv.ID, msg.SenderType, truncate(msg.Body, n.previewLength), conv.ID)
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return "..."
	}
	return string(runes[:maxRunes-3]) + "..."
}
