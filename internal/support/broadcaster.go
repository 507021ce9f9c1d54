package support

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/arabesque/support-relay/internal/database"
)

const defaultNotifyTimeout = 5 * time.Second

// Publisher pushes an event to a named realtime channel. Implementations
// must not block; delivery is best-effort.
type Publisher interface {
	Publish(channel string, event Event)
}

// AdminNotifier sends a Telegram notification about a new message to every
// linked admin not in the exclusion list.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, conv *database.Conversation, msg *database.Message, excludeTelegramUserIDs []int64) error
}

// Broadcaster fans a freshly appended message out to the realtime channels a
// listener could legitimately be waiting on, exactly once per channel, and
// triggers the Telegram admin notification. All of it is best-effort: the
// message is already committed and broadcast outcomes never reach the sender.
type Broadcaster struct {
	publisher     Publisher
	notifier      AdminNotifier
	logger        *slog.Logger
	notifyTimeout time.Duration
}

// NewBroadcaster wires a broadcaster to its publish and notify transports.
// notifyTimeout bounds the outbound Telegram call; zero selects a default.
func NewBroadcaster(publisher Publisher, notifier AdminNotifier, logger *slog.Logger, notifyTimeout time.Duration) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Broadcaster{
		publisher:     publisher,
		notifier:      notifier,
		logger:        logger.With("component", "broadcaster"),
		notifyTimeout: notifyTimeout,
	}
}

// Broadcast publishes the message event to the admin channel plus the single
// principal channel of the conversation, then notifies linked admins over
// Telegram in the background. excludeTelegramUserIDs carries the Telegram
// user id of the sender when the message originated there, so a reply is not
// echoed back to its own author.
func (b *Broadcaster) Broadcast(conv *database.Conversation, msg *database.Message, excludeTelegramUserIDs []int64) {
	event := Event{
		Name:         EventMessageCreated,
		Conversation: SummarizeConversation(conv),
		Message:      SummarizeMessage(msg),
	}

	b.publisher.Publish(ChannelAdmin, event)

	// Exactly one of the two is set per the conversation invariant.
	switch {
	case conv.UserID.Valid:
		b.publisher.Publish(UserChannel(conv.UserID.Int64), event)
	case conv.GuestToken.Valid:
		b.publisher.Publish(GuestChannel(conv.GuestToken.String), event)
	}

	if b.notifier == nil {
		return
	}

	// Decoupled from the request: the sender's HTTP response never waits on
	// Telegram delivery, and a failed push is recoverable on next page load.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.notifyTimeout)
		defer cancel()

		if err := b.notifier.NotifyAdmins(ctx, conv, msg, excludeTelegramUserIDs); err != nil {
			b.logger.Warn("Admin notification failed",
				"conversation_id", conv.ID, "message_id", msg.ID, "error", err)
		}
	}()
}
