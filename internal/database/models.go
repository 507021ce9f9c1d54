package database

import (
	"database/sql"
	"time"
)

// Conversation status values. Transitions are driven by admin actions only;
// message flow never changes status.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Message sender types.
const (
	SenderGuest = "guest"
	SenderUser  = "user"
	SenderAdmin = "admin"
)

// Message origin channels. An admin reply can arrive via the admin UI
// (SourceAdmin) or via Telegram (SourceTelegram); both carry SenderAdmin.
const (
	SourceWeb      = "web"
	SourceAdmin    = "admin"
	SourceTelegram = "telegram"
)

// Conversation is the identity anchor for one support thread. Exactly one of
// UserID and GuestToken is set: a conversation belongs to a single principal.
type Conversation struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	UserID          sql.NullInt64  `db:"user_id"`
	GuestToken      sql.NullString `db:"guest_token"`
	AssignedAdminID sql.NullInt64  `db:"assigned_admin_id"`
	Status          string         `db:"status"`
	LastMessageAt   time.Time      `db:"last_message_at"`
}

// Message is a single support-chat message. Rows are immutable once created.
// TelegramUpdateID is globally unique when set and is the idempotency key for
// at-least-once Telegram webhook deliveries.
type Message struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ConversationID   int64         `db:"conversation_id"`
	SenderType       string        `db:"sender_type"`
	SenderUserID     sql.NullInt64 `db:"sender_user_id"`
	Source           string        `db:"source"`
	Body             string        `db:"body"`
	TelegramUpdateID sql.NullInt64 `db:"telegram_update_id"`
	SentAt           time.Time     `db:"sent_at"`
}

// AdminTelegramLink maps a local admin account to a Telegram user id,
// one-to-one in both directions. Inactive links are excluded from command
// authorization and notification fan-out alike.
type AdminTelegramLink struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	TelegramUserID int64     `db:"telegram_user_id"`
	IsActive       bool      `db:"is_active"`
	LinkedAt       time.Time `db:"linked_at"`
}

// Setting is one persisted configuration value. Settings take precedence over
// environment-supplied configuration when non-empty.
type Setting struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ValidStatus reports whether s is a known conversation status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}
