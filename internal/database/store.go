package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arabesque/support-relay/internal/errs"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200

	defaultConversationLimit = 50
	maxConversationLimit     = 200

	guestTokenBytes = 32
)

// AppendMessageParams carries the fields for one message append.
type AppendMessageParams struct {
	ConversationID   int64
	SenderType       string
	SenderUserID     *int64
	Source           string
	Body             string
	TelegramUpdateID *int64
}

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// FindOrCreateUserConversation resolves the most recently active
	// non-closed conversation for an authenticated user, creating one if
	// none exists.
	FindOrCreateUserConversation(ctx context.Context, userID int64) (*Conversation, error)

	// FindOrCreateGuestConversation resolves a guest conversation by exact
	// token match. When the token is empty or unknown, it mints a new
	// unguessable token, creates the conversation, and returns the minted
	// token; the token is the guest's only credential from then on.
	FindOrCreateGuestConversation(ctx context.Context, token string) (*Conversation, string, error)

	// GetConversation retrieves a conversation by id. Returns nil, nil if not found.
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// ListConversations retrieves conversations ordered by last activity,
	// optionally filtered by status.
	ListConversations(ctx context.Context, status string, limit int) ([]Conversation, error)

	// UpdateConversationStatus sets the status of a conversation.
	UpdateConversationStatus(ctx context.Context, id int64, status string) error

	// AssignAdmin records a soft claim of a conversation by an admin.
	AssignAdmin(ctx context.Context, id int64, adminID int64) error

	// AppendMessage inserts a message and atomically advances the owning
	// conversation's last_message_at. A duplicate telegram_update_id is a
	// successful no-op returning the previously stored message and
	// created=false, so callers can suppress re-broadcasting.
	AppendMessage(ctx context.Context, p AppendMessageParams) (msg *Message, created bool, err error)

	// ListMessages returns messages of a conversation ordered by id
	// ascending, bounded by limit.
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error)

	// ActiveLinkByTelegramUserID resolves an active admin link by Telegram
	// user id. Returns nil, nil if no active link exists.
	ActiveLinkByTelegramUserID(ctx context.Context, telegramUserID int64) (*AdminTelegramLink, error)

	// ListActiveLinks returns all active admin links whose telegram_user_id
	// is not in the exclusion list.
	ListActiveLinks(ctx context.Context, excludeTelegramUserIDs []int64) ([]AdminTelegramLink, error)

	// ListLinks returns all admin links, active or not.
	ListLinks(ctx context.Context) ([]AdminTelegramLink, error)

	// SaveAdminLink creates or replaces the link for an admin account.
	SaveAdminLink(ctx context.Context, userID, telegramUserID int64) (*AdminTelegramLink, error)

	// SetAdminLinkActive toggles a link without deleting it.
	SetAdminLinkActive(ctx context.Context, userID int64, active bool) error

	// GetSetting returns the persisted value for key, or "" when absent.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting upserts a persisted setting.
	SetSetting(ctx context.Context, key, value string) error

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// MintGuestToken returns a new URL-safe bearer token with 256 bits of entropy.
func MintGuestToken() (string, error) {
	buf := make([]byte, guestTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate guest token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *sqlxStore) FindOrCreateUserConversation(ctx context.Context, userID int64) (*Conversation, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero: %w", errs.ErrValidation)
	}

	var conv Conversation
	query := `
        SELECT id, created_at, updated_at, user_id, guest_token, assigned_admin_id, status, last_message_at
        FROM conversations
        WHERE user_id = ? AND status != ?
        ORDER BY last_message_at DESC, id DESC
        LIMIT 1;
    `
	err := s.db.GetContext(ctx, &conv, query, userID, StatusClosed)
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "Resolved existing user conversation", "user_id", userID, "conversation_id", conv.ID)
		return &conv, nil
	case !errors.Is(err, sql.ErrNoRows):
		s.logger.ErrorContext(ctx, "Error resolving user conversation", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to resolve conversation for user %d: %w", userID, err)
	}

	created, err := s.createConversation(ctx, sql.NullInt64{Int64: userID, Valid: true}, sql.NullString{})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Created user conversation", "user_id", userID, "conversation_id", created.ID)
	return created, nil
}

func (s *sqlxStore) FindOrCreateGuestConversation(ctx context.Context, token string) (*Conversation, string, error) {
	if token != "" {
		var conv Conversation
		query := `
            SELECT id, created_at, updated_at, user_id, guest_token, assigned_admin_id, status, last_message_at
            FROM conversations
            WHERE guest_token = ?
            ORDER BY last_message_at DESC, id DESC
            LIMIT 1;
        `
		err := s.db.GetContext(ctx, &conv, query, token)
		switch {
		case err == nil:
			s.logger.DebugContext(ctx, "Resolved existing guest conversation", "conversation_id", conv.ID)
			return &conv, "", nil
		case !errors.Is(err, sql.ErrNoRows):
			s.logger.ErrorContext(ctx, "Error resolving guest conversation", "error", err)
			return nil, "", fmt.Errorf("failed to resolve guest conversation: %w", err)
		}
		// Unknown token: treat as first contact and mint a fresh one.
	}

	minted, err := MintGuestToken()
	if err != nil {
		return nil, "", err
	}

	created, err := s.createConversation(ctx, sql.NullInt64{}, sql.NullString{String: minted, Valid: true})
	if err != nil {
		return nil, "", err
	}
	s.logger.InfoContext(ctx, "Created guest conversation", "conversation_id", created.ID)
	return created, minted, nil
}

func (s *sqlxStore) createConversation(ctx context.Context, userID sql.NullInt64, guestToken sql.NullString) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		CreatedAt:     now,
		UpdatedAt:     now,
		UserID:        userID,
		GuestToken:    guestToken,
		Status:        StatusOpen,
		LastMessageAt: now,
	}

	query := `
        INSERT INTO conversations (created_at, updated_at, user_id, guest_token, assigned_admin_id, status, last_message_at)
        VALUES (:created_at, :updated_at, :user_id, :guest_token, :assigned_admin_id, :status, :last_message_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, conv)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating conversation", "error", err)
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversation id: %w", err)
	}
	conv.ID = id
	return conv, nil
}

// GetConversation retrieves a conversation by id. Returns nil, nil if not found.
func (s *sqlxStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	var conv Conversation
	query := `
        SELECT id, created_at, updated_at, user_id, guest_token, assigned_admin_id, status, last_message_at
        FROM conversations
        WHERE id = ?;
    `
	err := s.db.GetContext(ctx, &conv, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "Conversation not found", "conversation_id", id)
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting conversation", "conversation_id", id, "error", err)
		return nil, fmt.Errorf("failed to get conversation %d: %w", id, err)
	}
	return &conv, nil
}

func (s *sqlxStore) ListConversations(ctx context.Context, status string, limit int) ([]Conversation, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("unknown status %q: %w", status, errs.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultConversationLimit
	} else if limit > maxConversationLimit {
		limit = maxConversationLimit
	}

	var (
		convs []Conversation
		err   error
	)
	if status != "" {
		query := `
            SELECT id, created_at, updated_at, user_id, guest_token, assigned_admin_id, status, last_message_at
            FROM conversations
            WHERE status = ?
            ORDER BY last_message_at DESC, id DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &convs, query, status, limit)
	} else {
		query := `
            SELECT id, created_at, updated_at, user_id, guest_token, assigned_admin_id, status, last_message_at
            FROM conversations
            ORDER BY last_message_at DESC, id DESC
            LIMIT ?;
        `
		err = s.db.SelectContext(ctx, &convs, query, limit)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing conversations", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *sqlxStore) UpdateConversationStatus(ctx context.Context, id int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status %q: %w", status, errs.ErrValidation)
	}

	query := `UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?;`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating conversation status", "conversation_id", id, "error", err)
		return fmt.Errorf("failed to update status of conversation %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("conversation %d: %w", id, errs.ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Conversation status updated", "conversation_id", id, "status", status)
	return nil
}

func (s *sqlxStore) AssignAdmin(ctx context.Context, id int64, adminID int64) error {
	query := `UPDATE conversations SET assigned_admin_id = ?, updated_at = ? WHERE id = ?;`
	result, err := s.db.ExecContext(ctx, query, adminID, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error assigning admin", "conversation_id", id, "admin_id", adminID, "error", err)
		return fmt.Errorf("failed to assign admin to conversation %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("conversation %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// AppendMessage inserts a message and advances last_message_at in one
// transaction. Duplicate telegram_update_id deliveries return the stored row
// without a second insert; the partial unique index backstops the race.
func (s *sqlxStore) AppendMessage(ctx context.Context, p AppendMessageParams) (*Message, bool, error) {
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return nil, false, fmt.Errorf("message body is empty: %w", errs.ErrValidation)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for message append",
			"conversation_id", p.ConversationID, "error", err)
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	if p.TelegramUpdateID != nil {
		existing, err := messageByUpdateID(ctx, tx, *p.TelegramUpdateID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.logger.InfoContext(ctx, "Duplicate telegram update, returning stored message",
				"telegram_update_id", *p.TelegramUpdateID, "message_id", existing.ID)
			return existing, false, nil
		}
	}

	var exists bool
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM conversations WHERE id = ? LIMIT 1;`, p.ConversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("conversation %d: %w", p.ConversationID, errs.ErrNotFound)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error checking conversation existence",
			"conversation_id", p.ConversationID, "error", err)
		return nil, false, fmt.Errorf("failed to check conversation %d: %w", p.ConversationID, err)
	}

	now := time.Now().UTC()
	msg := &Message{
		CreatedAt:      now,
		ConversationID: p.ConversationID,
		SenderType:     p.SenderType,
		Source:         p.Source,
		Body:           body,
		SentAt:         now,
	}
	if p.SenderUserID != nil {
		msg.SenderUserID = sql.NullInt64{Int64: *p.SenderUserID, Valid: true}
	}
	if p.TelegramUpdateID != nil {
		msg.TelegramUpdateID = sql.NullInt64{Int64: *p.TelegramUpdateID, Valid: true}
	}

	insert := `
        INSERT INTO messages (created_at, conversation_id, sender_type, sender_user_id, source, body, telegram_update_id, sent_at)
        VALUES (:created_at, :conversation_id, :sender_type, :sender_user_id, :source, :body, :telegram_update_id, :sent_at);
    `
	result, err := tx.NamedExecContext(ctx, insert, msg)
	if err != nil {
		if p.TelegramUpdateID != nil && isUniqueViolation(err) {
			// A concurrent delivery won the insert; return its row.
			existing, lookupErr := messageByUpdateID(ctx, tx, *p.TelegramUpdateID)
			if lookupErr == nil && existing != nil {
				return existing, false, nil
			}
		}
		s.logger.ErrorContext(ctx, "Error inserting message",
			"conversation_id", p.ConversationID, "error", err)
		return nil, false, fmt.Errorf("failed to insert message into conversation %d: %w", p.ConversationID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after message append",
			"conversation_id", p.ConversationID, "error", err)
	} else {
		msg.ID = id
	}

	touch := `UPDATE conversations SET last_message_at = ?, updated_at = ? WHERE id = ?;`
	if _, err := tx.ExecContext(ctx, touch, msg.SentAt, now, p.ConversationID); err != nil {
		s.logger.ErrorContext(ctx, "Error touching conversation timestamp",
			"conversation_id", p.ConversationID, "error", err)
		return nil, false, fmt.Errorf("failed to touch conversation %d: %w", p.ConversationID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit message append",
			"conversation_id", p.ConversationID, "error", err)
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message appended",
		"conversation_id", p.ConversationID, "message_id", msg.ID, "source", p.Source)
	return msg, true, nil
}

func messageByUpdateID(ctx context.Context, tx *sqlx.Tx, updateID int64) (*Message, error) {
	var msg Message
	query := `
        SELECT id, created_at, conversation_id, sender_type, sender_user_id, source, body, telegram_update_id, sent_at
        FROM messages
        WHERE telegram_update_id = ?;
    `
	err := tx.GetContext(ctx, &msg, query, updateID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up message by telegram update %d: %w", updateID, err)
	}
	return &msg, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *sqlxStore) ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
		s.logger.DebugContext(ctx, "No limit provided, using default",
			"conversation_id", conversationID, "default_limit", limit)
	} else if limit > maxMessageLimit {
		limit = maxMessageLimit
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping",
			"conversation_id", conversationID, "capped_limit", limit)
	}

	var messages []Message
	query := `
        SELECT id, created_at, conversation_id, sender_type, sender_user_id, source, body, telegram_update_id, sent_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY id ASC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &messages, query, conversationID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error listing messages",
			"conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("failed to list messages of conversation %d: %w", conversationID, err)
	}
	return messages, nil
}

// ActiveLinkByTelegramUserID resolves an active admin link. Returns nil, nil
// when no active link exists; inactive links are a hard exclusion.
func (s *sqlxStore) ActiveLinkByTelegramUserID(ctx context.Context, telegramUserID int64) (*AdminTelegramLink, error) {
	var link AdminTelegramLink
	query := `
        SELECT id, user_id, telegram_user_id, is_active, linked_at
        FROM admin_telegram_links
        WHERE telegram_user_id = ? AND is_active = 1;
    `
	err := s.db.GetContext(ctx, &link, query, telegramUserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error resolving admin link",
			"telegram_user_id", telegramUserID, "error", err)
		return nil, fmt.Errorf("failed to resolve admin link for telegram user %d: %w", telegramUserID, err)
	}
	return &link, nil
}

func (s *sqlxStore) ListActiveLinks(ctx context.Context, excludeTelegramUserIDs []int64) ([]AdminTelegramLink, error) {
	var (
		links []AdminTelegramLink
		err   error
	)
	if len(excludeTelegramUserIDs) == 0 {
		query := `
            SELECT id, user_id, telegram_user_id, is_active, linked_at
            FROM admin_telegram_links
            WHERE is_active = 1
            ORDER BY user_id ASC;
        `
		err = s.db.SelectContext(ctx, &links, query)
	} else {
		query, args, inErr := sqlx.In(`
            SELECT id, user_id, telegram_user_id, is_active, linked_at
            FROM admin_telegram_links
            WHERE is_active = 1 AND telegram_user_id NOT IN (?)
            ORDER BY user_id ASC;
        `, excludeTelegramUserIDs)
		if inErr != nil {
			return nil, fmt.Errorf("failed to build active links query: %w", inErr)
		}
		err = s.db.SelectContext(ctx, &links, s.db.Rebind(query), args...)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing active admin links", "error", err)
		return nil, fmt.Errorf("failed to list active admin links: %w", err)
	}
	return links, nil
}

func (s *sqlxStore) ListLinks(ctx context.Context) ([]AdminTelegramLink, error) {
	var links []AdminTelegramLink
	query := `
        SELECT id, user_id, telegram_user_id, is_active, linked_at
        FROM admin_telegram_links
        ORDER BY user_id ASC;
    `
	if err := s.db.SelectContext(ctx, &links, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing admin links", "error", err)
		return nil, fmt.Errorf("failed to list admin links: %w", err)
	}
	return links, nil
}

func (s *sqlxStore) SaveAdminLink(ctx context.Context, userID, telegramUserID int64) (*AdminTelegramLink, error) {
	if userID == 0 || telegramUserID == 0 {
		return nil, fmt.Errorf("user_id and telegram_user_id are required: %w", errs.ErrValidation)
	}

	now := time.Now().UTC()
	query := `
        INSERT INTO admin_telegram_links (user_id, telegram_user_id, is_active, linked_at)
        VALUES (?, ?, 1, ?)
        ON CONFLICT (user_id) DO UPDATE SET
            telegram_user_id = excluded.telegram_user_id,
            is_active = 1,
            linked_at = excluded.linked_at;
    `
	if _, err := s.db.ExecContext(ctx, query, userID, telegramUserID, now); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("telegram user %d is already linked to another admin: %w", telegramUserID, errs.ErrValidation)
		}
		s.logger.ErrorContext(ctx, "Error saving admin link",
			"user_id", userID, "telegram_user_id", telegramUserID, "error", err)
		return nil, fmt.Errorf("failed to save admin link for user %d: %w", userID, err)
	}

	var link AdminTelegramLink
	get := `SELECT id, user_id, telegram_user_id, is_active, linked_at FROM admin_telegram_links WHERE user_id = ?;`
	if err := s.db.GetContext(ctx, &link, get, userID); err != nil {
		return nil, fmt.Errorf("failed to reload admin link for user %d: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "Admin link saved", "user_id", userID, "telegram_user_id", telegramUserID)
	return &link, nil
}

func (s *sqlxStore) SetAdminLinkActive(ctx context.Context, userID int64, active bool) error {
	query := `UPDATE admin_telegram_links SET is_active = ? WHERE user_id = ?;`
	result, err := s.db.ExecContext(ctx, query, active, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error toggling admin link", "user_id", userID, "error", err)
		return fmt.Errorf("failed to toggle admin link for user %d: %w", userID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("admin link for user %d: %w", userID, errs.ErrNotFound)
	}

	s.logger.InfoContext(ctx, "Admin link toggled", "user_id", userID, "is_active", active)
	return nil
}

// GetSetting returns the persisted value for key, or "" when the key has
// never been written.
func (s *sqlxStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?;`, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error reading setting", "key", key, "error", err)
		return "", fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, nil
}

func (s *sqlxStore) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("setting key is empty: %w", errs.ErrValidation)
	}

	query := `
        INSERT INTO settings (key, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		s.logger.ErrorContext(ctx, "Error writing setting", "key", key, "error", err)
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

// RunMaintenance executes a VACUUM on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
