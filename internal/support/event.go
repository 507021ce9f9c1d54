package support

import (
	"fmt"
	"time"

	"github.com/arabesque/support-relay/internal/database"
)

// Realtime channel naming contract. Other components depend on these names.
const (
	// ChannelAdmin is the single broadcast channel all admins listen on.
	ChannelAdmin = "support.admin"

	// EventMessageCreated is the event name published for every appended
	// message, regardless of transport.
	EventMessageCreated = "support.message.created"
)

// UserChannel returns the private channel of an authenticated user,
// authorized only for that user or any admin.
func UserChannel(userID int64) string {
	return fmt.Sprintf("support.user.%d", userID)
}

// GuestChannel returns the channel of a guest conversation. The token itself
// is the authorization capability.
func GuestChannel(token string) string {
	return "support.guest." + token
}

// ConversationSummary is the normalized conversation projection carried in
// realtime events. Shape is stable regardless of transport.
type ConversationSummary struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	UserID          *int64 `json:"userId,omitempty"`
	AssignedAdminID *int64 `json:"assignedAdminId,omitempty"`
	LastMessageAt   string `json:"lastMessageAt"`
}

// MessageSummary is the normalized message projection carried in realtime
// events.
type MessageSummary struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	SenderType     string `json:"senderType"`
	SenderUserID   *int64 `json:"senderUserId,omitempty"`
	Source         string `json:"source"`
	Body           string `json:"body"`
	SentAt         string `json:"sentAt"`
}

// Event is one realtime push payload.
type Event struct {
	Name         string              `json:"event"`
	Conversation ConversationSummary `json:"conversation"`
	Message      MessageSummary      `json:"message"`
}

// SummarizeConversation projects a conversation row into its event shape.
// The guest token is deliberately not part of the payload: it is a bearer
// credential and already encoded in the channel name where relevant.
func SummarizeConversation(conv *database.Conversation) ConversationSummary {
	s := ConversationSummary{
		ID:            conv.ID,
		Status:        conv.Status,
		LastMessageAt: conv.LastMessageAt.UTC().Format(time.RFC3339),
	}
	if conv.UserID.Valid {
		id := conv.UserID.Int64
		s.UserID = &id
	}
	if conv.AssignedAdminID.Valid {
		id := conv.AssignedAdminID.Int64
		s.AssignedAdminID = &id
	}
	return s
}

// SummarizeMessage projects a message row into its event shape.
func SummarizeMessage(msg *database.Message) MessageSummary {
	s := MessageSummary{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderType:     msg.SenderType,
		Source:         msg.Source,
		Body:           msg.Body,
		SentAt:         msg.SentAt.UTC().Format(time.RFC3339),
	}
	if msg.SenderUserID.Valid {
		id := msg.SenderUserID.Int64
		s.SenderUserID = &id
	}
	return s
}
