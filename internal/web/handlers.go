package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgmodels "github.com/go-telegram/bot/models"
	"nhooyr.io/websocket"

	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/errs"
	"github.com/arabesque/support-relay/internal/gemini"
	"github.com/arabesque/support-relay/internal/realtime"
	"github.com/arabesque/support-relay/internal/settings"
	"github.com/arabesque/support-relay/internal/support"
	"github.com/arabesque/support-relay/internal/telegram"
)

const (
	guestTokenHeader = "X-Guest-Token"
	historyLimit     = 50
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	store         database.Store
	router        *support.Router
	broadcaster   *support.Broadcaster
	bridge        *telegram.Bridge
	hub           *realtime.Hub
	gemini        gemini.Client
	geminiTimeout time.Duration
	logger        *slog.Logger
}

// NewHandlers wires the HTTP handlers. gemini may be nil when reply
// suggestions are disabled.
func NewHandlers(
	store database.Store,
	router *support.Router,
	broadcaster *support.Broadcaster,
	bridge *telegram.Bridge,
	hub *realtime.Hub,
	geminiClient gemini.Client,
	geminiTimeout time.Duration,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handlers{
		store:         store,
		router:        router,
		broadcaster:   broadcaster,
		bridge:        bridge,
		hub:           hub,
		gemini:        geminiClient,
		geminiTimeout: geminiTimeout,
		logger:        logger.With("component", "web"),
	}
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

// Healthz reports liveness, including database reachability.
func (h *Handlers) Healthz(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TelegramWebhook authenticates the path secret, decodes the update, and
// hands it to the bridge. It acknowledges with 200 for every authenticated
// delivery so Telegram stops retrying; processing failures are handled and
// logged inside the bridge.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if !h.bridge.VerifySecret(c.Request.Context(), c.Param("secret")) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	var update tgmodels.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.WarnContext(c.Request.Context(), "Undecodable webhook payload", "error", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	h.bridge.ProcessUpdate(c.Request.Context(), &update)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// principal derives the request's support principal: JWT identity wins, a
// guest token header comes second, and an absent token still yields a guest
// principal whose conversation resolution will mint one.
func (h *Handlers) principal(c *gin.Context, bodyToken string) support.Principal {
	if claims, ok := ClaimsFrom(c); ok {
		return support.UserPrincipal(claims.UserID)
	}
	token := strings.TrimSpace(c.GetHeader(guestTokenHeader))
	if token == "" {
		token = strings.TrimSpace(bodyToken)
	}
	return support.GuestPrincipal(token)
}

type conversationResponse struct {
	Conversation support.ConversationSummary `json:"conversation"`
	Messages     []support.MessageSummary    `json:"messages"`
	GuestToken   string                      `json:"guestToken,omitempty"`
}

// CurrentConversation resolves (creating on first contact) the caller's
// conversation and returns it with recent history. A newly minted guest
// token rides along exactly once; the client must store it.
func (h *Handlers) CurrentConversation(c *gin.Context) {
	ctx := c.Request.Context()

	conv, minted, err := h.router.Resolve(ctx, h.principal(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}

	msgs, err := h.store.ListMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversationResponse{
		Conversation: support.SummarizeConversation(conv),
		Messages:     summarizeMessages(msgs),
		GuestToken:   minted,
	})
}

type postMessageRequest struct {
	Body       string `json:"body" binding:"required"`
	GuestToken string `json:"guestToken"`
}

type postMessageResponse struct {
	Conversation support.ConversationSummary `json:"conversation"`
	Message      support.MessageSummary      `json:"message"`
	GuestToken   string                      `json:"guestToken,omitempty"`
}

// PostSupportMessage appends a message from a user or guest to their own
// conversation and fans it out.
func (h *Handlers) PostSupportMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "body is required"})
		return
	}

	ctx := c.Request.Context()
	p := h.principal(c, req.GuestToken)

	conv, minted, err := h.router.Resolve(ctx, p)
	if err != nil {
		respondError(c, err)
		return
	}

	params := database.AppendMessageParams{
		ConversationID: conv.ID,
		SenderType:     database.SenderGuest,
		Source:         database.SourceWeb,
		Body:           req.Body,
	}
	if p.Kind == support.KindUser {
		params.SenderType = database.SenderUser
		userID := p.UserID
		params.SenderUserID = &userID
	}

	msg, _, err := h.store.AppendMessage(ctx, params)
	if err != nil {
		respondError(c, err)
		return
	}

	conv.LastMessageAt = msg.SentAt
	h.broadcaster.Broadcast(conv, msg, nil)

	c.JSON(http.StatusCreated, postMessageResponse{
		Conversation: support.SummarizeConversation(conv),
		Message:      support.SummarizeMessage(msg),
		GuestToken:   minted,
	})
}

type adminMessageRequest struct {
	ConversationID int64  `json:"conversationId" binding:"required"`
	Body           string `json:"body" binding:"required"`
}

// PostAdminMessage appends an admin reply from the web panel to an explicit
// conversation.
func (h *Handlers) PostAdminMessage(c *gin.Context) {
	var req adminMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "conversationId and body are required"})
		return
	}

	ctx := c.Request.Context()
	claims, _ := ClaimsFrom(c)

	conv, err := h.router.ResolveAdminReply(ctx, req.ConversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	adminID := claims.UserID
	msg, _, err := h.store.AppendMessage(ctx, database.AppendMessageParams{
		ConversationID: conv.ID,
		SenderType:     database.SenderAdmin,
		SenderUserID:   &adminID,
		Source:         database.SourceAdmin,
		Body:           req.Body,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	conv.LastMessageAt = msg.SentAt
	h.broadcaster.Broadcast(conv, msg, nil)

	c.JSON(http.StatusCreated, postMessageResponse{
		Conversation: support.SummarizeConversation(conv),
		Message:      support.SummarizeMessage(msg),
	})
}

// ListConversations returns conversations for the admin inbox, most recently
// active first, optionally filtered by status.
func (h *Handlers) ListConversations(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !database.ValidStatus(status) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "unknown status"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	convs, err := h.store.ListConversations(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]support.ConversationSummary, 0, len(convs))
	for i := range convs {
		out = append(out, support.SummarizeConversation(&convs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// GetConversation returns one conversation with its message history.
func (h *Handlers) GetConversation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid conversation id"})
		return
	}

	ctx := c.Request.Context()
	conv, err := h.router.ResolveAdminReply(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	msgs, err := h.store.ListMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversationResponse{
		Conversation: support.SummarizeConversation(conv),
		Messages:     summarizeMessages(msgs),
	})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateConversationStatus moves a conversation through its lifecycle.
func (h *Handlers) UpdateConversationStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid conversation id"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "status is required"})
		return
	}

	if err := h.store.UpdateConversationStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type assignRequest struct {
	AdminID int64 `json:"adminId" binding:"required"`
}

// AssignConversation records a soft claim of a conversation by an admin.
func (h *Handlers) AssignConversation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid conversation id"})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "adminId is required"})
		return
	}

	if err := h.store.AssignAdmin(c.Request.Context(), id, req.AdminID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type linkResponse struct {
	UserID         int64     `json:"userId"`
	TelegramUserID int64     `json:"telegramUserId"`
	IsActive       bool      `json:"isActive"`
	LinkedAt       time.Time `json:"linkedAt"`
}

func summarizeLink(l *database.AdminTelegramLink) linkResponse {
	return linkResponse{
		UserID:         l.UserID,
		TelegramUserID: l.TelegramUserID,
		IsActive:       l.IsActive,
		LinkedAt:       l.LinkedAt.UTC(),
	}
}

// ListTelegramLinks returns every admin-to-Telegram link, active or not.
func (h *Handlers) ListTelegramLinks(c *gin.Context) {
	links, err := h.store.ListLinks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]linkResponse, 0, len(links))
	for i := range links {
		out = append(out, summarizeLink(&links[i]))
	}
	c.JSON(http.StatusOK, gin.H{"links": out})
}

type putLinkRequest struct {
	TelegramUserID int64 `json:"telegramUserId" binding:"required"`
}

// PutTelegramLink creates or replaces the link for an admin account.
func (h *Handlers) PutTelegramLink(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid user id"})
		return
	}

	var req putLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "telegramUserId is required"})
		return
	}

	link, err := h.store.SaveAdminLink(c.Request.Context(), userID, req.TelegramUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summarizeLink(link))
}

type linkActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetTelegramLinkActive toggles a link without deleting it, so an admin on
// leave stops receiving pings but keeps their mapping.
func (h *Handlers) SetTelegramLinkActive(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid user id"})
		return
	}

	var req linkActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "isActive is required"})
		return
	}

	if err := h.store.SetAdminLinkActive(c.Request.Context(), userID, *req.IsActive); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func knownSettingKey(key string) bool {
	return key == settings.KeyBotToken || key == settings.KeyWebhookSecret
}

// GetSetting returns a persisted operational setting.
func (h *Handlers) GetSetting(c *gin.Context) {
	key := c.Param("key")
	if !knownSettingKey(key) {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown setting"})
		return
	}

	value, err := h.store.GetSetting(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type putSettingRequest struct {
	Value string `json:"value"`
}

// PutSetting persists an operational setting. Persisted values take effect on
// the next request; an empty value falls back to the environment config.
func (h *Handlers) PutSetting(c *gin.Context) {
	key := c.Param("key")
	if !knownSettingKey(key) {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown setting"})
		return
	}

	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid payload"})
		return
	}

	if err := h.store.SetSetting(c.Request.Context(), key, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SuggestReply drafts a reply to the conversation's latest customer message
// using the configured AI model.
func (h *Handlers) SuggestReply(c *gin.Context) {
	if h.gemini == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "reply suggestions are not configured"})
		return
	}

	id, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid conversation id"})
		return
	}

	ctx := c.Request.Context()
	conv, err := h.router.ResolveAdminReply(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	msgs, err := h.store.ListMessages(ctx, conv.ID, historyLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	suggestCtx, cancel := context.WithTimeout(ctx, h.geminiTimeout)
	defer cancel()

	suggestion, err := h.gemini.SuggestReply(suggestCtx, msgs)
	if err != nil {
		h.logger.ErrorContext(ctx, "Reply suggestion failed", "conversation_id", conv.ID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"message": "suggestion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

// WebSocket upgrades the connection and subscribes it to the requested
// channels after authorizing each one. Browsers cannot set the Authorization
// header on WebSocket connects, so the JWT and guest token ride in query
// parameters.
func (h *Handlers) WebSocket(c *gin.Context, jwtSecret string) {
	channels := splitChannels(c.Query("channels"))
	if len(channels) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "channels query parameter is required"})
		return
	}

	var claims *AuthClaims
	if tokenStr := c.Query("token"); tokenStr != "" {
		parsed, err := ParseToken(tokenStr, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		claims = parsed
	}
	guestToken := strings.TrimSpace(c.Query("guest_token"))

	for _, ch := range channels {
		if !channelAuthorized(ch, claims, guestToken) {
			c.JSON(http.StatusForbidden, gin.H{"message": "channel not authorized: " + ch})
			return
		}
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{})
	if err != nil {
		// Accept already wrote the error response.
		return
	}

	// Push-only: reads are discarded but control frames still get processed.
	// The returned context fires when the client disconnects, which the
	// hijacked request context does not reliably do.
	readCtx := conn.CloseRead(c.Request.Context())

	client := h.hub.AddClient(channels, conn)
	defer h.hub.RemoveClient(client)

	<-readCtx.Done()
}

// channelAuthorized enforces the channel access rules: the admin feed needs
// an admin token, a user channel belongs to that user or any admin, and a
// guest channel is open to whoever holds the exact token.
func channelAuthorized(channel string, claims *AuthClaims, guestToken string) bool {
	switch {
	case channel == support.ChannelAdmin:
		return claims != nil && claims.IsAdmin
	case strings.HasPrefix(channel, "support.user."):
		if claims == nil {
			return false
		}
		if claims.IsAdmin {
			return true
		}
		return channel == support.UserChannel(claims.UserID)
	case strings.HasPrefix(channel, "support.guest."):
		return guestToken != "" && channel == support.GuestChannel(guestToken)
	default:
		return false
	}
}

func splitChannels(raw string) []string {
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

func summarizeMessages(msgs []database.Message) []support.MessageSummary {
	out := make([]support.MessageSummary, 0, len(msgs))
	for i := range msgs {
		out = append(out, support.SummarizeMessage(&msgs[i]))
	}
	return out
}

func pathID(c *gin.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
