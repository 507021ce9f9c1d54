// Package web exposes the HTTP surface of the support relay: the guest and
// user chat endpoints, the admin panel API, the Telegram webhook, and the
// WebSocket push endpoint.
package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arabesque/support-relay/internal/config"
	"github.com/arabesque/support-relay/internal/logger"
)

// NewServer builds the configured HTTP server with all routes registered.
func NewServer(cfg *config.Config, h *Handlers, log *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(log))
	router.Use(corsMiddleware())

	jwtSecret := cfg.Auth.JWTSecret

	router.GET("/healthz", h.Healthz)

	// The secret in the path is the webhook's only authentication.
	router.POST("/telegram/webhook/:secret", h.TelegramWebhook)

	supportGroup := router.Group("/support", OptionalAuth(jwtSecret))
	{
		supportGroup.GET("/current", h.CurrentConversation)
		supportGroup.POST("/messages", h.PostSupportMessage)
	}

	admin := router.Group("/admin/support", RequireAuth(jwtSecret), RequireAdmin())
	{
		admin.POST("/messages", h.PostAdminMessage)
		admin.GET("/conversations", h.ListConversations)
		admin.GET("/conversations/:id", h.GetConversation)
		admin.PATCH("/conversations/:id/status", h.UpdateConversationStatus)
		admin.PATCH("/conversations/:id/assign", h.AssignConversation)
		admin.POST("/conversations/:id/suggest", h.SuggestReply)
		admin.GET("/telegram-links", h.ListTelegramLinks)
		admin.PUT("/telegram-links/:userId", h.PutTelegramLink)
		admin.PATCH("/telegram-links/:userId/active", h.SetTelegramLinkActive)
		admin.GET("/settings/:key", h.GetSetting)
		admin.PUT("/settings/:key", h.PutSetting)
	}

	router.GET("/ws", func(c *gin.Context) {
		h.WebSocket(c, jwtSecret)
	})

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Guest-Token")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
