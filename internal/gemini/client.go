// Package gemini implements integration with Google's Gemini API. It drafts
// suggested admin replies from a support conversation's history.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/arabesque/support-relay/internal/config"
	"github.com/arabesque/support-relay/internal/database"
)

const systemInstruction = "You are drafting a reply on behalf of a dance studio's " +
	"support team. Given the conversation so far, write one concise, friendly " +
	"reply to the most recent customer message. Reply with the draft text only, " +
	"no preamble and no sign-off."

// Client drafts suggested replies for admins. Implementations must be safe
// for concurrent use.
type Client interface {
	SuggestReply(ctx context.Context, messages []database.Message) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	modelName   string
}

// NewClient creates a Gemini-backed suggestion client. Returns nil without
// error when no API token is configured; callers treat a nil client as the
// feature being disabled.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.Token == "" {
		log.Info("Gemini token not configured, reply suggestions disabled")
		return nil, nil
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Token,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		modelName:   cfg.Model,
	}, nil
}

func (c *sdkClient) SuggestReply(ctx context.Context, messages []database.Message) (string, error) {
	c.log.DebugContext(ctx, "Drafting reply suggestion", "message_count", len(messages))

	if len(messages) == 0 {
		return "", fmt.Errorf("conversation has no messages to draft from")
	}

	var contents []*genai.Content
	for i := range messages {
		m := &messages[i]
		var role genai.Role = genai.RoleUser
		if m.SenderType == database.SenderAdmin {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(formatMessageForPrompt(m), role))
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini suggestion failed", "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	return c.extractText(ctx, resp)
}

func (c *sdkClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("suggestion blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned empty content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func formatMessageForPrompt(m *database.Message) string {
	return fmt.Sprintf("[%s via %s] %s", m.SenderType, m.Source, m.Body)
}
