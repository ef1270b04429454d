// Package telegram talks to the Telegram Bot API: it delivers alert messages
// and parses webhook updates for the bot command router.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/couchcryptid/incident-alert-service/internal/alert"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// Error descriptions Telegram returns for recipients that can never be reached.
var unreachableDescriptions = []string{
	"chat not found",
	"user is deactivated",
	"bot was blocked by the user",
	"bot was kicked",
	"bot can't initiate conversation",
}

// Client implements alert.Channel over the sendMessage method.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a Bot API client for token. Requests are never retried:
// alert delivery is at-most-once.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + "/bot" + token).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, logger: logger}
}

type sendMessageRequest struct {
	ChatID             string              `json:"chat_id"`
	Text               string              `json:"text"`
	ParseMode          string              `json:"parse_mode,omitempty"`
	LinkPreviewOptions *linkPreviewOptions `json:"link_preview_options,omitempty"`
}

type linkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send delivers an HTML alert with link previews disabled.
func (c *Client) Send(ctx context.Context, chatID string, msg alert.Message) error {
	return c.send(ctx, sendMessageRequest{
		ChatID:             chatID,
		Text:               msg.Text,
		ParseMode:          "HTML",
		LinkPreviewOptions: &linkPreviewOptions{IsDisabled: true},
	})
}

// Reply sends a plain-text bot reply.
func (c *Client) Reply(ctx context.Context, chatID, text string) error {
	return c.send(ctx, sendMessageRequest{ChatID: chatID, Text: text})
}

func (c *Client) send(ctx context.Context, body sendMessageRequest) error {
	var result apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/sendMessage")
	if err != nil {
		return alert.MarkTransient(fmt.Errorf("telegram sendMessage: %w", err))
	}
	if resp.IsSuccess() && result.OK {
		return nil
	}

	apiErr := fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), result.Description)
	if isUnreachable(resp.StatusCode(), result.Description) {
		return alert.MarkPermanent(apiErr)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		c.logger.Warn("telegram rate limited", "chat_id", body.ChatID, "retry_after", result.Parameters.RetryAfter)
	}
	return alert.MarkTransient(apiErr)
}

func isUnreachable(status int, description string) bool {
	if status == http.StatusForbidden {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	d := strings.ToLower(description)
	for _, s := range unreachableDescriptions {
		if strings.Contains(d, s) {
			return true
		}
	}
	return false
}
