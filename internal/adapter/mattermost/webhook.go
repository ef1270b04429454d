// Package mattermost mirrors alert broadcasts into a Mattermost channel via
// an incoming webhook.
package mattermost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mattermost/mattermost/server/public/model"

	"github.com/couchcryptid/incident-alert-service/internal/alert"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// Category colors.
const (
	ColorCritical = "#FF0000"
	ColorActive   = "#FF9900"
	ColorObserved = "#FFFF00"
	ColorOther    = "#808080"
)

const botUsername = "incident-alerts"

// Webhook implements alert.Broadcaster.
type Webhook struct {
	http      *resty.Client
	url       string
	formatter *alert.Formatter
	logger    *slog.Logger
}

// NewWebhook creates a broadcaster posting to the incoming webhook url.
func NewWebhook(url string, formatter *alert.Formatter, timeout time.Duration, logger *slog.Logger) *Webhook {
	return &Webhook{
		http:      resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		url:       url,
		formatter: formatter,
		logger:    logger,
	}
}

func (w *Webhook) Broadcast(ctx context.Context, msg alert.Message) error {
	payload := model.IncomingWebhookRequest{
		Username:    botUsername,
		Attachments: []*model.SlackAttachment{w.attachment(msg.Report)},
	}

	resp, err := w.http.R().SetContext(ctx).SetBody(payload).Post(w.url)
	if err != nil {
		return alert.MarkTransient(fmt.Errorf("mattermost webhook: %w", err))
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("mattermost webhook: status %d: %s", resp.StatusCode(), resp.String())
	}
	w.logger.Debug("mattermost broadcast posted", "report_id", msg.Report.ID)
	return nil
}

func (w *Webhook) attachment(r domain.Report) *model.SlackAttachment {
	a := &model.SlackAttachment{
		Fallback: fmt.Sprintf("%s: %s", r.Category, r.Title),
		Color:    categoryColor(r.Category),
		Text:     fmt.Sprintf("#### %s %s", alert.CategoryEmoji(r.Category), r.Title),
		Footer:   "Always verify with local rapid response networks",
	}
	if url := w.formatter.MapURL(r); url != "" {
		a.TitleLink = url
		a.Title = "View on map"
	}

	fields := []*model.SlackAttachmentField{
		{Title: "Time", Value: w.formatter.LocalTime(r), Short: true},
	}
	if r.Address != "" {
		fields = append(fields, &model.SlackAttachmentField{Title: "Location", Value: r.Address, Short: true})
	}
	if r.Description != "" {
		fields = append(fields, &model.SlackAttachmentField{Title: "Details", Value: r.Description, Short: false})
	}
	a.Fields = fields
	return a
}

func categoryColor(c domain.Category) string {
	switch c {
	case domain.CategoryCritical:
		return ColorCritical
	case domain.CategoryActive:
		return ColorActive
	case domain.CategoryObserved:
		return ColorObserved
	default:
		return ColorOther
	}
}
