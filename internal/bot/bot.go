// Package bot routes chat commands to the ingestion service. Each command is
// an entry in a handler table; handlers receive an explicit Request and
// return the reply text.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/couchcryptid/incident-alert-service/internal/adapter/telegram"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
)

// Service is the slice of ingest.Service the bot drives.
type Service interface {
	Ingest(ctx context.Context, sub ingest.Submission) (ingest.Outcome, error)
	Subscribe(ctx context.Context, subscriberID, location string, radiusMiles float64) (ingest.SubscribeOutcome, error)
	Unsubscribe(ctx context.Context, subscriberID string) error
	Subscription(ctx context.Context, subscriberID string) (domain.Subscription, bool, error)
}

// Replier sends plain-text chat messages.
type Replier interface {
	Reply(ctx context.Context, chatID, text string) error
}

// Request is one parsed command invocation.
type Request struct {
	ChatID    string
	UserID    string
	Username  string
	FirstName string
	Args      string
	Member    *Member // nil for unknown callers
}

func (r Request) isAdmin() bool {
	return r.Member != nil && r.Member.Level == LevelAdmin
}

// Handler answers one command.
type Handler func(ctx context.Context, req Request) string

type command struct {
	handler   Handler
	usage     string
	adminOnly bool
}

// Config wires a Bot.
type Config struct {
	Service Service
	Trust   TrustStore
	Replier Replier
	AppURL  string
}

// Bot dispatches chat commands.
type Bot struct {
	service  Service
	trust    TrustStore
	replier  Replier
	appURL   string
	commands map[string]command
	logger   *slog.Logger
}

// New creates a bot with the full command table.
func New(cfg Config, logger *slog.Logger) *Bot {
	b := &Bot{
		service: cfg.Service,
		trust:   cfg.Trust,
		replier: cfg.Replier,
		appURL:  cfg.AppURL,
		logger:  logger,
	}
	b.commands = map[string]command{
		"start":      {handler: b.start, usage: "/start - Welcome message"},
		"help":       {handler: b.help, usage: "/help - List commands"},
		"map":        {handler: b.mapLink, usage: "/map - Link to the live map"},
		"status":     {handler: b.status, usage: "/status - Your verification and alert status"},
		"register":   {handler: b.register, usage: "/register - Request verified reporter status"},
		"report":     {handler: b.reportHelp, usage: "/report - How to submit a report"},
		"submit":     {handler: b.submit, usage: "/submit TYPE, Address, Description - Submit a report"},
		"alerts":     {handler: b.alerts, usage: "/alerts <zip|lat,lon|address> [radius] - Nearby alerts; /alerts off to stop"},
		"pending":    {handler: b.pending, usage: "/pending - Pending verification requests", adminOnly: true},
		"approve":    {handler: b.approve, usage: "/approve <user_id> - Verify a reporter", adminOnly: true},
		"deny":       {handler: b.deny, usage: "/deny <user_id> - Deny a request", adminOnly: true},
		"trusted":    {handler: b.trusted, usage: "/trusted - List known reporters", adminOnly: true},
		"addtrusted": {handler: b.addTrusted, usage: "/addtrusted <user_id> - Auto-approve a partner's reports", adminOnly: true},
	}
	return b
}

// SeedAdmins makes every id an admin member.
func (b *Bot) SeedAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := b.trust.PutMember(ctx, Member{UserID: id, Level: LevelAdmin, ApprovedBy: id, ApprovedAt: domain.Now()}); err != nil {
			return fmt.Errorf("seed admin %s: %w", id, err)
		}
	}
	return nil
}

// HandleUpdate answers a webhook update. Non-command messages are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) error {
	msg := u.Message
	if msg == nil {
		return nil
	}
	name, args, ok := msg.Command()
	if !ok {
		return nil
	}

	req := Request{ChatID: msg.Chat.ChatID(), UserID: msg.Chat.ChatID(), Args: args}
	if msg.From != nil {
		req.UserID = fmt.Sprint(msg.From.ID)
		req.Username = msg.From.Username
		req.FirstName = msg.From.FirstName
	}
	m, known, err := b.trust.Member(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("load member %s: %w", req.UserID, err)
	}
	if known {
		req.Member = &m
	}

	reply := b.Handle(ctx, name, req)
	if reply == "" {
		return nil
	}
	return b.replier.Reply(ctx, req.ChatID, reply)
}

// Handle runs the named command and returns the reply text.
func (b *Bot) Handle(ctx context.Context, name string, req Request) string {
	cmd, ok := b.commands[name]
	if !ok {
		return "Unknown command. Send /help for the list."
	}
	if cmd.adminOnly && !req.isAdmin() {
		return "❌ Admin only."
	}
	b.logger.Debug("bot command", "command", name, "user_id", req.UserID)
	return cmd.handler(ctx, req)
}

// notify sends a side message, such as telling admins about a request.
func (b *Bot) notify(ctx context.Context, chatID, text string) {
	if err := b.replier.Reply(ctx, chatID, text); err != nil {
		b.logger.Warn("bot notification failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) usage(admin bool) string {
	var public, privileged []string
	for _, c := range b.commands {
		if c.adminOnly {
			privileged = append(privileged, c.usage)
		} else {
			public = append(public, c.usage)
		}
	}
	sort.Strings(public)
	sort.Strings(privileged)

	var sb strings.Builder
	sb.WriteString(strings.Join(public, "\n"))
	if admin {
		sb.WriteString("\n\n🔐 Admin commands:\n")
		sb.WriteString(strings.Join(privileged, "\n"))
	}
	return sb.String()
}
