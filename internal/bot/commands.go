package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
)

const submitFormat = "/submit TYPE, Address, Description\n\n" +
	"Types: CRITICAL, ACTIVE, OBSERVED, OTHER\n\n" +
	"Example:\n/submit ACTIVE, Lake Street & Chicago Ave, Two unmarked vehicles"

const failed = "❌ Something went wrong. Please try again or use the web form: "

func (b *Bot) start(_ context.Context, req Request) string {
	return "👋 This bot helps the Minneapolis community track enforcement activity.\n\n" +
		"📍 View the map: " + b.appURL + "\n\n" +
		b.usage(req.isAdmin())
}

func (b *Bot) help(_ context.Context, req Request) string {
	return b.usage(req.isAdmin())
}

func (b *Bot) mapLink(context.Context, Request) string {
	return "📍 View the live map:\n" + b.appURL
}

func (b *Bot) status(ctx context.Context, req Request) string {
	var lines []string
	switch {
	case req.Member != nil:
		review := "expedited for review"
		if req.Member.Level.AutoApproves() {
			review = "auto-approved"
		}
		lines = append(lines, fmt.Sprintf("✅ You are a %s reporter. Reports you submit with /submit are %s.", req.Member.Level, review))
	default:
		if _, pending, err := b.trust.Request(ctx, req.UserID); err == nil && pending {
			lines = append(lines, "⏳ Your verification request is pending review.")
		} else {
			lines = append(lines, "You are not verified. Use /register to request verified status, or report anonymously via the web: "+b.appURL)
		}
	}

	sub, ok, err := b.service.Subscription(ctx, req.ChatID)
	switch {
	case err != nil:
		b.logger.Error("load subscription", "subscriber_id", req.ChatID, "error", err)
	case ok && sub.Active:
		lines = append(lines, fmt.Sprintf("🔔 Alerts on within %g mi of %s.", sub.RadiusMiles, sub.Point))
	default:
		lines = append(lines, "🔕 Alerts off. Use /alerts <zip> to turn them on.")
	}
	return strings.Join(lines, "\n\n")
}

func (b *Bot) register(ctx context.Context, req Request) string {
	if req.Member != nil {
		return fmt.Sprintf("✅ You are already a %s reporter.", req.Member.Level)
	}
	if _, pending, err := b.trust.Request(ctx, req.UserID); err == nil && pending {
		return "⏳ Your request is already pending. An admin will review it soon."
	}

	r := VerificationRequest{UserID: req.UserID, Username: req.Username, FirstName: req.FirstName, RequestedAt: domain.Now()}
	if err := b.trust.AddRequest(ctx, r); err != nil {
		b.logger.Error("add verification request", "user_id", req.UserID, "error", err)
		return failed + b.appURL
	}

	admins, err := b.trust.Members(ctx)
	if err != nil {
		b.logger.Error("list members", "error", err)
	}
	for _, m := range admins {
		if m.Level == LevelAdmin {
			b.notify(ctx, m.UserID, fmt.Sprintf("🆕 New verification request from %s (ID %s)\n\n/approve %s\n/deny %s",
				r.Name(), r.UserID, r.UserID, r.UserID))
		}
	}
	return "📝 Verification request submitted! An admin will review it and you will be notified.\n\n" +
		"Meanwhile you can report via the web: " + b.appURL
}

func (b *Bot) reportHelp(_ context.Context, req Request) string {
	if req.Member == nil {
		return "❌ You need to be verified to submit reports via the bot. Use /register, or report anonymously via the web: " + b.appURL
	}
	return "📍 To submit a report, use this format:\n\n" + submitFormat
}

func (b *Bot) submit(ctx context.Context, req Request) string {
	if req.Member == nil {
		return "❌ You need to be verified. Use /register first."
	}
	parts := strings.Split(req.Args, ",")
	if len(parts) < 3 {
		return "Please use the format:\n" + submitFormat
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	sub := ingest.Submission{
		Source:      domain.SourceTelegram,
		Category:    parts[0],
		Address:     parts[1],
		Description: strings.Join(parts[2:], ", "),
		Status:      domain.StatusPending,
	}
	if req.Member.Level.AutoApproves() {
		sub.Status = domain.StatusApproved
	}

	out, err := b.service.Ingest(ctx, sub)
	if err != nil {
		b.logger.Error("bot submit", "user_id", req.UserID, "error", err)
		return failed + b.appURL
	}
	if !out.Accepted {
		return rejectionText(out.Reason)
	}

	reply := fmt.Sprintf("✅ Report submitted!\n\n%s %s\n\n", out.Report.Category, out.Report.Address)
	if sub.Status == domain.StatusApproved {
		reply += "Your report was auto-approved and is now on the map."
	} else {
		reply += "Your report will appear on the map once a moderator approves it."
	}
	return reply + "\n\n📍 " + b.appURL
}

func rejectionText(r ingest.Reason) string {
	switch r {
	case ingest.ReasonInvalidCategory:
		return "❌ Invalid type. Use: CRITICAL, ACTIVE, OBSERVED, or OTHER"
	case ingest.ReasonDuplicate:
		return "ℹ️ This location has already been reported."
	case ingest.ReasonGeocodeFailed:
		return "❌ Could not find that address. Try adding a cross street or city."
	case ingest.ReasonOutOfArea:
		return "❌ That location is outside the service area."
	default:
		return "❌ Report not accepted: " + string(r)
	}
}

func (b *Bot) alerts(ctx context.Context, req Request) string {
	args := strings.TrimSpace(req.Args)
	switch strings.ToLower(args) {
	case "":
		return "Usage: /alerts <zip|lat,lon|address> [radius in miles, default 5]\n/alerts off to stop."
	case "off", "stop":
		if err := b.service.Unsubscribe(ctx, req.ChatID); err != nil {
			b.logger.Error("unsubscribe", "subscriber_id", req.ChatID, "error", err)
			return failed + b.appURL
		}
		return "🔕 Alerts turned off."
	}

	location, radius := splitRadius(args)
	out, err := b.service.Subscribe(ctx, req.ChatID, location, radius)
	if err != nil {
		b.logger.Error("subscribe", "subscriber_id", req.ChatID, "error", err)
		return failed + b.appURL
	}
	switch out.Reason {
	case ingest.ReasonInvalidRadius:
		return fmt.Sprintf("❌ Radius must be between %g and %g miles.", domain.MinRadiusMiles, domain.MaxRadiusMiles)
	case ingest.ReasonInvalidLocation:
		return "❌ Could not find that location. Send a ZIP code, \"lat,lon\", or an address."
	}

	where := out.Resolved
	if where == "" {
		where = out.Subscription.Point.String()
	}
	return fmt.Sprintf("🔔 Alerts on for reports within %g mi of %s.", out.Subscription.RadiusMiles, where)
}

// splitRadius peels a trailing number off "location [radius]". A lone token
// is always the location, so a bare ZIP is never read as a radius.
func splitRadius(args string) (string, float64) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return args, 0
	}
	r, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return args, 0
	}
	return strings.Join(fields[:len(fields)-1], " "), r
}

func (b *Bot) pending(ctx context.Context, _ Request) string {
	reqs, err := b.trust.Requests(ctx)
	if err != nil {
		b.logger.Error("list requests", "error", err)
		return failed + b.appURL
	}
	if len(reqs) == 0 {
		return "No pending verification requests."
	}
	var sb strings.Builder
	sb.WriteString("📋 Pending requests:\n\n")
	for _, r := range reqs {
		fmt.Fprintf(&sb, "• %s (ID %s)\n  /approve %s | /deny %s\n\n", r.Name(), r.UserID, r.UserID, r.UserID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) approve(ctx context.Context, req Request) string {
	id := strings.TrimSpace(req.Args)
	if id == "" {
		return "Usage: /approve <user_id>"
	}
	r, ok, err := b.trust.Request(ctx, id)
	if err != nil || !ok {
		return "No pending request found for that user ID."
	}

	m := Member{
		UserID:     r.UserID,
		Username:   r.Username,
		FirstName:  r.FirstName,
		Level:      LevelVerified,
		ApprovedBy: req.UserID,
		ApprovedAt: domain.Now(),
	}
	if err := b.trust.PutMember(ctx, m); err != nil {
		b.logger.Error("approve member", "user_id", id, "error", err)
		return failed + b.appURL
	}
	if err := b.trust.RemoveRequest(ctx, id); err != nil {
		b.logger.Warn("remove request", "user_id", id, "error", err)
	}
	b.notify(ctx, id, "🎉 Your verification request was approved! You can now submit reports with /report or /submit.")
	return fmt.Sprintf("✅ Approved %s as verified reporter.", m.Name())
}

func (b *Bot) deny(ctx context.Context, req Request) string {
	id := strings.TrimSpace(req.Args)
	if id == "" {
		return "Usage: /deny <user_id>"
	}
	r, ok, err := b.trust.Request(ctx, id)
	if err != nil || !ok {
		return "No pending request found for that user ID."
	}
	if err := b.trust.RemoveRequest(ctx, id); err != nil {
		b.logger.Error("deny request", "user_id", id, "error", err)
		return failed + b.appURL
	}
	b.notify(ctx, id, "Your verification request was not approved at this time. You can still report anonymously via the web: "+b.appURL)
	return fmt.Sprintf("❌ Denied request from %s.", r.Name())
}

func (b *Bot) trusted(ctx context.Context, _ Request) string {
	members, err := b.trust.Members(ctx)
	if err != nil {
		b.logger.Error("list members", "error", err)
		return failed + b.appURL
	}
	if len(members) == 0 {
		return "No trusted users yet."
	}
	var sb strings.Builder
	sb.WriteString("👥 Known reporters:\n")
	for _, m := range members {
		fmt.Fprintf(&sb, "\n• %s (ID %s) - %s", m.Name(), m.UserID, m.Level)
	}
	return sb.String()
}

func (b *Bot) addTrusted(ctx context.Context, req Request) string {
	id := strings.TrimSpace(req.Args)
	if id == "" {
		return "Usage: /addtrusted <user_id>"
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return "Usage: /addtrusted <user_id>"
	}
	m, ok, err := b.trust.Member(ctx, id)
	if err != nil {
		b.logger.Error("load member", "user_id", id, "error", err)
		return failed + b.appURL
	}
	if ok && m.Level == LevelAdmin {
		return fmt.Sprintf("%s is already an admin.", m.Name())
	}
	if !ok {
		m = Member{UserID: id}
	}
	m.Level = LevelTrusted
	m.ApprovedBy = req.UserID
	m.ApprovedAt = domain.Now()
	if err := b.trust.PutMember(ctx, m); err != nil {
		b.logger.Error("add trusted", "user_id", id, "error", err)
		return failed + b.appURL
	}
	_ = b.trust.RemoveRequest(ctx, id)
	return fmt.Sprintf("✅ Added %s as trusted partner. Their reports will be auto-approved.", m.Name())
}
