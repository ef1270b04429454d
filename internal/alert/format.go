package alert

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

const feetPerMile = 5280

// Category emojis.
const (
	EmojiCritical = "🔴"
	EmojiActive   = "🟠"
	EmojiObserved = "🟡"
	EmojiOther    = "⚪"
	EmojiFallback = "📍"
)

// CategoryEmoji returns the marker shown before a report headline.
func CategoryEmoji(c domain.Category) string {
	switch c {
	case domain.CategoryCritical:
		return EmojiCritical
	case domain.CategoryActive:
		return EmojiActive
	case domain.CategoryObserved:
		return EmojiObserved
	case domain.CategoryOther:
		return EmojiOther
	default:
		return EmojiFallback
	}
}

// FormatDistance renders feet under one mile, otherwise miles to one decimal.
func FormatDistance(miles float64) string {
	if miles < 1 {
		return fmt.Sprintf("%d ft", int(math.Round(miles*feetPerMile)))
	}
	return fmt.Sprintf("%.1f mi", miles)
}

// Formatter renders reports into channel messages.
type Formatter struct {
	appURL   string
	location *time.Location
}

// NewFormatter creates a formatter that links to appURL and shows times in
// loc. A nil loc uses UTC.
func NewFormatter(appURL string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{appURL: strings.TrimRight(appURL, "/"), location: loc}
}

// Broadcast formats the shared-channel message.
func (f *Formatter) Broadcast(r domain.Report) Message {
	return Message{Report: r, Text: f.body(r)}
}

// Direct formats a personalized message for a subscriber distanceMiles away.
func (f *Formatter) Direct(r domain.Report, distanceMiles float64) Message {
	header := fmt.Sprintf("🚨 <b>Alert: %s from your location</b>\n\n", FormatDistance(distanceMiles))
	return Message{Report: r, DistanceMiles: distanceMiles, Text: header + f.body(r)}
}

// MapURL links to the report on the map.
func (f *Formatter) MapURL(r domain.Report) string {
	if r.ID == "" {
		return f.appURL
	}
	return f.appURL + "/?report=" + r.ID
}

// LocalTime renders when the report occurred in the formatter's zone.
func (f *Formatter) LocalTime(r domain.Report) string {
	at := r.OccurredAt
	if at.IsZero() {
		at = r.IngestedAt
	}
	return at.In(f.location).Format("3:04 PM")
}

func (f *Formatter) body(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s: %s</b>\n\n", CategoryEmoji(r.Category), r.Category, html.EscapeString(r.Title))
	if r.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(r.Address))
	}
	fmt.Fprintf(&b, "🕐 %s\n\n", f.LocalTime(r))
	if r.Description != "" {
		b.WriteString(html.EscapeString(r.Description))
		b.WriteString("\n\n")
	}
	if f.appURL != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">View on map →</a>\n\n", html.EscapeString(f.MapURL(r)))
	}
	b.WriteString("⚠️ Always verify with local rapid response networks")
	return b.String()
}
