package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category is the urgency classification of a report.
type Category string

const (
	CategoryCritical Category = "CRITICAL"
	CategoryActive   Category = "ACTIVE"
	CategoryObserved Category = "OBSERVED"
	CategoryOther    Category = "OTHER"
)

// Categories lists every valid category, most urgent first.
var Categories = []Category{CategoryCritical, CategoryActive, CategoryObserved, CategoryOther}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// CategoryFromLabel maps a free-form feed label such as "Critical Alert" or
// "observed" onto a category, falling back to OTHER.
func CategoryFromLabel(label string) Category {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "critical"):
		return CategoryCritical
	case strings.Contains(l, "active"):
		return CategoryActive
	case strings.Contains(l, "observed"):
		return CategoryObserved
	default:
		return CategoryOther
	}
}

// Source identifies where a report entered the system.
type Source string

const (
	SourceWeb        Source = "WEB"
	SourceTelegram   Source = "TELEGRAM"
	SourceAggregated Source = "AGGREGATED"
)

// Status is the moderation state the core needs to know about.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ErrReportNotFound is returned by report stores for unknown ids.
var ErrReportNotFound = errors.New("report not found")

const (
	maxTitleLen       = 100
	maxDescriptionLen = 2000
)

// Report is an accepted sighting as stored by the persistence collaborator.
type Report struct {
	ID          string    `json:"id"`
	Point       Point     `json:"point"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	Region      string    `json:"region,omitempty"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SourceKey   string    `json:"source_key"`
	Source      Source    `json:"source"`
	Status      Status    `json:"status"`
	Confirmed   bool      `json:"confirmed,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// HasLocation reports whether the report carries usable coordinates.
func (r Report) HasLocation() bool {
	return !r.Point.IsZero() && r.Point.Valid()
}

// ReportTitle builds the map title "<CATEGORY> - <address>", bounded in length.
func ReportTitle(category Category, address string) string {
	return truncateRunes(fmt.Sprintf("%s - %s", category, address), maxTitleLen)
}

// TruncateDescription bounds free text to the stored description length.
func TruncateDescription(s string) string {
	return truncateRunes(s, maxDescriptionLen)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
