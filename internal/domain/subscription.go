package domain

import "time"

// Subscription radius bounds, in miles.
const (
	MinRadiusMiles     = 1.0
	MaxRadiusMiles     = 50.0
	DefaultRadiusMiles = 5.0
)

// Subscription is a subscriber's registered alert location. There is at most
// one per subscriber; a new registration replaces the previous one.
type Subscription struct {
	SubscriberID string    `json:"subscriber_id"`
	Point        Point     `json:"point"`
	RadiusMiles  float64   `json:"radius_miles"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRadius reports whether r lies within [MinRadiusMiles, MaxRadiusMiles].
func ValidRadius(r float64) bool {
	return r >= MinRadiusMiles && r <= MaxRadiusMiles
}

// Covers reports whether p lies within the subscription's radius.
func (s Subscription) Covers(p Point) (float64, bool) {
	d := Distance(s.Point, p)
	return d, d <= s.RadiusMiles
}
