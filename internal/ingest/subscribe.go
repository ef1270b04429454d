package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/geocode"
	"github.com/couchcryptid/incident-alert-service/internal/subscription"
)

// Registry stores subscriber locations.
type Registry interface {
	Upsert(ctx context.Context, subscriberID string, p domain.Point, radiusMiles float64) (domain.Subscription, error)
	Deactivate(ctx context.Context, subscriberID string) error
	Get(ctx context.Context, subscriberID string) (domain.Subscription, bool, error)
}

// SubscribeOutcome is the result of one Subscribe call.
type SubscribeOutcome struct {
	OK           bool                 `json:"ok"`
	Subscription *domain.Subscription `json:"subscription,omitempty"`
	Resolved     string               `json:"resolved,omitempty"` // place the location text geocoded to
	Reason       Reason               `json:"reason,omitempty"`
}

var (
	coordsRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)
	zipRe    = regexp.MustCompile(`^\d{5}$`)
)

// Subscribe registers subscriberID for alerts around location, which may be
// "lat,lon", a five-digit ZIP code, or an address. A zero radius means
// domain.DefaultRadiusMiles.
func (s *Service) Subscribe(ctx context.Context, subscriberID, location string, radiusMiles float64) (SubscribeOutcome, error) {
	if radiusMiles == 0 {
		radiusMiles = domain.DefaultRadiusMiles
	}
	if !domain.ValidRadius(radiusMiles) {
		return SubscribeOutcome{Reason: ReasonInvalidRadius}, nil
	}

	p, resolved, err := s.locate(ctx, location)
	if errors.Is(err, errUnlocatable) {
		return SubscribeOutcome{Reason: ReasonInvalidLocation}, nil
	}
	if err != nil {
		return SubscribeOutcome{}, err
	}

	sub, err := s.subscriptions.Upsert(ctx, subscriberID, p, radiusMiles)
	switch {
	case errors.Is(err, subscription.ErrInvalidLocation):
		return SubscribeOutcome{Reason: ReasonInvalidLocation}, nil
	case errors.Is(err, subscription.ErrInvalidRadius):
		return SubscribeOutcome{Reason: ReasonInvalidRadius}, nil
	case err != nil:
		return SubscribeOutcome{}, fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscription updated", "subscriber_id", subscriberID, "radius_miles", radiusMiles)
	return SubscribeOutcome{OK: true, Subscription: &sub, Resolved: resolved}, nil
}

var errUnlocatable = errors.New("location not resolvable")

func (s *Service) locate(ctx context.Context, location string) (domain.Point, string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return domain.Point{}, "", errUnlocatable
	}
	if m := coordsRe.FindStringSubmatch(location); m != nil {
		lat, _ := strconv.ParseFloat(m[1], 64)
		lon, _ := strconv.ParseFloat(m[2], 64)
		p := domain.Point{Lat: lat, Lon: lon}
		if !p.Valid() {
			return domain.Point{}, "", errUnlocatable
		}
		return p, "", nil
	}

	query := location
	if zipRe.MatchString(location) {
		// Bare ZIPs are ambiguous to the geocoder without a region.
		query = location + ", MN"
	}
	res, err := s.geocoder.Resolve(ctx, query)
	if errors.Is(err, geocode.ErrNotFound) {
		return domain.Point{}, "", errUnlocatable
	}
	if err != nil {
		return domain.Point{}, "", fmt.Errorf("subscribe: %w", err)
	}
	return res.Point(), describe(res), nil
}

func describe(r domain.GeocodeResult) string {
	switch {
	case r.City != "" && r.Region != "":
		return r.City + ", " + r.Region
	case r.City != "":
		return r.City
	default:
		return r.Region
	}
}

// Unsubscribe turns alerts off for subscriberID. Unknown ids are a no-op.
func (s *Service) Unsubscribe(ctx context.Context, subscriberID string) error {
	return s.subscriptions.Deactivate(ctx, subscriberID)
}

// Subscription returns the stored subscription for subscriberID.
func (s *Service) Subscription(ctx context.Context, subscriberID string) (domain.Subscription, bool, error) {
	return s.subscriptions.Get(ctx, subscriberID)
}
