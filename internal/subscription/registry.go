// Package subscription keeps each subscriber's alert location and radius and
// answers "who is near this point" queries.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

var (
	// ErrInvalidLocation means the point is missing or out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRadius means the radius is outside [domain.MinRadiusMiles, domain.MaxRadiusMiles].
	ErrInvalidRadius = errors.New("invalid radius")
)

// Store persists subscriptions, one per subscriber id.
type Store interface {
	Get(ctx context.Context, subscriberID string) (domain.Subscription, bool, error)
	Put(ctx context.Context, sub domain.Subscription) error
	SetActive(ctx context.Context, subscriberID string, active bool, at time.Time) error
	ListActive(ctx context.Context) ([]domain.Subscription, error)
}

// Match is an active subscription whose radius covers a queried point.
type Match struct {
	Subscription  domain.Subscription
	DistanceMiles float64
}

// Registry validates and queries subscriptions.
type Registry struct {
	store  Store
	logger *slog.Logger
}

// NewRegistry creates a registry over store.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Upsert registers or replaces the subscriber's location and radius and
// marks the subscription active. The zero point counts as unset.
func (r *Registry) Upsert(ctx context.Context, subscriberID string, p domain.Point, radiusMiles float64) (domain.Subscription, error) {
	if !p.Valid() || p.IsZero() {
		return domain.Subscription{}, ErrInvalidLocation
	}
	if !domain.ValidRadius(radiusMiles) {
		return domain.Subscription{}, ErrInvalidRadius
	}

	sub := domain.Subscription{
		SubscriberID: subscriberID,
		Point:        p,
		RadiusMiles:  radiusMiles,
		Active:       true,
		UpdatedAt:    domain.Now(),
	}
	if err := r.store.Put(ctx, sub); err != nil {
		return domain.Subscription{}, fmt.Errorf("store subscription: %w", err)
	}
	r.logger.Info("subscription saved", "subscriber_id", subscriberID, "radius_miles", radiusMiles)
	return sub, nil
}

// Deactivate stops alerts for the subscriber. It is idempotent and a no-op
// for unknown subscribers.
func (r *Registry) Deactivate(ctx context.Context, subscriberID string) error {
	if err := r.store.SetActive(ctx, subscriberID, false, domain.Now()); err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	r.logger.Info("subscription deactivated", "subscriber_id", subscriberID)
	return nil
}

// Get returns the subscriber's subscription, active or not.
func (r *Registry) Get(ctx context.Context, subscriberID string) (domain.Subscription, bool, error) {
	sub, ok, err := r.store.Get(ctx, subscriberID)
	if err != nil {
		return domain.Subscription{}, false, fmt.Errorf("get subscription: %w", err)
	}
	return sub, ok, nil
}

// FindWithinRadius returns every active subscription within its own radius
// of p. Order is unspecified.
func (r *Registry) FindWithinRadius(ctx context.Context, p domain.Point) ([]Match, error) {
	subs, err := r.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	var matches []Match
	for _, s := range subs {
		if !s.Active {
			continue
		}
		if d, ok := s.Covers(p); ok {
			matches = append(matches, Match{Subscription: s, DistanceMiles: d})
		}
	}
	return matches, nil
}
