package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// SubscriptionRepository stores one subscription row per subscriber.
type SubscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSubscriptionRepository creates a repository over db.
func NewSubscriptionRepository(db *sql.DB, logger *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

func (r *SubscriptionRepository) Get(ctx context.Context, subscriberID string) (domain.Subscription, bool, error) {
	query := `
SELECT subscriber_id, latitude, longitude, radius_miles, active, updated_at
FROM subscriptions WHERE subscriber_id = $1;
`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, subscriberID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscription{}, false, nil
	}
	if err != nil {
		return domain.Subscription{}, false, fmt.Errorf("get subscription %s: %w", subscriberID, err)
	}
	return sub, true, nil
}

// Put inserts or replaces the subscriber's row. Last write wins.
func (r *SubscriptionRepository) Put(ctx context.Context, sub domain.Subscription) error {
	query := `
INSERT INTO subscriptions (subscriber_id, latitude, longitude, radius_miles, active, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (subscriber_id) DO UPDATE SET
    latitude     = EXCLUDED.latitude,
    longitude    = EXCLUDED.longitude,
    radius_miles = EXCLUDED.radius_miles,
    active       = EXCLUDED.active,
    updated_at   = EXCLUDED.updated_at;
`
	_, err := r.db.ExecContext(ctx, query,
		sub.SubscriberID,
		sub.Point.Lat,
		sub.Point.Lon,
		sub.RadiusMiles,
		sub.Active,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.SubscriberID, err)
	}
	return nil
}

// SetActive flips the active flag. Unknown subscribers are ignored.
func (r *SubscriptionRepository) SetActive(ctx context.Context, subscriberID string, active bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = $2, updated_at = $3 WHERE subscriber_id = $1;`,
		subscriberID, active, at,
	)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", subscriberID, err)
	}
	return nil
}

func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	query := `
SELECT subscriber_id, latitude, longitude, radius_miles, active, updated_at
FROM subscriptions WHERE active = TRUE;
`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

func scanSubscription(row rowScanner) (domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.SubscriberID,
		&sub.Point.Lat,
		&sub.Point.Lon,
		&sub.RadiusMiles,
		&sub.Active,
		&sub.UpdatedAt,
	)
	return sub, err
}
