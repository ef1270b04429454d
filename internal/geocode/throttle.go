package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// MinInterval is the lowest spacing allowed between two provider requests.
const MinInterval = time.Second

// Throttle serializes callers and spaces successive requests by at least its
// interval. One Throttle is shared by every lookup in the process.
type Throttle struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a throttle. Intervals below MinInterval are raised to it.
// A nil clock uses real time.
func NewThrottle(interval time.Duration, clock clockwork.Clock) *Throttle {
	if interval < MinInterval {
		interval = MinInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Throttle{clock: clock, interval: interval}
}

// Interval returns the enforced spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Wait blocks until the next request may start, or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := t.last.Add(t.interval).Sub(t.clock.Now()); wait > 0 {
			timer := t.clock.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.Chan():
			}
		}
	}
	t.last = t.clock.Now()
	return nil
}

// ThrottledLookup spaces calls to the wrapped provider through a Throttle.
// Place it below any cache so cached answers never wait.
type ThrottledLookup struct {
	inner    domain.Lookup
	throttle *Throttle
}

// NewThrottledLookup wraps inner with throttle.
func NewThrottledLookup(inner domain.Lookup, throttle *Throttle) *ThrottledLookup {
	return &ThrottledLookup{inner: inner, throttle: throttle}
}

func (l *ThrottledLookup) Search(ctx context.Context, query string) (domain.GeocodeResult, bool, error) {
	if err := l.throttle.Wait(ctx); err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("geocode throttle: %w", err)
	}
	return l.inner.Search(ctx, query)
}
