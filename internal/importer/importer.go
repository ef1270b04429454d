// Package importer backfills reports from an aggregated feed export. Entries
// are ingested one at a time through the normal ingestion path, so the
// geocoder throttle and dedup index apply exactly as for live submissions.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/incident-alert-service/internal/dedup"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
)

// Ingester accepts submissions.
type Ingester interface {
	Ingest(ctx context.Context, sub ingest.Submission) (ingest.Outcome, error)
}

// Summary counts what happened to each sighting.
type Summary struct {
	Imported int
	Skipped  int
	Failed   int
}

func (s Summary) String() string {
	return fmt.Sprintf("imported: %d, skipped: %d, failed: %d", s.Imported, s.Skipped, s.Failed)
}

// Options tunes an Importer. Location is the zone sighting times are given
// in (nil means UTC). Notify dispatches alerts for imported reports.
// MaxAttempts bounds retries of a submission whose store failed.
type Options struct {
	Location    *time.Location
	Notify      bool
	MaxAttempts int
	Clock       clockwork.Clock
}

// Importer feeds sightings into an Ingester.
type Importer struct {
	ingester    Ingester
	loc         *time.Location
	notify      bool
	maxAttempts int
	clock       clockwork.Clock
	logger      *slog.Logger
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// New creates an importer.
func New(ingester Ingester, opts Options, logger *slog.Logger) *Importer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Importer{
		ingester:    ingester,
		loc:         opts.Location,
		notify:      opts.Notify,
		maxAttempts: opts.MaxAttempts,
		clock:       opts.Clock,
		logger:      logger,
	}
}

// Run ingests every sighting in order. It stops early only when ctx is done.
func (im *Importer) Run(ctx context.Context, f File) (Summary, error) {
	source := f.Source
	if source == "" {
		source = "aggregated feed"
	}
	today := domain.Now().In(im.loc)
	im.logger.Info("import started", "sightings", len(f.Sightings), "source", source)

	var sum Summary
	for i, s := range f.Sightings {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		out, err := im.ingestWithRetry(ctx, im.submission(s, source, today))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			im.logger.Error("import failed", "index", i, "address", s.Address, "error", err)
		case out.Accepted:
			sum.Imported++
			im.logger.Info("imported", "index", i, "report_id", out.Report.ID, "address", s.Address)
		case out.Reason == ingest.ReasonDuplicate:
			sum.Skipped++
			im.logger.Info("skipped duplicate", "index", i, "address", s.Address)
		default:
			sum.Failed++
			im.logger.Warn("rejected", "index", i, "address", s.Address, "reason", out.Reason)
		}
	}

	im.logger.Info("import finished", "imported", sum.Imported, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (im *Importer) submission(s Sighting, source string, today time.Time) ingest.Submission {
	sub := ingest.Submission{
		Source:      domain.SourceAggregated,
		Category:    string(domain.CategoryFromLabel(s.Type)),
		Address:     s.Address,
		Description: description(s, source),
		Confirmed:   s.Confirmed,
		Mode:        dedup.ModeFuzzyPrefix,
		Status:      domain.StatusApproved,
		Quiet:       !im.notify,
	}
	if t, ok := ClockOn(s.TimeOccurred, today); ok {
		sub.OccurredAt = t
	}
	return sub
}

func description(s Sighting, source string) string {
	d := "Activity reported at " + s.Address + "."
	if s.TimeOccurred != "" {
		d += " Time occurred: " + s.TimeOccurred + "."
	}
	return d + " Source: " + source
}

// ingestWithRetry retries store failures with capped exponential backoff.
// Rejections are final and returned as-is.
func (im *Importer) ingestWithRetry(ctx context.Context, sub ingest.Submission) (ingest.Outcome, error) {
	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= im.maxAttempts; attempt++ {
		out, err := im.ingester.Ingest(ctx, sub)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == im.maxAttempts {
			break
		}
		im.logger.Warn("ingest failed, retrying", "address", sub.Address, "attempt", attempt, "backoff", backoff, "error", err)
		if !im.sleep(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff)
	}
	return ingest.Outcome{}, lastErr
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func (im *Importer) sleep(ctx context.Context, d time.Duration) bool {
	timer := im.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
