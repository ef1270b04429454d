// Package ingest is the entry point every report source goes through: it
// deduplicates and geocodes a submission, stores the accepted report, puts it
// on the event feed, and hands cleared reports to the alert dispatcher.
//
// Subscriptions are managed here too, because a subscriber's location may be
// a ZIP code or free text that needs the same geocoder.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/incident-alert-service/internal/alert"
	"github.com/couchcryptid/incident-alert-service/internal/dedup"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/geocode"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

// Reason explains why a submission or subscription was not accepted.
type Reason string

const (
	ReasonGeocodeFailed   Reason = "GEOCODE_FAILED"
	ReasonDuplicate       Reason = "DUPLICATE"
	ReasonOutOfArea       Reason = "OUT_OF_AREA"
	ReasonInvalidCategory Reason = "INVALID_CATEGORY"
	ReasonInvalidLocation Reason = "INVALID_LOCATION"
	ReasonInvalidRadius   Reason = "INVALID_RADIUS"
)

const unknownLocation = "Unknown location"

// ReportStore persists accepted reports.
type ReportStore interface {
	Create(ctx context.Context, r domain.Report) error
	Get(ctx context.Context, id string) (domain.Report, error)
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Report, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error
}

// Geocoder resolves free-text addresses.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (domain.GeocodeResult, error)
}

// Deduper decides whether a candidate was already seen.
type Deduper interface {
	IsDuplicate(ctx context.Context, mode dedup.Mode, c dedup.Candidate) (bool, error)
	Register(ctx context.Context, c dedup.Candidate) error
}

// Notifier fans a report out to subscribers.
type Notifier interface {
	Dispatch(ctx context.Context, r domain.Report) (alert.Result, error)
}

// Feed receives every accepted report. Publishing is best-effort.
type Feed interface {
	Publish(ctx context.Context, r domain.Report)
}

// Submission is a raw report from any source. A non-zero Point skips
// geocoding; Mode and Status override the source's defaults. Quiet stores an
// approved report without alerting, for backfills.
type Submission struct {
	Source      domain.Source
	Category    string
	Address     string
	Description string
	Point       domain.Point
	Confirmed   bool
	OccurredAt  time.Time
	Mode        dedup.Mode
	Status      domain.Status
	Quiet       bool
}

// Outcome is the result of one Ingest call. Dispatch is set when the report
// was cleared for alerts and handed to the dispatcher.
type Outcome struct {
	Accepted bool           `json:"accepted"`
	Report   *domain.Report `json:"report,omitempty"`
	Reason   Reason         `json:"reason,omitempty"`
	Dispatch *alert.Result  `json:"dispatch,omitempty"`
}

func rejected(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// Config wires a Service. Feed and ServiceArea are optional.
type Config struct {
	Reports       ReportStore
	Dedup         Deduper
	Geocoder      Geocoder
	Subscriptions Registry
	Notifier      Notifier
	Feed          Feed
	ServiceArea   *domain.Bounds // bounds for aggregated-feed reports
}

// Service implements report ingestion and subscription management.
type Service struct {
	reports       ReportStore
	dedup         Deduper
	geocoder      Geocoder
	subscriptions Registry
	notifier      Notifier
	feed          Feed
	serviceArea   *domain.Bounds
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewService creates an ingestion service.
func NewService(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		reports:       cfg.Reports,
		dedup:         cfg.Dedup,
		geocoder:      cfg.Geocoder,
		subscriptions: cfg.Subscriptions,
		notifier:      cfg.Notifier,
		feed:          cfg.Feed,
		serviceArea:   cfg.ServiceArea,
		logger:        logger,
		metrics:       metrics,
	}
}

// Ingest runs a submission through dedup, geocoding and persistence.
// Rejections are reported in the Outcome; an error means a store or the
// context failed and the submission should be retried.
func (s *Service) Ingest(ctx context.Context, sub Submission) (Outcome, error) {
	out, err := s.ingest(ctx, sub)
	switch {
	case err != nil:
		s.metrics.IngestOutcomes.WithLabelValues(string(sub.Source), "error").Inc()
	case out.Accepted:
		s.metrics.IngestOutcomes.WithLabelValues(string(sub.Source), "accepted").Inc()
	default:
		s.metrics.IngestOutcomes.WithLabelValues(string(sub.Source), strings.ToLower(string(out.Reason))).Inc()
		s.logger.Info("submission rejected", "source", sub.Source, "reason", out.Reason, "address", sub.Address)
	}
	return out, err
}

func (s *Service) ingest(ctx context.Context, sub Submission) (Outcome, error) {
	category, err := domain.ParseCategory(sub.Category)
	if err != nil {
		return rejected(ReasonInvalidCategory), nil
	}

	address := strings.TrimSpace(sub.Address)
	hasPoint := !sub.Point.IsZero()
	if hasPoint && !sub.Point.Valid() {
		return rejected(ReasonInvalidLocation), nil
	}
	if address == "" && !hasPoint {
		return rejected(ReasonGeocodeFailed), nil
	}

	// Dedup runs before geocoding so duplicates never spend a throttled lookup.
	keyText := address
	if keyText == "" {
		keyText = sub.Point.String()
	}
	candidate := dedup.NewCandidate(keyText)
	mode := sub.Mode
	if mode == "" {
		mode = dedup.DefaultMode(sub.Source)
	}
	dup, err := s.dedup.IsDuplicate(ctx, mode, candidate)
	if err != nil {
		return Outcome{}, fmt.Errorf("ingest: %w", err)
	}
	if dup {
		return rejected(ReasonDuplicate), nil
	}

	report := domain.Report{
		ID:          uuid.NewString(),
		Point:       sub.Point,
		Address:     address,
		Category:    category,
		Description: domain.TruncateDescription(strings.TrimSpace(sub.Description)),
		SourceKey:   candidate.Key,
		Source:      sub.Source,
		Status:      s.status(sub),
		Confirmed:   sub.Confirmed,
		OccurredAt:  sub.OccurredAt,
		IngestedAt:  domain.Now(),
	}
	if report.OccurredAt.IsZero() {
		report.OccurredAt = report.IngestedAt
	}

	if !hasPoint {
		res, err := s.geocoder.Resolve(ctx, address)
		if errors.Is(err, geocode.ErrNotFound) {
			return rejected(ReasonGeocodeFailed), nil
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("ingest: %w", err)
		}
		report.Point = res.Point()
		report.City = res.City
		report.Region = res.Region
	}

	if sub.Source == domain.SourceAggregated && s.serviceArea != nil && !s.serviceArea.Contains(report.Point) {
		return rejected(ReasonOutOfArea), nil
	}

	titleAddress := address
	if titleAddress == "" {
		titleAddress = unknownLocation
	}
	report.Title = domain.ReportTitle(category, titleAddress)

	if err := s.reports.Create(ctx, report); err != nil {
		return Outcome{}, fmt.Errorf("ingest: store report: %w", err)
	}
	if err := s.dedup.Register(ctx, candidate); err != nil {
		// The row is stored; a store-backed index will still see it.
		s.logger.Warn("dedup register failed", "report_id", report.ID, "error", err)
	}
	s.logger.Info("report accepted",
		"report_id", report.ID,
		"source", report.Source,
		"category", report.Category,
		"status", report.Status,
		"point", report.Point.String(),
	)

	if s.feed != nil {
		s.feed.Publish(ctx, report)
	}

	out := Outcome{Accepted: true, Report: &report}
	if report.Status == domain.StatusApproved && !sub.Quiet {
		out.Dispatch = s.notify(ctx, report)
	}
	return out, nil
}

// status picks the moderation state: aggregated feeds are pre-vetted, every
// other source waits for a moderator unless the caller says otherwise.
func (s *Service) status(sub Submission) domain.Status {
	if sub.Status != "" {
		return sub.Status
	}
	if sub.Source == domain.SourceAggregated {
		return domain.StatusApproved
	}
	return domain.StatusPending
}

func (s *Service) notify(ctx context.Context, r domain.Report) *alert.Result {
	res, err := s.NotifyNewReport(ctx, r)
	if err != nil {
		s.logger.Error("dispatch failed", "report_id", r.ID, "error", err)
		return nil
	}
	return &res
}

// NotifyNewReport dispatches alerts for a report approved outside the core.
func (s *Service) NotifyNewReport(ctx context.Context, r domain.Report) (alert.Result, error) {
	return s.notifier.Dispatch(ctx, r)
}

// NotifyByID loads a stored report and dispatches it.
func (s *Service) NotifyByID(ctx context.Context, id string) (alert.Result, error) {
	r, err := s.reports.Get(ctx, id)
	if err != nil {
		return alert.Result{}, err
	}
	return s.NotifyNewReport(ctx, r)
}

// Approve clears a pending report for alerts and dispatches it. Approving an
// already approved report does not alert twice.
func (s *Service) Approve(ctx context.Context, id string) (domain.Report, *alert.Result, error) {
	r, err := s.reports.Get(ctx, id)
	if err != nil {
		return domain.Report{}, nil, err
	}
	if r.Status == domain.StatusApproved {
		return r, nil, nil
	}
	if err := s.reports.SetStatus(ctx, id, domain.StatusApproved); err != nil {
		return domain.Report{}, nil, fmt.Errorf("approve report: %w", err)
	}
	r.Status = domain.StatusApproved
	return r, s.notify(ctx, r), nil
}

// Reports lists stored reports in one moderation state, newest first.
func (s *Service) Reports(ctx context.Context, status domain.Status, limit int) ([]domain.Report, error) {
	return s.reports.ListByStatus(ctx, status, limit)
}
