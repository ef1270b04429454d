package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-alert-service/internal/alert"
	"github.com/couchcryptid/incident-alert-service/internal/dedup"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/geocode"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
	"github.com/couchcryptid/incident-alert-service/internal/subscription"
)

var (
	lakeAndChicago = domain.GeocodeResult{Lat: 44.9483, Lon: -93.2624, City: "Minneapolis", Region: "Minnesota"}
	madison        = domain.GeocodeResult{Lat: 43.0731, Lon: -89.4012, City: "Madison", Region: "Wisconsin"}
)

// --- fakes ---

// recordingLookup answers every query with result and records what it was asked.
type recordingLookup struct {
	mu      sync.Mutex
	result  domain.GeocodeResult
	found   bool
	queries []string
}

func (l *recordingLookup) Search(_ context.Context, q string) (domain.GeocodeResult, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, q)
	return l.result, l.found, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []domain.Report
	err     error
}

func (n *recordingNotifier) Dispatch(_ context.Context, r domain.Report) (alert.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return alert.Result{ChannelSent: true}, n.err
}

type recordingFeed struct {
	reports []domain.Report
}

func (f *recordingFeed) Publish(_ context.Context, r domain.Report) {
	f.reports = append(f.reports, r)
}

type failingDedup struct{}

func (failingDedup) IsDuplicate(context.Context, dedup.Mode, dedup.Candidate) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingDedup) Register(context.Context, dedup.Candidate) error { return nil }

type fixture struct {
	svc      *Service
	lookup   *recordingLookup
	reports  *MemoryReportStore
	notifier *recordingNotifier
	feed     *recordingFeed
	registry *subscription.Registry
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, result domain.GeocodeResult, found bool) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 17, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(nil) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	f := &fixture{
		lookup:   &recordingLookup{result: result, found: found},
		reports:  NewMemoryReportStore(),
		notifier: &recordingNotifier{},
		feed:     &recordingFeed{},
		registry: subscription.NewRegistry(subscription.NewMemoryStore(), logger),
		metrics:  metrics,
	}
	area := domain.MinneapolisMetro
	f.svc = NewService(Config{
		Reports:       f.reports,
		Dedup:         dedup.NewIndex(dedup.NewMemoryStore(), logger),
		Geocoder:      geocode.NewResolver(f.lookup, geocode.Options{}, logger, metrics),
		Subscriptions: f.registry,
		Notifier:      f.notifier,
		Feed:          f.feed,
		ServiceArea:   &area,
	}, logger, metrics)
	return f
}

func webSubmission(address string) Submission {
	return Submission{
		Source:      domain.SourceWeb,
		Category:    "active",
		Address:     address,
		Description: "two unmarked vans",
	}
}

// --- ingest ---

func TestIngest_IntersectionQueriedFirst(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)

	out, err := f.svc.Ingest(context.Background(), webSubmission("Lake Street & Chicago Ave, Minneapolis, MN"))
	require.NoError(t, err)
	require.True(t, out.Accepted)

	require.NotEmpty(t, f.lookup.queries)
	assert.Equal(t, "Lake Street and Chicago Ave, Minneapolis, MN", f.lookup.queries[0])

	r := out.Report
	require.NotNil(t, r)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, lakeAndChicago.Point(), r.Point)
	assert.Equal(t, "Minneapolis", r.City)
	assert.Equal(t, "MN", r.Region)
	assert.Equal(t, domain.CategoryActive, r.Category)
	assert.Equal(t, "ACTIVE - Lake Street & Chicago Ave, Minneapolis, MN", r.Title)
	assert.Equal(t, "lake-street-&-chicago-ave,-minneapolis,-mn", r.SourceKey)
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Equal(t, r.IngestedAt, r.OccurredAt)

	stored, err := f.reports.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, *r, stored)
	require.Len(t, f.feed.reports, 1)
	assert.Nil(t, out.Dispatch, "pending reports are not dispatched")
	assert.Empty(t, f.notifier.reports)
}

func TestIngest_SecondSubmissionIsDuplicate(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, webSubmission("Lake St & Chicago Ave"))
	require.NoError(t, err)
	require.True(t, first.Accepted)
	lookups := len(f.lookup.queries)

	second, err := f.svc.Ingest(ctx, webSubmission("  lake st   &  CHICAGO ave "))
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, ReasonDuplicate, second.Reason)
	assert.Len(t, f.lookup.queries, lookups, "duplicates are not geocoded")

	pending, err := f.reports.ListByStatus(ctx, domain.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.IngestOutcomes.WithLabelValues("WEB", "duplicate")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.IngestOutcomes.WithLabelValues("WEB", "accepted")), 0)
}

func TestIngest_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		result domain.GeocodeResult
		found  bool
		sub    Submission
		want   Reason
	}{
		{
			name:  "unknown category",
			found: true,
			sub:   Submission{Source: domain.SourceWeb, Category: "rumor", Address: "Lake St"},
			want:  ReasonInvalidCategory,
		},
		{
			name:  "geocoder exhausted",
			found: false,
			sub:   webSubmission("nowhere at all"),
			want:  ReasonGeocodeFailed,
		},
		{
			name: "no address and no point",
			sub:  Submission{Source: domain.SourceWeb, Category: "OTHER"},
			want: ReasonGeocodeFailed,
		},
		{
			name: "point out of range",
			sub:  Submission{Source: domain.SourceWeb, Category: "OTHER", Point: domain.Point{Lat: 91, Lon: 0}},
			want: ReasonInvalidLocation,
		},
		{
			name:   "aggregated report outside metro",
			result: madison,
			found:  true,
			sub:    Submission{Source: domain.SourceAggregated, Category: "Critical", Address: "State St, Madison, WI"},
			want:   ReasonOutOfArea,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.result, tt.found)
			out, err := f.svc.Ingest(context.Background(), tt.sub)
			require.NoError(t, err)
			assert.False(t, out.Accepted)
			assert.Equal(t, tt.want, out.Reason)
			assert.Nil(t, out.Report)
			assert.Empty(t, f.feed.reports)
		})
	}
}

func TestIngest_WebReportOutsideMetroIsAccepted(t *testing.T) {
	f := newFixture(t, madison, true)
	out, err := f.svc.Ingest(context.Background(), webSubmission("State St, Madison, WI"))
	require.NoError(t, err)
	assert.True(t, out.Accepted)
}

func TestIngest_AggregatedIsApprovedAndDispatched(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	occurred := time.Date(2026, 1, 15, 16, 39, 0, 0, time.UTC)

	out, err := f.svc.Ingest(context.Background(), Submission{
		Source:     domain.SourceAggregated,
		Category:   "CRITICAL",
		Address:    "Lake St & Chicago Ave, Minneapolis",
		Confirmed:  true,
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, domain.StatusApproved, out.Report.Status)
	assert.True(t, out.Report.Confirmed)
	assert.Equal(t, occurred, out.Report.OccurredAt)
	require.NotNil(t, out.Dispatch)
	assert.True(t, out.Dispatch.ChannelSent)
	require.Len(t, f.notifier.reports, 1)
	assert.Equal(t, out.Report.ID, f.notifier.reports[0].ID)
}

func TestIngest_AggregatedUsesFuzzyPrefix(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, Submission{Source: domain.SourceWeb, Category: "OTHER", Address: "2900 Lake Street East, Minneapolis"})
	require.NoError(t, err)

	out, err := f.svc.Ingest(ctx, Submission{Source: domain.SourceAggregated, Category: "OTHER", Address: "Lake Street East, near the Target"})
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicate, out.Reason)
}

func TestIngest_QuietSkipsDispatch(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	out, err := f.svc.Ingest(context.Background(), Submission{Source: domain.SourceAggregated, Category: "OBSERVED", Address: "Lake St", Quiet: true})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, domain.StatusApproved, out.Report.Status)
	assert.Nil(t, out.Dispatch)
	assert.Empty(t, f.notifier.reports)
}

func TestIngest_PointSkipsGeocoder(t *testing.T) {
	f := newFixture(t, domain.GeocodeResult{}, false)
	p := domain.Point{Lat: 44.9778, Lon: -93.2650}

	out, err := f.svc.Ingest(context.Background(), Submission{Source: domain.SourceWeb, Category: "OBSERVED", Point: p})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Empty(t, f.lookup.queries)
	assert.Equal(t, p, out.Report.Point)
	assert.Equal(t, "OBSERVED - Unknown location", out.Report.Title)
	assert.Equal(t, domain.SourceKey(p.String()), out.Report.SourceKey)
}

func TestIngest_DedupStoreFailureIsError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(Config{
		Reports: NewMemoryReportStore(),
		Dedup:   failingDedup{},
	}, logger, observability.NewMetricsForTesting())

	_, err := svc.Ingest(context.Background(), webSubmission("Lake St"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIngest_DispatchErrorDoesNotRejectReport(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	f.notifier.err = alert.ErrMisconfiguredChannel

	out, err := f.svc.Ingest(context.Background(), Submission{Source: domain.SourceTelegram, Category: "ACTIVE", Address: "Lake St", Status: domain.StatusApproved})
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Nil(t, out.Dispatch)
}

// --- moderation ---

func TestApprove_DispatchesOnce(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	ctx := context.Background()

	out, err := f.svc.Ingest(ctx, webSubmission("Lake St & Chicago Ave"))
	require.NoError(t, err)

	r, res, err := f.svc.Approve(ctx, out.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, r.Status)
	require.NotNil(t, res)

	_, res, err = f.svc.Approve(ctx, out.Report.ID)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Len(t, f.notifier.reports, 1)

	approved, err := f.svc.Reports(ctx, domain.StatusApproved, 10)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestApprove_UnknownReport(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)
	_, _, err := f.svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)

	_, err = f.svc.NotifyByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

// --- subscriptions ---

func TestSubscribe_Coordinates(t *testing.T) {
	f := newFixture(t, domain.GeocodeResult{}, false)
	ctx := context.Background()

	out, err := f.svc.Subscribe(ctx, "42", "44.9778, -93.2650", 10)
	require.NoError(t, err)
	require.True(t, out.OK)
	assert.Equal(t, domain.Point{Lat: 44.9778, Lon: -93.2650}, out.Subscription.Point)
	assert.Empty(t, f.lookup.queries)

	sub, ok, err := f.svc.Subscription(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, sub.Active)
	assert.InDelta(t, 10, sub.RadiusMiles, 0)
}

func TestSubscribe_ZipIsGeocoded(t *testing.T) {
	f := newFixture(t, lakeAndChicago, true)

	out, err := f.svc.Subscribe(context.Background(), "42", "55407", 0)
	require.NoError(t, err)
	require.True(t, out.OK)
	assert.Equal(t, []string{"55407, MN"}, f.lookup.queries)
	assert.Equal(t, "Minneapolis, MN", out.Resolved)
	assert.InDelta(t, domain.DefaultRadiusMiles, out.Subscription.RadiusMiles, 0)
}

func TestSubscribe_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		location string
		radius   float64
		want     Reason
	}{
		{"radius too large", "44.9778,-93.2650", 51, ReasonInvalidRadius},
		{"radius too small", "44.9778,-93.2650", 0.5, ReasonInvalidRadius},
		{"latitude out of range", "95,-93.2650", 5, ReasonInvalidLocation},
		{"empty location", "  ", 5, ReasonInvalidLocation},
		{"unresolvable text", "the moon", 5, ReasonInvalidLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, domain.GeocodeResult{}, false)
			out, err := f.svc.Subscribe(context.Background(), "42", tt.location, tt.radius)
			require.NoError(t, err)
			assert.False(t, out.OK)
			assert.Equal(t, tt.want, out.Reason)
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, domain.GeocodeResult{}, false)
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, "42", "44.9778,-93.2650", 5)
	require.NoError(t, err)
	require.NoError(t, f.svc.Unsubscribe(ctx, "42"))
	require.NoError(t, f.svc.Unsubscribe(ctx, "never-subscribed"))

	sub, ok, err := f.svc.Subscription(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, sub.Active)
}
