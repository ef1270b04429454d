package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-alert-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/incident-alert-service/internal/adapter/telegram"
	"github.com/couchcryptid/incident-alert-service/internal/alert"
	"github.com/couchcryptid/incident-alert-service/internal/dedup"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type fakeAPI struct {
	submission ingest.Submission
	outcome    ingest.Outcome
	ingestErr  error

	listStatus domain.Status
	listLimit  int
	reports    map[string]domain.Report

	subscriberID string
	location     string
	radius       float64
	subOutcome   ingest.SubscribeOutcome
	subs         map[string]domain.Subscription
	unsubscribed []string
}

func (a *fakeAPI) Ingest(_ context.Context, sub ingest.Submission) (ingest.Outcome, error) {
	a.submission = sub
	return a.outcome, a.ingestErr
}

func (a *fakeAPI) Reports(_ context.Context, status domain.Status, limit int) ([]domain.Report, error) {
	a.listStatus, a.listLimit = status, limit
	var out []domain.Report
	for _, r := range a.reports {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *fakeAPI) Approve(_ context.Context, id string) (domain.Report, *alert.Result, error) {
	r, ok := a.reports[id]
	if !ok {
		return domain.Report{}, nil, domain.ErrReportNotFound
	}
	r.Status = domain.StatusApproved
	return r, &alert.Result{ChannelSent: true, RecipientsSent: 2}, nil
}

func (a *fakeAPI) NotifyByID(_ context.Context, id string) (alert.Result, error) {
	if _, ok := a.reports[id]; !ok {
		return alert.Result{}, domain.ErrReportNotFound
	}
	return alert.Result{ChannelSent: true}, nil
}

func (a *fakeAPI) Subscribe(_ context.Context, id, location string, radius float64) (ingest.SubscribeOutcome, error) {
	a.subscriberID, a.location, a.radius = id, location, radius
	return a.subOutcome, nil
}

func (a *fakeAPI) Unsubscribe(_ context.Context, id string) error {
	a.unsubscribed = append(a.unsubscribed, id)
	return nil
}

func (a *fakeAPI) Subscription(_ context.Context, id string) (domain.Subscription, bool, error) {
	s, ok := a.subs[id]
	return s, ok, nil
}

type fakeBot struct {
	updates []telegram.Update
}

func (b *fakeBot) HandleUpdate(_ context.Context, u telegram.Update) error {
	b.updates = append(b.updates, u)
	return errors.New("reply failed")
}

func newTestServer(readyErr error, api *fakeAPI, bot *fakeBot) *httpadapter.Server {
	cfg := httpadapter.Config{
		Addr:          ":0",
		Ready:         &mockReadiness{err: readyErr},
		API:           api,
		WebhookSecret: "s3cret",
	}
	if bot != nil {
		cfg.Bot = bot
	}
	return httpadapter.NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(nil, &fakeAPI{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(t, newTestServer(nil, &fakeAPI{}, nil), http.MethodGet, "/readyz", "").Code)
	notReady := do(t, newTestServer(errors.New("postgres down"), &fakeAPI{}, nil), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, notReady.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(nil, &fakeAPI{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- reports ---

func TestCreateReport_Accepted(t *testing.T) {
	api := &fakeAPI{outcome: ingest.Outcome{Accepted: true, Report: &domain.Report{ID: "r-1"}}}
	srv := newTestServer(nil, api, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/reports", `{
		"type": "ACTIVE",
		"address": "Lake Street & Chicago Ave",
		"description": "vans",
		"source": "aggregated",
		"confirmed": true,
		"occurred_at": "2026-01-15T16:39:00Z",
		"dedup_mode": "exact"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, domain.SourceAggregated, api.submission.Source)
	assert.Equal(t, "ACTIVE", api.submission.Category)
	assert.Equal(t, dedup.ModeExact, api.submission.Mode)
	assert.True(t, api.submission.Confirmed)
	assert.True(t, api.submission.Point.IsZero())
	assert.Equal(t, 16, api.submission.OccurredAt.Hour())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["accepted"])
}

func TestCreateReport_WithCoordinates(t *testing.T) {
	api := &fakeAPI{outcome: ingest.Outcome{Accepted: true}}
	rec := do(t, newTestServer(nil, api, nil), http.MethodPost, "/api/v1/reports",
		`{"type":"OBSERVED","lat":44.9778,"lon":-93.265}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.SourceWeb, api.submission.Source)
	assert.Equal(t, domain.Point{Lat: 44.9778, Lon: -93.265}, api.submission.Point)
}

func TestCreateReport_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome ingest.Outcome
		err     error
		code    int
		reason  string
	}{
		{"duplicate", `{"type":"ACTIVE","address":"Lake St"}`, ingest.Outcome{Reason: ingest.ReasonDuplicate}, nil, http.StatusConflict, "DUPLICATE"},
		{"geocode failed", `{"type":"ACTIVE","address":"nowhere"}`, ingest.Outcome{Reason: ingest.ReasonGeocodeFailed}, nil, http.StatusUnprocessableEntity, "GEOCODE_FAILED"},
		{"store down", `{"type":"ACTIVE","address":"Lake St"}`, ingest.Outcome{}, errors.New("pq: connection refused"), http.StatusServiceUnavailable, ""},
		{"bad json", `{"type":`, ingest.Outcome{}, nil, http.StatusBadRequest, ""},
		{"telegram source", `{"type":"ACTIVE","source":"TELEGRAM"}`, ingest.Outcome{}, nil, http.StatusBadRequest, ""},
		{"half a point", `{"type":"ACTIVE","lat":44.9}`, ingest.Outcome{}, nil, http.StatusBadRequest, ""},
		{"bad dedup mode", `{"type":"ACTIVE","address":"x","dedup_mode":"psychic"}`, ingest.Outcome{}, nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{outcome: tt.outcome, ingestErr: tt.err}
			rec := do(t, newTestServer(nil, api, nil), http.MethodPost, "/api/v1/reports", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			if tt.reason != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, false, body["accepted"])
				assert.Equal(t, tt.reason, body["reason"])
			}
		})
	}
}

func TestListReports(t *testing.T) {
	api := &fakeAPI{reports: map[string]domain.Report{
		"r-1": {ID: "r-1", Status: domain.StatusPending},
		"r-2": {ID: "r-2", Status: domain.StatusApproved},
	}}
	srv := newTestServer(nil, api, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/reports?status=pending&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusPending, api.listStatus)
	assert.Equal(t, 5, api.listLimit)

	var body struct {
		Reports []domain.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Reports, 1)
	assert.Equal(t, "r-1", body.Reports[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/reports?status=lost", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/reports?limit=-1", "").Code)
}

func TestApproveAndNotify(t *testing.T) {
	api := &fakeAPI{reports: map[string]domain.Report{"r-1": {ID: "r-1", Status: domain.StatusPending}}}
	srv := newTestServer(nil, api, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/reports/r-1/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Report   domain.Report `json:"report"`
		Dispatch alert.Result  `json:"dispatch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.StatusApproved, body.Report.Status)
	assert.Equal(t, 2, body.Dispatch.RecipientsSent)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/reports/r-1/notify", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/v1/reports/missing/notify", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/api/v1/reports/missing/approve", "").Code)
}

// --- subscriptions ---

func TestPutSubscription(t *testing.T) {
	api := &fakeAPI{subOutcome: ingest.SubscribeOutcome{OK: true, Subscription: &domain.Subscription{SubscriberID: "42"}}}
	srv := newTestServer(nil, api, nil)

	rec := do(t, srv, http.MethodPut, "/api/v1/subscriptions/42", `{"location":"55407","radius_miles":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", api.subscriberID)
	assert.Equal(t, "55407", api.location)
	assert.InDelta(t, 10, api.radius, 0)

	api.subOutcome = ingest.SubscribeOutcome{Reason: ingest.ReasonInvalidRadius}
	rec = do(t, srv, http.MethodPut, "/api/v1/subscriptions/42", `{"location":"55407","radius_miles":99}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason":"INVALID_RADIUS"`)
}

func TestGetAndDeleteSubscription(t *testing.T) {
	api := &fakeAPI{subs: map[string]domain.Subscription{"42": {SubscriberID: "42", RadiusMiles: 5, Active: true}}}
	srv := newTestServer(nil, api, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/subscriptions/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.True(t, sub.Active)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/subscriptions/7", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/subscriptions/42", "").Code)
	assert.Equal(t, []string{"42"}, api.unsubscribed)
}

// --- telegram webhook ---

func TestTelegramWebhook(t *testing.T) {
	bot := &fakeBot{}
	srv := newTestServer(nil, &fakeAPI{}, bot)
	body := `{"update_id":9,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"/start"}}`

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, bot.updates)

	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "handler errors are acknowledged")
	require.Len(t, bot.updates, 1)
	assert.Equal(t, int64(9), bot.updates[0].UpdateID)
	assert.Equal(t, "/start", bot.updates[0].Message.Text)
}

func TestTelegramWebhookNotRoutedWithoutBot(t *testing.T) {
	rec := do(t, newTestServer(nil, &fakeAPI{}, nil), http.MethodPost, "/telegram/webhook", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
