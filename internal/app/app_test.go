package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-alert-service/internal/config"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

func testConfig() *config.Config {
	return &config.Config{
		GeocoderBaseURL:     "http://127.0.0.1:1",
		GeocoderUserAgent:   "test",
		GeocoderTimeout:     time.Second,
		GeocoderMinInterval: time.Millisecond,
		GeocoderCacheSize:   10,
		DefaultRegionSuffix: "Minneapolis, MN",
		AlertLocation:       time.UTC,
		AlertConcurrency:    2,
		TelegramTimeout:     time.Second,
		RedisKeyPrefix:      "test",
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, logger, observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_InMemory(t *testing.T) {
	a := newApp(t, testConfig())

	assert.Nil(t, a.Bot)
	require.NoError(t, a.Ready.CheckReadiness(context.Background()))

	ctx := context.Background()
	sub := ingest.Submission{
		Source:   domain.SourceWeb,
		Category: "observed",
		Address:  "Lake St & Chicago Ave",
		Point:    domain.Point{Lat: 44.9483, Lon: -93.2622},
	}
	out, err := a.Service.Ingest(ctx, sub)
	require.NoError(t, err)
	require.True(t, out.Accepted)

	out, err = a.Service.Ingest(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, ingest.ReasonDuplicate, out.Reason)

	pending, err := a.Service.Reports(ctx, domain.StatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestNew_RedisDedup(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	a := newApp(t, cfg)

	require.NoError(t, a.Ready.CheckReadiness(context.Background()))

	out, err := a.Service.Ingest(context.Background(), ingest.Submission{
		Source:   domain.SourceWeb,
		Category: "active",
		Address:  "Nicollet Mall",
		Point:    domain.Point{Lat: 44.9778, Lon: -93.2650},
	})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.NotEmpty(t, mr.Keys())

	mr.Close()
	assert.Error(t, a.Ready.CheckReadiness(context.Background()))
}

func TestNew_TelegramEnablesBot(t *testing.T) {
	cfg := testConfig()
	cfg.TelegramBotToken = "123:abc"
	cfg.TelegramAPIURL = "http://127.0.0.1:1"
	cfg.TelegramAdminIDs = []string{"42"}
	a := newApp(t, cfg)

	require.NotNil(t, a.Bot)
}

type stubCheck struct{ err error }

func (s stubCheck) CheckReadiness(context.Context) error { return s.err }

func TestReadiness_JoinsFailures(t *testing.T) {
	r := &Readiness{}
	require.NoError(t, r.CheckReadiness(context.Background()))

	down := errors.New("down")
	r.Add(stubCheck{})
	r.Add(stubCheck{err: down})
	assert.ErrorIs(t, r.CheckReadiness(context.Background()), down)
}
