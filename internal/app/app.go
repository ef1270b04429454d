// Package app assembles the service from configuration. Both the daemon and
// the batch importer build the same graph so they share stores and dedup.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/incident-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/incident-alert-service/internal/adapter/mattermost"
	"github.com/couchcryptid/incident-alert-service/internal/adapter/nominatim"
	"github.com/couchcryptid/incident-alert-service/internal/adapter/postgres"
	"github.com/couchcryptid/incident-alert-service/internal/adapter/redis"
	"github.com/couchcryptid/incident-alert-service/internal/adapter/telegram"
	"github.com/couchcryptid/incident-alert-service/internal/alert"
	"github.com/couchcryptid/incident-alert-service/internal/bot"
	"github.com/couchcryptid/incident-alert-service/internal/config"
	"github.com/couchcryptid/incident-alert-service/internal/dedup"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/geocode"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
	"github.com/couchcryptid/incident-alert-service/internal/subscription"
)

// App is the assembled service. Bot is nil when no Telegram token is
// configured.
type App struct {
	Service *ingest.Service
	Bot     *bot.Bot
	Ready   *Readiness

	closers []func() error
	logger  *slog.Logger
}

// New builds the service graph. Postgres and Redis are used when configured;
// otherwise in-process stores back the same interfaces.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{Ready: &Readiness{}, logger: logger}

	var (
		reports ingest.ReportStore = ingest.NewMemoryReportStore()
		subs    subscription.Store = subscription.NewMemoryStore()
		dedupSt dedup.Store        = dedup.NewMemoryStore()
	)

	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		repo := postgres.NewReportRepository(db, logger)
		reports, dedupSt = repo, repo
		subs = postgres.NewSubscriptionRepository(db, logger)
		a.Ready.Add(repo)
		logger.Info("postgres storage enabled")
	}

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		store := redis.NewDedupStore(client, cfg.RedisKeyPrefix)
		dedupSt = store
		a.Ready.Add(store)
		logger.Info("redis dedup index enabled", "addr", cfg.RedisAddr)
	}

	provider := geocode.NewThrottledLookup(
		nominatim.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, metrics, logger),
		geocode.NewThrottle(cfg.GeocoderMinInterval, nil))
	lookup := nominatim.NewCachedLookup(provider, cfg.GeocoderCacheSize, metrics)
	resolver := geocode.NewResolver(lookup, geocode.Options{
		DefaultSuffix: cfg.DefaultRegionSuffix,
		RegionTokens:  cfg.RegionTokens,
	}, logger, metrics)

	registry := subscription.NewRegistry(subs, logger)
	formatter := alert.NewFormatter(cfg.AppURL, cfg.AlertLocation)

	var tg *telegram.Client
	var broadcasts alert.MultiChannel
	if cfg.TelegramEnabled() {
		tg = telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramTimeout, logger)
		if cfg.TelegramChannelID != "" {
			broadcasts = append(broadcasts, alert.ChannelBroadcaster{Channel: tg, RecipientID: cfg.TelegramChannelID})
		}
	}
	if cfg.MattermostWebhookURL != "" {
		broadcasts = append(broadcasts, mattermost.NewWebhook(cfg.MattermostWebhookURL, formatter, cfg.TelegramTimeout, logger))
	}

	dispatchCfg := alert.Config{
		Registry:    registry,
		Formatter:   formatter,
		Concurrency: cfg.AlertConcurrency,
	}
	if len(broadcasts) > 0 {
		dispatchCfg.Broadcast = broadcasts
	}
	if tg != nil {
		dispatchCfg.Direct = tg
	} else {
		logger.Warn("telegram disabled, subscribers will not receive direct alerts")
	}

	var feed ingest.Feed
	if cfg.KafkaEnabled {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaReportTopic, logger, metrics)
		a.closers = append(a.closers, w.Close)
		feed = w
		logger.Info("report feed enabled", "topic", cfg.KafkaReportTopic)
	}

	area := domain.MinneapolisMetro
	a.Service = ingest.NewService(ingest.Config{
		Reports:       reports,
		Dedup:         dedup.NewIndex(dedupSt, logger),
		Geocoder:      resolver,
		Subscriptions: registry,
		Notifier:      alert.NewDispatcher(dispatchCfg, logger, metrics),
		Feed:          feed,
		ServiceArea:   &area,
	}, logger, metrics)

	if tg != nil {
		a.Bot = bot.New(bot.Config{
			Service: a.Service,
			Trust:   bot.NewMemoryTrustStore(),
			Replier: tg,
			AppURL:  cfg.AppURL,
		}, logger)
		if err := a.Bot.SeedAdmins(ctx, cfg.TelegramAdminIDs); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

// Close releases every store and producer, logging failures.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}

// Readiness is ready when every registered backing store answers.
type Readiness struct {
	checks []interface {
		CheckReadiness(ctx context.Context) error
	}
}

func (r *Readiness) Add(c interface {
	CheckReadiness(ctx context.Context) error
}) {
	r.checks = append(r.checks, c)
}

func (r *Readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range r.checks {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
