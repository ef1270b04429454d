package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/incident-alert-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/incident-alert-service/internal/app"
	"github.com/couchcryptid/incident-alert-service/internal/config"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	srvCfg := httpadapter.Config{
		Addr:          cfg.HTTPAddr,
		Ready:         a.Ready,
		API:           a.Service,
		WebhookSecret: cfg.TelegramWebhookSecret,
	}
	if a.Bot != nil {
		srvCfg.Bot = a.Bot
		logger.Info("telegram bot enabled", "admins", len(cfg.TelegramAdminIDs))
	} else {
		logger.Info("telegram bot disabled")
	}
	srv := httpadapter.NewServer(srvCfg, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()
	logger.Info("alert service started", "addr", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	a.Close()

	logger.Info("shutdown complete")
}
