// Command import backfills aggregated sightings from a YAML file through the
// same ingestion path as the live service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/incident-alert-service/internal/app"
	"github.com/couchcryptid/incident-alert-service/internal/config"
	"github.com/couchcryptid/incident-alert-service/internal/importer"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

func main() {
	path := flag.String("file", "internal/importer/testdata/sightings.yaml", "path to the sightings YAML file")
	notify := flag.Bool("notify", false, "dispatch alerts for imported reports")
	flag.Parse()

	if err := run(*path, *notify); err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, notify bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	file, err := importer.ReadFile(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	imp := importer.New(a.Service, importer.Options{
		Location: cfg.AlertLocation,
		Notify:   notify,
	}, logger)

	summary, err := imp.Run(ctx, file)
	fmt.Println(summary)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		logger.Warn("some sightings failed to import", slog.Int("failed", summary.Failed))
	}
	return nil
}
