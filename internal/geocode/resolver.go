// Package geocode turns free-text addresses into coordinates by trying a
// sequence of query variants against a rate-limited lookup provider.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

// ErrNotFound is returned when no query variant produced a result.
var ErrNotFound = errors.New("address not found")

// Options tunes variant generation.
type Options struct {
	DefaultSuffix string
	RegionTokens  []string
}

// Resolver resolves addresses through a domain.Lookup.
type Resolver struct {
	lookup  domain.Lookup
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a resolver. Rate limiting belongs to the lookup chain;
// see ThrottledLookup.
func NewResolver(lookup domain.Lookup, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if opts.DefaultSuffix == "" {
		opts.DefaultSuffix = DefaultRegionSuffix
	}
	if opts.RegionTokens == nil {
		opts.RegionTokens = DefaultRegionTokens
	}
	return &Resolver{
		lookup:  lookup,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve tries each query variant in turn and returns the first match.
// Per-variant failures are logged and skipped; ErrNotFound means every
// variant was exhausted.
func (r *Resolver) Resolve(ctx context.Context, address string) (domain.GeocodeResult, error) {
	queries := Variants(address, r.opts.DefaultSuffix, r.opts.RegionTokens)

	for _, q := range queries {
		result, ok, err := r.lookup.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return domain.GeocodeResult{}, fmt.Errorf("geocode %q: %w", q, ctx.Err())
			}
			r.logger.Warn("geocode variant failed", "query", q, "error", err)
			continue
		}
		if !ok || !result.Point().Valid() {
			r.logger.Debug("geocode variant empty", "query", q)
			continue
		}

		result.Query = q
		result.Region = domain.RegionAbbreviation(result.Region)
		r.metrics.GeocodeResolutions.WithLabelValues("resolved").Inc()
		r.logger.Debug("geocode resolved", "address", address, "query", q, "lat", result.Lat, "lon", result.Lon)
		return result, nil
	}

	r.metrics.GeocodeResolutions.WithLabelValues("not_found").Inc()
	r.logger.Info("geocode exhausted all variants", "address", strings.TrimSpace(address), "variants", len(queries))
	return domain.GeocodeResult{}, ErrNotFound
}
