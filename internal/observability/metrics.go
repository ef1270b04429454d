package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "incident_alerts"

// Metrics holds the Prometheus collectors for ingestion, geocoding, and alert delivery.
type Metrics struct {
	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeResolutions *prometheus.CounterVec // labels: outcome={resolved,not_found}

	// Ingestion metrics.
	IngestOutcomes *prometheus.CounterVec // labels: source, result={accepted,GEOCODE_FAILED,DUPLICATE,...}
	FeedPublished  *prometheus.CounterVec // labels: outcome={success,error}

	// Delivery metrics.
	Deliveries               *prometheus.CounterVec // labels: target={channel,direct}, outcome={delivered,transient,permanent}
	DispatchDuration         prometheus.Histogram
	SubscriptionsDeactivated prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeResolutions,
		m.IngestOutcomes,
		m.FeedPublished,
		m.Deliveries,
		m.DispatchDuration,
		m.SubscriptionsDeactivated,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_resolutions_total",
			Help:      "Address resolutions across all query variants, by outcome.",
		}, []string{"outcome"}),
		IngestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_outcomes_total",
			Help:      "Report submissions by source and result.",
		}, []string{"source", "result"}),
		FeedPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_published_total",
			Help:      "Accepted reports published to the event feed, by outcome.",
		}, []string{"outcome"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Alert deliveries by target and outcome.",
		}, []string{"target", "outcome"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of a full alert fan-out for one report.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SubscriptionsDeactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_deactivated_total",
			Help:      "Subscriptions deactivated after a permanent delivery failure.",
		}),
	}
}
