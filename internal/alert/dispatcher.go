package alert

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
	"github.com/couchcryptid/incident-alert-service/internal/subscription"
)

// DefaultConcurrency bounds parallel direct deliveries.
const DefaultConcurrency = 8

// Registry is the subscription view the dispatcher needs.
type Registry interface {
	FindWithinRadius(ctx context.Context, p domain.Point) ([]subscription.Match, error)
	Deactivate(ctx context.Context, subscriberID string) error
}

// Result summarizes one dispatch.
type Result struct {
	ChannelSent      bool `json:"channel_sent"`
	RecipientsSent   int  `json:"recipients_sent"`
	RecipientsFailed int  `json:"recipients_failed"`
	Deactivated      int  `json:"deactivated"`
}

// Dispatcher delivers report alerts.
type Dispatcher struct {
	broadcast   Broadcaster
	direct      Channel
	registry    Registry
	formatter   *Formatter
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// Config wires a Dispatcher. Broadcast and Direct are each optional, but at
// least one must be set.
type Config struct {
	Broadcast   Broadcaster
	Direct      Channel
	Registry    Registry
	Formatter   *Formatter
	Concurrency int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Formatter == nil {
		cfg.Formatter = NewFormatter("", nil)
	}
	return &Dispatcher{
		broadcast:   cfg.Broadcast,
		direct:      cfg.Direct,
		registry:    cfg.Registry,
		formatter:   cfg.Formatter,
		concurrency: cfg.Concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// Dispatch broadcasts the report once, then sends a personalized message to
// each subscriber whose radius covers it. Individual delivery failures are
// counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, r domain.Report) (Result, error) {
	if d.broadcast == nil && d.direct == nil {
		return Result{}, ErrMisconfiguredChannel
	}
	start := time.Now()
	defer func() { d.metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()

	var res Result
	if d.broadcast != nil {
		err := d.broadcast.Broadcast(ctx, d.formatter.Broadcast(r))
		outcome := Classify(err)
		d.metrics.Deliveries.WithLabelValues("channel", outcome.String()).Inc()
		if err != nil {
			d.logger.Error("channel broadcast failed", "report_id", r.ID, "outcome", outcome.String(), "error", err)
		} else {
			res.ChannelSent = true
		}
	}

	if !r.HasLocation() {
		d.logger.Warn("report has no coordinates, skipping direct alerts", "report_id", r.ID)
		return res, nil
	}
	if d.direct == nil || d.registry == nil {
		return res, nil
	}

	matches, err := d.registry.FindWithinRadius(ctx, r.Point)
	if err != nil {
		d.logger.Error("subscription lookup failed, skipping direct alerts", "report_id", r.ID, "error", err)
		return res, nil
	}

	var sent, failed, deactivated atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, m := range matches {
		g.Go(func() error {
			switch d.deliver(ctx, r, m) {
			case Delivered:
				sent.Add(1)
			case Permanent:
				failed.Add(1)
				if d.deactivate(ctx, m.Subscription.SubscriberID) {
					deactivated.Add(1)
				}
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.RecipientsSent = int(sent.Load())
	res.RecipientsFailed = int(failed.Load())
	res.Deactivated = int(deactivated.Load())

	d.logger.Info("alert dispatched",
		"report_id", r.ID,
		"channel_sent", res.ChannelSent,
		"matched", len(matches),
		"sent", res.RecipientsSent,
		"failed", res.RecipientsFailed,
		"deactivated", res.Deactivated,
	)
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, r domain.Report, m subscription.Match) Outcome {
	id := m.Subscription.SubscriberID
	err := d.direct.Send(ctx, id, d.formatter.Direct(r, m.DistanceMiles))
	outcome := Classify(err)
	d.metrics.Deliveries.WithLabelValues("direct", outcome.String()).Inc()
	if err != nil {
		d.logger.Warn("direct alert failed", "report_id", r.ID, "subscriber_id", id, "outcome", outcome.String(), "error", err)
	}
	return outcome
}

func (d *Dispatcher) deactivate(ctx context.Context, subscriberID string) bool {
	if err := d.registry.Deactivate(ctx, subscriberID); err != nil {
		d.logger.Error("deactivate unreachable subscriber", "subscriber_id", subscriberID, "error", err)
		return false
	}
	d.metrics.SubscriptionsDeactivated.Inc()
	return true
}
