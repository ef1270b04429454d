// Package kafka publishes accepted reports to a Kafka topic for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/observability"
)

// Writer produces accepted reports to a Kafka topic.
// It implements ingest.Feed.
type Writer struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the report topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 5 * time.Second,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// Publish writes one report. Failures are logged and counted; the caller
// never fails a submission because the feed is down.
func (w *Writer) Publish(ctx context.Context, r domain.Report) {
	msg, err := serializeToMessage(r)
	if err == nil {
		err = w.writer.WriteMessages(ctx, msg)
	}
	if err != nil {
		w.metrics.FeedPublished.WithLabelValues("error").Inc()
		w.logger.Warn("report feed publish failed", "report_id", r.ID, "error", err)
		return
	}
	w.metrics.FeedPublished.WithLabelValues("success").Inc()
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a report into a Kafka message keyed by report id.
func serializeToMessage(r domain.Report) (kafkago.Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(r.Category)},
			{Key: "ingested_at", Value: []byte(r.IngestedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
