// Package kafka publishes assessed leads to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-leads/internal/config"
	"github.com/couchcryptid/storm-leads/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces one message per assessed lead.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer     *kafkago.Writer
	thresholds domain.PriorityThresholds
	logger     *slog.Logger
}

// NewWriter creates a Kafka producer for the configured leads topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaLeadsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{
		writer:     w,
		thresholds: domain.PriorityThresholds{High: cfg.HighPriorityMin, Medium: cfg.MediumPriorityMin},
		logger:     logger,
	}
}

// LoadBatch serializes and publishes every assessed lead in the batch in a
// single WriteMessages call. Leads are keyed by lead ID.
func (w *Writer) LoadBatch(ctx context.Context, batch *domain.Batch) error {
	if len(batch.Assessed) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(batch.Assessed))
	for i := range batch.Assessed {
		msg, err := serializeToMessage(batch.Assessed[i], w.thresholds)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d leads: %w", len(msgs), err)
	}
	w.logger.Info("leads published", "topic", w.writer.Topic, "batch_id", batch.ID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AssessedLead into a Kafka message.
func serializeToMessage(assessed domain.AssessedLead, thresholds domain.PriorityThresholds) (kafkago.Message, error) {
	data, err := json.Marshal(assessed)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize lead: %w", err)
	}
	lead := assessed.Lead
	return kafkago.Message{
		Key:   []byte(lead.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "batch_id", Value: []byte(lead.BatchID)},
			{Key: "event_type", Value: []byte(lead.EventType)},
			{Key: "priority", Value: []byte(thresholds.Bucket(lead.Score))},
			{Key: "created_at", Value: []byte(lead.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
