// Package kafka publishes chunk readiness events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wrf-postprocess/internal/config"
	"github.com/couchcryptid/wrf-postprocess/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces chunk status events to a Kafka topic so downstream
// jobs (CMORization, aggregation) can start as soon as a chunk is ready.
// It implements pipeline.StatusSink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured readiness topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaReadinessTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.ShutdownTimeout,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes and writes all statuses in a single WriteMessages call.
// Messages are keyed by chunk so one chunk's history stays on one partition.
func (p *Publisher) Publish(ctx context.Context, statuses []domain.ChunkStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(statuses))
	for i := range statuses {
		msg, err := serializeToMessage(statuses[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d chunk statuses: %w", len(msgs), err)
	}
	p.logger.Debug("published chunk statuses", "count", len(msgs), "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a ChunkStatus into a Kafka message.
func serializeToMessage(status domain.ChunkStatus) (kafkago.Message, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize chunk status: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(status.Chunk),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "state", Value: []byte(status.State)},
			{Key: "run_id", Value: []byte(status.RunID)},
			{Key: "scanned_at", Value: []byte(status.ScannedAt.Format(time.RFC3339))},
		},
	}, nil
}
