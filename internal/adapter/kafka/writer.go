package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hydro-telemetry-service/internal/config"
	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

// Snapshot message headers.
const (
	HeaderSnapshotDate = "snapshot_date"
	HeaderGeneratedAt  = "generated_at"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes snapshot stations to a Kafka topic, one message per
// station keyed by station code.
// It implements pipeline.SnapshotPublisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSnapshotTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshot serializes every station and writes them in a single
// WriteMessages call. Keying by station code keeps a station's snapshots on
// one partition.
func (w *Writer) PublishSnapshot(ctx context.Context, day string, stations []domain.SnapshotStation) error {
	if len(stations) == 0 {
		return nil
	}
	generatedAt := domain.Now()
	msgs := make([]kafkago.Message, len(stations))
	for i := range stations {
		msg, err := serializeToMessage(day, generatedAt, stations[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", day, err)
	}
	w.logger.Info("snapshot published", "day", day, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SnapshotStation into a Kafka message.
func serializeToMessage(day string, generatedAt time.Time, station domain.SnapshotStation) (kafkago.Message, error) {
	data, err := json.Marshal(station)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station %s: %w", station.Code(), err)
	}
	return kafkago.Message{
		Key:   []byte(station.Code()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderSnapshotDate, Value: []byte(day)},
			{Key: HeaderGeneratedAt, Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
