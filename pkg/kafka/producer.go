package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// RefreshEvent describes a completed catalog refresh
type RefreshEvent struct {
	EventType      string    `json:"event_type"` // catalog.refreshed
	TotalCountries int64     `json:"total_countries"`
	Inserted       int       `json:"inserted"`
	Updated        int       `json:"updated"`
	RefreshedAt    time.Time `json:"refreshed_at"`
	Timestamp      time.Time `json:"timestamp"`
}

// PublishRefreshEvent publishes a catalog refresh event to Kafka
func (p *Producer) PublishRefreshEvent(ctx context.Context, event *RefreshEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRefreshEvent")
	defer span.End()

	if event.EventType == "" {
		event.EventType = "catalog.refreshed"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.RefreshedAt.UTC().Format(time.RFC3339)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte("1.0")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish refresh event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":      event.EventType,
		"total_countries": event.TotalCountries,
	}).Debug("Published refresh event")

	return nil
}
