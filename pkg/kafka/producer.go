// Package kafka publishes clover events
package kafka

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MessageWriter is the part of *kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka event emission
type Producer struct {
	writer MessageWriter
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

// Envelope is a serialized event with the metadata carried in message headers
type Envelope struct {
	Key           string
	EventType     string
	TenantID      string
	SchemaVersion string
	Payload       []byte
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
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter creates a producer on an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Topic is the topic events are written to
func (p *Producer) Topic() string {
	return p.topic
}

// Publish writes one event. Messages are keyed so every event of a lead lands on one partition.
func (p *Producer) Publish(ctx context.Context, env *Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(env.Key),
		Value: env.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "tenant_id", Value: []byte(env.TenantID)},
			{Key: "schema_version", Value: []byte(env.SchemaVersion)},
		},
		Time: time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": env.EventType,
			"key":        env.Key,
		}).Error("Failed to publish event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": env.EventType,
		"key":        env.Key,
		"topic":      p.topic,
	}).Debug("Published event")

	return nil
}
