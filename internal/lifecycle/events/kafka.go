package events

import (
	"context"
	"fmt"

	"libris/pkg/kafka"
	kafka_config "libris/pkg/kafka/config"
	kafka_middleware "libris/pkg/kafka/middleware"
	"libris/pkg/logger"
	"libris/pkg/middleware"
)

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher writes events to the lifecycle topic keyed by user id, so
// one user's events stay ordered within a partition.
type KafkaPublisher struct {
	producer producer
	source   string
}

func NewKafkaPublisher(p producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, source: source}
}

// Open builds the publisher a binary should use. With Kafka disabled it
// returns a NoopPublisher and a no-op close.
func Open(kcfg *kafka_config.Config, source string, log *logger.Logger) (Publisher, func() error, error) {
	if !kcfg.Enabled {
		log.Warn("Kafka disabled, lifecycle events will not be published")
		return NoopPublisher{}, func() error { return nil }, nil
	}

	producer, err := kafka.NewProducer(kcfg, kcfg.LifecycleTopic, kcfg.LifecycleDLQTopic, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create lifecycle producer: %w", err)
	}
	metrics := kafka_middleware.NewMetrics()
	producer.Use(metrics.ProducerMiddleware())
	if kcfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
	}

	closeFn := func() error {
		metrics.Log(log)
		return producer.Close()
	}
	return NewKafkaPublisher(producer, source), closeFn, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	builder := kafka.NewMessage().
		WithKey(e.UserID).
		WithValue(e).
		WithEventID(e.ID).
		WithEventType(string(e.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithTimestamp(e.OccurredAt).
		WithCorrelationID(middleware.RequestIDFromContext(ctx))

	msg, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", e.Type, err)
	}
	return p.producer.Publish(ctx, msg)
}

// Decode reads a lifecycle event from a consumed message. Malformed payloads
// and unknown types are permanent failures.
func Decode(msg kafka.Message) (Event, error) {
	var e Event
	if err := msg.DecodeValue(&e); err != nil {
		return Event{}, err
	}
	if !e.Type.IsValid() {
		return Event{}, kafka.NewPermanentError("unknown event type", fmt.Errorf("%q", e.Type))
	}
	if e.ID == "" {
		e.ID = msg.GetEventID()
	}
	if e.ID == "" || e.UserID == "" {
		return Event{}, kafka.NewPermanentError("incomplete event", fmt.Errorf("id=%q user_id=%q", e.ID, e.UserID))
	}
	return e, nil
}
