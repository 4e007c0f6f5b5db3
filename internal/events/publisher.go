package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher sends appointment lifecycle events. It satisfies
// appointment.Publisher.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a log-only
// publisher otherwise.
func New(brokers, topic string, logger *slog.Logger) Publisher {
	list := SplitBrokers(brokers)
	if len(list) == 0 {
		logger.Warn("kafka publisher disabled (no brokers configured), logging events instead")
		return NewLogPublisher(logger)
	}
	return NewKafkaPublisher(list, topic)
}

func SplitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.Hash{},
		}),
		now: time.Now,
	}
}

// Publish keys the message by appointment id so events for one appointment
// stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType, key string, payload []byte) error {
	p.logger.InfoContext(ctx, "appointment event",
		"event_type", eventType,
		"appointment_id", key,
		"payload", string(payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
