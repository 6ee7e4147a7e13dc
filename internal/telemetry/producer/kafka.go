package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"otp-gateway/internal/telemetry"
)

const writeTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer used by KafkaProducer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer MessageWriter
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes events to topic.
// It returns nil when brokers or topic is empty; a nil *KafkaProducer is a valid no-op. Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// NewKafkaProducerWithWriter returns a KafkaProducer on an existing writer.
func NewKafkaProducerWithWriter(w MessageWriter, topic string) *KafkaProducer {
	return &KafkaProducer{writer: w, topic: topic}
}

// Emit serializes the event as JSON and writes it to the topic. Events for the same challenge
// share a key so they land on one partition in order.
func (p *KafkaProducer) Emit(ctx context.Context, event *telemetry.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := event.ChallengeID
	if key == "" {
		key = event.Identity
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
