// Package forwarder moves lifecycle events from Kafka to Loki.
package forwarder

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Defaults used when config leaves topic or group empty.
const (
	DefaultTopic   = "otp-events"
	DefaultGroupID = "otp-events-forwarder"
)

// MessageReader is the subset of *kafka.Reader used by Forwarder.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Pusher ships one event's JSON to the log store.
type Pusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

// NewKafkaReader returns a consumer-group reader for topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	if topic == "" {
		topic = DefaultTopic
	}
	if groupID == "" {
		groupID = DefaultGroupID
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Forwarder reads events and pushes each one. Push failures are logged and the message is skipped.
type Forwarder struct {
	reader      MessageReader
	pusher      Pusher
	pushTimeout time.Duration
	readBackoff time.Duration
}

// New returns a Forwarder from reader to pusher.
func New(reader MessageReader, pusher Pusher) *Forwarder {
	return &Forwarder{reader: reader, pusher: pusher, pushTimeout: 10 * time.Second, readBackoff: time.Second}
}

// Run forwards messages until ctx is canceled. It returns nil on cancellation.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("forwarder: kafka read failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(f.readBackoff):
			}
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, f.pushTimeout)
		if err := f.pusher.PushEventJSON(pushCtx, msg.Value); err != nil {
			slog.Warn("forwarder: loki push failed", "offset", msg.Offset, "error", err)
		}
		cancel()
	}
}

// Close closes the reader.
func (f *Forwarder) Close() error {
	return f.reader.Close()
}
