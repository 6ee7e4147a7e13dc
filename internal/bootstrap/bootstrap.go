// Package bootstrap builds the collaborators shared by the server and worker binaries from Config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"otp-gateway/internal/config"
	"otp-gateway/internal/db"
	"otp-gateway/internal/otp/repository"
	"otp-gateway/internal/telemetry"
	oteltelemetry "otp-gateway/internal/telemetry/otel"
	"otp-gateway/internal/telemetry/producer"
)

// Store is an open challenge repository and the function releasing its connections.
type Store struct {
	Repo  repository.Repository
	Close func() error
}

// OpenStore opens the repository selected by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Store{Repo: repository.NewPostgresRepository(database), Close: database.Close}, nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		// Keys must outlive the rate-limit window so CountSince still sees them.
		retention := cfg.OTPRequestWindow + cfg.OTPTTL
		return &Store{Repo: repository.NewRedisRepository(client, retention), Close: client.Close}, nil
	case config.StoreMemory:
		return &Store{Repo: repository.NewMemoryRepository(), Close: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewEmitter fans events out to OTel logs (when an OTLP endpoint is set) and Kafka (when brokers are set).
// It returns a nil emitter when neither is configured, and a close function flushing the Kafka writer.
func NewEmitter(cfg *config.Config, providers *oteltelemetry.Providers, logger *slog.Logger) (telemetry.EventEmitter, func() error) {
	var emitters []telemetry.EventEmitter
	if cfg.OTLPEndpoint != "" && providers != nil {
		emitters = append(emitters, oteltelemetry.NewEventEmitter(providers.LoggerProvider))
	}
	closeFn := func() error { return nil }
	if p := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic); p != nil {
		emitters = append(emitters, p)
		closeFn = p.Close
		logger.Info("lifecycle events to kafka", "topic", cfg.TelemetryKafkaTopic)
	}
	return telemetry.Fanout(emitters...), closeFn
}
