// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"otp-gateway/internal/otp/domain"
)

// Store backends selectable with STORE_BACKEND.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Postgres DSN. Required when StoreBackend is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// StoreBackend selects the challenge store: postgres, redis or memory.
	// Defaults to postgres when DATABASE_URL is set, else memory.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// RedisURL is the redis:// URL. Required when StoreBackend is redis.
	RedisURL string `mapstructure:"REDIS_URL"`

	// OTPTTL is how long an issued code stays verifiable.
	OTPTTL time.Duration `mapstructure:"OTP_TTL"`
	// OTPMaxRequestsPerWindow caps issued codes per phone and purpose within OTPRequestWindow.
	OTPMaxRequestsPerWindow int `mapstructure:"OTP_MAX_REQUESTS_PER_WINDOW"`
	// OTPRequestWindow is the rate-limit lookback.
	OTPRequestWindow time.Duration `mapstructure:"OTP_REQUEST_WINDOW"`
	// OTPMaxVerifyAttempts is the guess budget per code.
	OTPMaxVerifyAttempts int `mapstructure:"OTP_MAX_VERIFY_ATTEMPTS"`
	// OTPCleanupInterval is how often the worker sweeps expired challenges.
	OTPCleanupInterval time.Duration `mapstructure:"OTP_CLEANUP_INTERVAL"`
	// OTPPolicyFile is an optional Rego module gating issuance (package otp.issuance).
	OTPPolicyFile string `mapstructure:"OTP_POLICY_FILE"`
	// OTPReturnToClient when true enables dev OTP mode: codes are captured for DevService.GetOTP instead of SMS.
	// Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// SMSLocalAPIKey is the API key for SMS Local. Empty disables SMS delivery.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// SMSMaxRetries is how many times a failed send is retried.
	SMSMaxRetries int `mapstructure:"SMS_MAX_RETRIES"`

	// OTLPEndpoint is the OTLP collector (e.g. localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name and the logger's service attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, lifecycle events go to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for lifecycle events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the worker's forwarder.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// Worker-only: Loki URL for the forwarder (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORE_BACKEND", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("OTP_TTL", domain.DefaultTTL.String())
	v.SetDefault("OTP_MAX_REQUESTS_PER_WINDOW", domain.DefaultMaxRequestsPerWindow)
	v.SetDefault("OTP_REQUEST_WINDOW", domain.DefaultRequestWindow.String())
	v.SetDefault("OTP_MAX_VERIFY_ATTEMPTS", domain.DefaultMaxVerificationAttempts)
	v.SetDefault("OTP_CLEANUP_INTERVAL", "1m")
	v.SetDefault("OTP_POLICY_FILE", "")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://app.smslocal.in/api/smsapi")
	v.SetDefault("SMS_MAX_RETRIES", 3)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "otp-gateway")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "otp-events")
	v.SetDefault("KAFKA_GROUP_ID", "otp-events-forwarder")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = StoreMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreBackend = StorePostgres
		}
	}
	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORE_BACKEND=postgres")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when STORE_BACKEND=redis")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("config: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if err := cfg.Policy().Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.OTPCleanupInterval <= 0 {
		return nil, errors.New("config: OTP_CLEANUP_INTERVAL must be positive")
	}
	if cfg.SMSMaxRetries < 0 {
		return nil, errors.New("config: SMS_MAX_RETRIES must not be negative")
	}

	return &cfg, nil
}

// Policy returns the challenge limits configured by the OTP_* variables.
func (c *Config) Policy() domain.Policy {
	return domain.Policy{
		TTL:                     c.OTPTTL,
		MaxRequestsPerWindow:    c.OTPMaxRequestsPerWindow,
		RequestWindow:           c.OTPRequestWindow,
		MaxVerificationAttempts: c.OTPMaxVerifyAttempts,
	}
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka telemetry is enabled (non-empty list) and to create the producer and reader.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DevOTPEnabled reports whether codes are captured for DevService instead of being sent.
func (c *Config) DevOTPEnabled() bool {
	return c.OTPReturnToClient && c.Env != "production"
}
