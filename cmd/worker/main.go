// Worker sweeps expired OTP challenges every OTP_CLEANUP_INTERVAL and, when KAFKA_BROKERS and LOKI_URL
// are set, forwards lifecycle events from Kafka to Loki.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"otp-gateway/internal/bootstrap"
	"otp-gateway/internal/config"
	"otp-gateway/internal/otp/service"
	"otp-gateway/internal/otp/sweeper"
	"otp-gateway/internal/telemetry/forwarder"
	"otp-gateway/internal/telemetry/loki"
	oteltelemetry "otp-gateway/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := oteltelemetry.NewProviders(ctx, oteltelemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName + "-worker",
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	logger := oteltelemetry.SetupLogging(oteltelemetry.LogConfig{
		ServiceName: cfg.ServiceName + "-worker",
		Level:       cfg.LogLevel,
	})

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("worker: store: %v", err)
	}
	defer store.Close()

	emitter, closeEmitter := bootstrap.NewEmitter(cfg, providers, logger)
	defer closeEmitter()

	svc, err := service.NewChallengeService(store.Repo, service.Config{
		Policy:         cfg.Policy(),
		Emitter:        emitter,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("worker: challenge service: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker: shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("worker: sweeping challenges", "backend", cfg.StoreBackend, "interval", cfg.OTPCleanupInterval)
		_ = sweeper.New(svc, cfg.OTPCleanupInterval, logger).Run(ctx)
	}()

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) > 0 && cfg.LokiURL != "" {
		fwd := forwarder.New(forwarder.NewKafkaReader(brokers, cfg.TelemetryKafkaTopic, cfg.KafkaGroupID), loki.NewClient(cfg.LokiURL))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer fwd.Close()
			logger.Info("worker: forwarding events", "topic", cfg.TelemetryKafkaTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)
			_ = fwd.Run(ctx)
		}()
	} else {
		logger.Info("worker: event forwarding disabled (set KAFKA_BROKERS and LOKI_URL)")
	}

	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = providers.Shutdown(shutdownCtx)
	logger.Info("worker: stopped")
}
