package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otp-gateway/internal/bootstrap"
	"otp-gateway/internal/config"
	"otp-gateway/internal/devotp"
	"otp-gateway/internal/notify/sms"
	"otp-gateway/internal/otp/policy"
	"otp-gateway/internal/otp/service"
	"otp-gateway/internal/server"
	oteltelemetry "otp-gateway/internal/telemetry/otel"
)

// ShutdownDrainDuration bounds GracefulStop before in-flight RPCs are cut off.
const ShutdownDrainDuration = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := oteltelemetry.NewProviders(ctx, oteltelemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	var lp = providers.LoggerProvider
	if cfg.OTLPEndpoint == "" {
		lp = nil
	}
	logger := oteltelemetry.SetupLogging(oteltelemetry.LogConfig{
		ServiceName:    cfg.ServiceName,
		Level:          cfg.LogLevel,
		LoggerProvider: lp,
	})

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	logger.Info("challenge store ready", "backend", cfg.StoreBackend)

	emitter, closeEmitter := bootstrap.NewEmitter(cfg, providers, logger)

	svcCfg := service.Config{
		Policy:         cfg.Policy(),
		Emitter:        emitter,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
		Logger:         logger,
	}
	deps := server.Deps{HealthPinger: store.Repo}

	if cfg.DevOTPEnabled() {
		devStore := devotp.NewMemoryStore()
		svcCfg.DevSink = devStore
		deps.DevOTPStore = devStore
		logger.Warn("dev OTP mode enabled: codes are captured for DevService and not sent by SMS")
	} else if cfg.SMSLocalAPIKey != "" {
		svcCfg.Sender = sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender, cfg.SMSMaxRetries)
	} else {
		logger.Warn("SMS_LOCAL_API_KEY not set: codes are issued but not delivered")
	}

	if cfg.OTPPolicyFile != "" {
		evaluator, err := policy.LoadOPAEvaluator(ctx, cfg.OTPPolicyFile)
		if err != nil {
			log.Fatalf("issuance policy: %v", err)
		}
		svcCfg.Issuance = evaluator
		deps.HealthPolicyChecker = evaluator
		logger.Info("issuance policy loaded", "file", cfg.OTPPolicyFile)
	}

	svc, err := service.NewChallengeService(store.Repo, svcCfg)
	if err != nil {
		log.Fatalf("challenge service: %v", err)
	}
	deps.OTP = svc

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := server.NewGRPCServer(server.Options{
		Logger:         logger,
		Emitter:        emitter,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
	})
	server.RegisterServices(s, deps)

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gRPC server...")
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(ShutdownDrainDuration):
		logger.Warn("drain timeout, forcing stop")
		s.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := closeEmitter(); err != nil {
		logger.Error("close event producer", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("close store", "error", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		slog.Error("otel shutdown", "error", err)
	}
	logger.Info("gRPC server stopped")
}
