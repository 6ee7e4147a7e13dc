package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	devv1 "otp-gateway/api/dev/v1"
	otpv1 "otp-gateway/api/otp/v1"

	"otp-gateway/internal/devotp"
	devhandler "otp-gateway/internal/devotp/handler"
	healthhandler "otp-gateway/internal/health/handler"
	otphandler "otp-gateway/internal/otp/handler"
	"otp-gateway/internal/server/interceptors"
	"otp-gateway/internal/telemetry"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// OTP is the challenge service for OTPService. If nil, OTP RPCs return Unimplemented.
	OTP otphandler.ChallengeService
	// DevOTPStore backs the dev-only DevService (GetOTP). If nil, DevService is not registered.
	// Set only when OTP_RETURN_TO_CLIENT is enabled and not production.
	DevOTPStore devotp.Store
	// HealthPinger is used by the Health service for readiness (the challenge repository). If nil, the store check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by the Health service for readiness (OPA evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
}

// RegisterServices registers the gRPC services with the given server.
//
// Service → handler mapping:
//   - otp.v1.OTPService        → internal/otp/handler
//   - grpc.health.v1.Health    → internal/health/handler
//   - dev.v1.DevService        → internal/devotp/handler (dev only)
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	otpv1.RegisterOTPServiceServer(s, otphandler.NewServer(deps.OTP))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker,
		otpv1.OTPService_ServiceDesc.ServiceName))
	if deps.DevOTPStore != nil {
		devv1.RegisterDevServiceServer(s, devhandler.NewServer(deps.DevOTPStore))
	}
}

// Options configures NewGRPCServer. Nil providers fall back to the OTel globals.
type Options struct {
	Logger         *slog.Logger
	Emitter        telemetry.EventEmitter
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// quietMethods are not logged or emitted per request.
var quietMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a grpc.Server instrumented with otelgrpc and the unary interceptor chain
// recovery → request ID → logging → telemetry.
func NewGRPCServer(opts Options) *grpc.Server {
	var statsOpts []otelgrpc.Option
	if opts.TracerProvider != nil {
		statsOpts = append(statsOpts, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		statsOpts = append(statsOpts, otelgrpc.WithMeterProvider(opts.MeterProvider))
	}
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler(statsOpts...)),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(),
			interceptors.RequestIDUnary(),
			interceptors.LoggingUnary(opts.Logger, quietMethods),
			interceptors.TelemetryUnary(opts.Emitter, quietMethods),
		),
	)
}
