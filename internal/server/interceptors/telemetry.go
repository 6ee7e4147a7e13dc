package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"otp-gateway/internal/telemetry"
)

// TelemetryUnary returns a unary server interceptor that emits a grpc.request event after each RPC.
// Best-effort: failures are logged by EmitAsync and do not fail the RPC. If emitter is nil, the
// interceptor no-ops. skipMethods is the set of full method names to not emit (e.g. health checks).
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		event := telemetry.NewEvent(telemetry.EventGRPCRequest, time.Now())
		event.Source = "grpc_interceptor"
		event.Method = info.FullMethod
		event.StatusCode = status.Code(err).String()
		event.DurationMs = time.Since(start).Milliseconds()
		event.ClientIP = ClientIP(ctx)
		telemetry.EmitAsync(emitter, ctx, event)
		return resp, err
	}
}
