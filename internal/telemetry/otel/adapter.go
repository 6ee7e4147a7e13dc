package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"otp-gateway/internal/telemetry"
)

// instrumentationName is the OTel logger name used for lifecycle events.
const instrumentationName = "otp-gateway/telemetry"

// RecordEmitter is the subset of otellog.Logger used by the event emitter.
type RecordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to an OTel log record. The body is the event JSON; the indexed
// fields are repeated as attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(string(event.Type))
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if body, err := json.Marshal(event); err == nil {
		rec.SetBody(otellog.StringValue(string(body)))
	}

	str := func(key, val string) {
		if val != "" {
			rec.AddAttributes(otellog.String(key, val))
		}
	}
	str("event_id", event.ID)
	str("event_type", string(event.Type))
	str("source", event.Source)
	str("challenge_id", event.ChallengeID)
	str("identity", event.Identity)
	str("purpose", event.Purpose)
	str("reason", event.Reason)
	str("method", event.Method)
	str("status_code", event.StatusCode)
	str("client_ip", event.ClientIP)
	if event.Count != 0 {
		rec.AddAttributes(otellog.Int64("count", event.Count))
	}
	if event.DurationMs != 0 {
		rec.AddAttributes(otellog.Int64("duration_ms", event.DurationMs))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
