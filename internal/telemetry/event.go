// Package telemetry defines OTP lifecycle events and best-effort emission to Kafka and OTel logs.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names a challenge lifecycle transition.
type EventType string

const (
	EventRequested    EventType = "otp.requested"
	EventRateLimited  EventType = "otp.rate_limited"
	EventDenied       EventType = "otp.denied"
	EventSuperseded   EventType = "otp.superseded"
	EventVerified     EventType = "otp.verified"
	EventVerifyFailed EventType = "otp.verify_failed"
	EventExhausted    EventType = "otp.exhausted"
	EventInvalidated  EventType = "otp.invalidated"
	EventCleanup      EventType = "otp.cleanup"
	// EventGRPCRequest is emitted by the server interceptor after each RPC.
	EventGRPCRequest EventType = "grpc.request"
)

// DefaultSource is the source recorded on events emitted by this service.
const DefaultSource = "otp-gateway"

// Event is a single lifecycle event. Identity is always masked and the code is never included.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"eventType"`
	Source      string    `json:"source"`
	ChallengeID string    `json:"challengeId,omitempty"`
	Identity    string    `json:"identity,omitempty"`
	Purpose     string    `json:"purpose,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Count       int64     `json:"count,omitempty"`
	Method      string    `json:"method,omitempty"`
	StatusCode  string    `json:"statusCode,omitempty"`
	DurationMs  int64     `json:"durationMs,omitempty"`
	ClientIP    string    `json:"clientIp,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewEvent returns an event of type t stamped at now with a fresh ID.
func NewEvent(t EventType, now time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Source:    DefaultSource,
		CreatedAt: now.UTC(),
	}
}

// EventEmitter emits lifecycle events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, event *Event) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, event *Event) error { return f(ctx, event) }

type fanout []EventEmitter

// Fanout returns an emitter that sends each event to every non-nil emitter and joins their errors.
// It returns nil when no emitters are given.
func Fanout(emitters ...EventEmitter) EventEmitter {
	var out fanout
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (f fanout) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
