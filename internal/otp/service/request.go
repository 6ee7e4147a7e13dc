package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"otp-gateway/internal/otp"
	"otp-gateway/internal/otp/domain"
	"otp-gateway/internal/otp/policy"
	"otp-gateway/internal/telemetry"
)

// RequestChallenge issues a new code for (identity, purpose) and supersedes any live challenge for
// the same key. Returns ErrInvalidArgument, ErrRateLimited (nothing created or superseded),
// ErrIssuanceDenied or ErrStoreFailure.
//
// Concurrent requests for the same key are not serialized: both may persist, and verification
// uses the most recent by CreatedAt.
func (s *ChallengeService) RequestChallenge(ctx context.Context, identity, purposeName string) (ticket *Ticket, err error) {
	ctx, span := s.tracer.Start(ctx, "ChallengeService.RequestChallenge")
	outcome := "issued"
	defer func() {
		s.finish(span, s.instruments.requests, outcome, err)
	}()

	if err := ctx.Err(); err != nil {
		outcome = "canceled"
		return nil, err
	}
	identity, purpose, err := s.parseKey(identity, purposeName)
	if err != nil {
		outcome = "invalid_argument"
		return nil, err
	}
	span.SetAttributes(attribute.String("otp.purpose", purpose.String()))
	masked := otp.MaskIdentity(identity)
	now := s.clock.Now()

	recent, err := s.repo.CountSince(ctx, identity, purpose, now.Add(-s.policy.RequestWindow))
	if err != nil {
		outcome = "store_failure"
		return nil, storeErr("count recent challenges", err)
	}
	if recent >= s.policy.MaxRequestsPerWindow {
		outcome = "rate_limited"
		s.logger.InfoContext(ctx, "otp request rate limited", "identity", masked, "purpose", purpose, "recent", recent)
		s.emit(ctx, telemetry.EventRateLimited, func(e *telemetry.Event) {
			e.Identity, e.Purpose, e.Count = masked, purpose.String(), int64(recent)
		})
		return nil, ErrRateLimited
	}

	decision, err := s.issuance.Evaluate(ctx, policy.Input{
		Identity:       identity,
		Purpose:        purpose.String(),
		RecentRequests: recent,
		MaxRequests:    s.policy.MaxRequestsPerWindow,
		Now:            now,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "issuance policy evaluation failed, allowing", "purpose", purpose, "error", err)
	} else if !decision.Allow {
		outcome = "denied"
		s.logger.InfoContext(ctx, "otp request denied by policy", "identity", masked, "purpose", purpose, "reason", decision.Reason)
		s.emit(ctx, telemetry.EventDenied, func(e *telemetry.Event) {
			e.Identity, e.Purpose, e.Reason = masked, purpose.String(), decision.Reason
		})
		if decision.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrIssuanceDenied, decision.Reason)
		}
		return nil, ErrIssuanceDenied
	}

	superseded, err := s.repo.InvalidateAll(ctx, identity, purpose, now)
	if err != nil {
		outcome = "store_failure"
		return nil, storeErr("supersede live challenges", err)
	}
	if superseded > 0 {
		s.instruments.invalidated.Add(ctx, superseded, metric.WithAttributes(attribute.String("reason", "superseded")))
		s.emit(ctx, telemetry.EventSuperseded, func(e *telemetry.Event) {
			e.Identity, e.Purpose, e.Count = masked, purpose.String(), superseded
		})
	}

	code, err := s.generator.Generate()
	if err != nil {
		outcome = "error"
		return nil, fmt.Errorf("generate code: %w", err)
	}
	c := &domain.Challenge{
		ID:        uuid.NewString(),
		Identity:  identity,
		Purpose:   purpose,
		CodeHash:  otp.HashCode(code),
		ExpiresAt: now.Add(s.policy.TTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, c); err != nil {
		outcome = "store_failure"
		return nil, storeErr("save challenge", err)
	}
	span.SetAttributes(attribute.String("otp.challenge_id", c.ID))

	if s.devSink != nil {
		s.devSink.Put(ctx, c.ID, code, c.ExpiresAt)
	}
	delivered := s.deliver(ctx, c, code, masked)

	s.logger.InfoContext(ctx, "otp challenge issued",
		"challenge_id", c.ID, "identity", masked, "purpose", purpose,
		"expires_at", c.ExpiresAt, "superseded", superseded, "delivered", delivered)
	s.emit(ctx, telemetry.EventRequested, func(e *telemetry.Event) {
		e.ChallengeID, e.Identity, e.Purpose = c.ID, masked, purpose.String()
	})
	return &Ticket{
		ChallengeID: c.ID,
		Destination: masked,
		ExpiresAt:   c.ExpiresAt,
		Delivered:   delivered,
	}, nil
}

// deliver hands the code to the sender. Failures are logged; the challenge stays issued.
func (s *ChallengeService) deliver(ctx context.Context, c *domain.Challenge, code, masked string) bool {
	if s.sender == nil {
		return false
	}
	if err := s.sender.SendOTP(ctx, c.Identity, code); err != nil {
		s.logger.WarnContext(ctx, "otp delivery failed", "challenge_id", c.ID, "identity", masked, "error", err)
		return false
	}
	return true
}

// finish records the outcome on the span and counter.
func (s *ChallengeService) finish(span trace.Span, counter metric.Int64Counter, outcome string, err error) {
	attrs := attribute.String("otp.outcome", outcome)
	span.SetAttributes(attrs)
	if err != nil && outcome != "rate_limited" && outcome != "invalid_code" {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attrs))
	span.End()
}
