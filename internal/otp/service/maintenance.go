package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"otp-gateway/internal/otp"
	"otp-gateway/internal/telemetry"
)

// Invalidate supersedes every live challenge for (identity, purpose) and returns how many were
// changed. Idempotent: a second call returns 0.
func (s *ChallengeService) Invalidate(ctx context.Context, identity, purposeName string) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "ChallengeService.Invalidate")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	identity, purpose, err := s.parseKey(identity, purposeName)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.String("otp.purpose", purpose.String()))
	n, err = s.repo.InvalidateAll(ctx, identity, purpose, s.clock.Now())
	if err != nil {
		span.RecordError(err)
		return 0, storeErr("invalidate challenges", err)
	}
	span.SetAttributes(attribute.Int64("otp.invalidated", n))
	if n == 0 {
		return 0, nil
	}
	masked := otp.MaskIdentity(identity)
	s.instruments.invalidated.Add(ctx, n, metric.WithAttributes(attribute.String("reason", "invalidated")))
	s.logger.InfoContext(ctx, "otp challenges invalidated", "identity", masked, "purpose", purpose, "count", n)
	s.emit(ctx, telemetry.EventInvalidated, func(e *telemetry.Event) {
		e.Identity, e.Purpose, e.Count = masked, purpose.String(), n
	})
	return n, nil
}

// Cleanup marks unused challenges past their expiry as expired and deletes expired challenges older
// than the request window, so rate-limit counts are unaffected. Idempotent: with no new data a second
// call changes nothing.
func (s *ChallengeService) Cleanup(ctx context.Context) (res CleanupResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ChallengeService.Cleanup")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	now := s.clock.Now()
	res.Marked, res.Deleted, err = s.repo.DeleteOrMarkExpired(ctx, now, now.Add(-s.policy.RequestWindow))
	if err != nil {
		span.RecordError(err)
		return CleanupResult{}, storeErr("cleanup expired challenges", err)
	}
	if p, ok := s.devSink.(purger); ok {
		p.Purge(now)
	}
	span.SetAttributes(attribute.Int64("otp.marked", res.Marked), attribute.Int64("otp.deleted", res.Deleted))
	if res.Marked == 0 && res.Deleted == 0 {
		return res, nil
	}
	s.instruments.cleaned.Add(ctx, res.Marked, metric.WithAttributes(attribute.String("action", "marked")))
	s.instruments.cleaned.Add(ctx, res.Deleted, metric.WithAttributes(attribute.String("action", "deleted")))
	s.logger.InfoContext(ctx, "otp cleanup", "marked", res.Marked, "deleted", res.Deleted)
	s.emit(ctx, telemetry.EventCleanup, func(e *telemetry.Event) {
		e.Count = res.Marked + res.Deleted
	})
	return res, nil
}
