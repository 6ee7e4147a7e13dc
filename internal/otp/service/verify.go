package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"otp-gateway/internal/otp"
	"otp-gateway/internal/otp/domain"
	"otp-gateway/internal/otp/repository"
	"otp-gateway/internal/telemetry"
)

// VerifyChallenge checks code against the current challenge for (identity, purpose).
// It returns true on success. Failures are ErrInvalidArgument, ErrNotFoundOrExpired,
// ErrAttemptsExhausted, ErrInvalidCode or ErrStoreFailure.
//
// The attempt is counted and persisted before the code is compared. Every write is a
// version-checked save, so parallel verifications cannot exceed MaxVerificationAttempts.
// The guess that consumes the last attempt reports ErrAttemptsExhausted; the next call
// burns the challenge and reports ErrAttemptsExhausted again, even with the right code.
func (s *ChallengeService) VerifyChallenge(ctx context.Context, identity, purposeName, code string) (ok bool, err error) {
	ctx, span := s.tracer.Start(ctx, "ChallengeService.VerifyChallenge")
	outcome := "verified"
	defer func() {
		s.finish(span, s.instruments.verifications, outcome, err)
	}()

	if err := ctx.Err(); err != nil {
		outcome = "canceled"
		return false, err
	}
	in := verifyInput{Identity: strings.TrimSpace(identity), Purpose: purposeName, Code: code}
	if err := s.validate(in); err != nil {
		outcome = "invalid_argument"
		return false, err
	}
	purpose, err := domain.ParsePurpose(purposeName)
	if err != nil {
		outcome = "invalid_argument"
		return false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	identity = in.Identity
	span.SetAttributes(attribute.String("otp.purpose", purpose.String()))
	masked := otp.MaskIdentity(identity)
	now := s.clock.Now()
	maxAttempts := s.policy.MaxVerificationAttempts

	for i := 0; i < s.maxRetries; i++ {
		c, err := s.repo.FindActive(ctx, identity, purpose, now)
		if err != nil {
			outcome = "store_failure"
			return false, storeErr("find active challenge", err)
		}
		if c == nil {
			outcome = "not_found"
			s.emitVerifyFailed(ctx, "", masked, purpose, "not_found_or_expired")
			return false, ErrNotFoundOrExpired
		}
		span.SetAttributes(attribute.String("otp.challenge_id", c.ID))

		if c.AttemptsCount >= maxAttempts {
			c.MarkUsed(domain.UsedReasonExhausted, now)
			if err := s.repo.Save(ctx, c); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					continue
				}
				outcome = "store_failure"
				return false, storeErr("burn exhausted challenge", err)
			}
			outcome = "exhausted"
			s.logger.InfoContext(ctx, "otp challenge exhausted", "challenge_id", c.ID, "identity", masked, "purpose", purpose)
			s.emit(ctx, telemetry.EventExhausted, func(e *telemetry.Event) {
				e.ChallengeID, e.Identity, e.Purpose, e.Count = c.ID, masked, purpose.String(), int64(c.AttemptsCount)
			})
			return false, ErrAttemptsExhausted
		}

		c.RecordAttempt(now)
		if err := s.repo.Save(ctx, c); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			outcome = "store_failure"
			return false, storeErr("record attempt", err)
		}

		if !otp.CodeEqual(code, c.CodeHash) {
			if c.AttemptsCount >= maxAttempts {
				outcome = "exhausted"
				s.logger.InfoContext(ctx, "otp attempts exhausted", "challenge_id", c.ID, "identity", masked, "purpose", purpose)
				s.emit(ctx, telemetry.EventExhausted, func(e *telemetry.Event) {
					e.ChallengeID, e.Identity, e.Purpose, e.Count = c.ID, masked, purpose.String(), int64(c.AttemptsCount)
				})
				return false, ErrAttemptsExhausted
			}
			outcome = "invalid_code"
			s.emitVerifyFailed(ctx, c.ID, masked, purpose, "invalid_code")
			return false, ErrInvalidCode
		}

		if err := s.markVerified(ctx, c, now); err != nil {
			if errors.Is(err, ErrNotFoundOrExpired) {
				outcome = "not_found"
				s.emitVerifyFailed(ctx, c.ID, masked, purpose, "not_found_or_expired")
			} else {
				outcome = "store_failure"
			}
			return false, err
		}
		s.logger.InfoContext(ctx, "otp challenge verified", "challenge_id", c.ID, "identity", masked, "purpose", purpose)
		s.emit(ctx, telemetry.EventVerified, func(e *telemetry.Event) {
			e.ChallengeID, e.Identity, e.Purpose = c.ID, masked, purpose.String()
		})
		return true, nil
	}
	outcome = "store_failure"
	return false, storeErr("verify challenge", repository.ErrConflict)
}

// markVerified marks c used after its attempt was already counted. On a version conflict it re-reads
// the current challenge and retries only while c is still the live one.
func (s *ChallengeService) markVerified(ctx context.Context, c *domain.Challenge, now time.Time) error {
	for i := 0; i < s.maxRetries; i++ {
		c.MarkUsed(domain.UsedReasonVerified, now)
		err := s.repo.Save(ctx, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return storeErr("mark challenge verified", err)
		}
		cur, err := s.repo.FindActive(ctx, c.Identity, c.Purpose, now)
		if err != nil {
			return storeErr("find active challenge", err)
		}
		if cur == nil || cur.ID != c.ID {
			return ErrNotFoundOrExpired
		}
		c = cur
	}
	return storeErr("mark challenge verified", repository.ErrConflict)
}

func (s *ChallengeService) emitVerifyFailed(ctx context.Context, challengeID, masked string, purpose domain.Purpose, reason string) {
	s.emit(ctx, telemetry.EventVerifyFailed, func(e *telemetry.Event) {
		e.ChallengeID, e.Identity, e.Purpose, e.Reason = challengeID, masked, purpose.String(), reason
	})
}
