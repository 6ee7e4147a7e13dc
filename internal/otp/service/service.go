// Package service implements phone OTP challenge issuance, verification, invalidation and cleanup
// over a challenge repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"otp-gateway/internal/otp"
	"otp-gateway/internal/otp/domain"
	"otp-gateway/internal/otp/policy"
	"otp-gateway/internal/otp/repository"
	"otp-gateway/internal/platform/clock"
	"otp-gateway/internal/platform/validator"
	"otp-gateway/internal/telemetry"
)

const instrumentationName = "otp-gateway/internal/otp/service"

// DefaultMaxConflictRetries bounds how often an operation re-reads a challenge after a version conflict.
const DefaultMaxConflictRetries = 5

// Sender delivers a code to a phone number. *sms.SMSLocalClient implements it.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// CodeSink captures issued codes for dev-only retrieval. *devotp.MemoryStore implements it.
type CodeSink interface {
	Put(ctx context.Context, challengeID, code string, expiresAt time.Time)
}

// purger is implemented by sinks that can drop expired entries during Cleanup.
type purger interface {
	Purge(now time.Time) int
}

// Ticket is returned by RequestChallenge. It never carries the code.
type Ticket struct {
	ChallengeID string
	// Destination is the masked phone number the code was sent to.
	Destination string
	ExpiresAt   time.Time
	// Delivered is false when no sender is configured or delivery failed.
	Delivered bool
}

// CleanupResult reports what a Cleanup pass changed.
type CleanupResult struct {
	Marked  int64
	Deleted int64
}

// Config holds optional collaborators. Nil fields use defaults: DefaultPolicy, the system clock,
// crypto/rand codes, no delivery, no dev capture, no events, allow-all issuance, global OTel providers
// and slog.Default().
type Config struct {
	Policy             domain.Policy
	Clock              clock.Clocker
	Generator          otp.Generator
	Sender             Sender
	DevSink            CodeSink
	Emitter            telemetry.EventEmitter
	Issuance           policy.Evaluator
	Validator          validator.Validator
	TracerProvider     trace.TracerProvider
	MeterProvider      metric.MeterProvider
	Logger             *slog.Logger
	MaxConflictRetries int
}

// ChallengeService issues and verifies OTP challenges. Safe for concurrent use; all shared state
// lives in the repository.
type ChallengeService struct {
	repo        repository.Repository
	policy      domain.Policy
	clock       clock.Clocker
	generator   otp.Generator
	sender      Sender
	devSink     CodeSink
	emitter     telemetry.EventEmitter
	issuance    policy.Evaluator
	validator   validator.Validator
	logger      *slog.Logger
	maxRetries  int
	tracer      trace.Tracer
	instruments instruments
}

type instruments struct {
	requests      metric.Int64Counter
	verifications metric.Int64Counter
	invalidated   metric.Int64Counter
	cleaned       metric.Int64Counter
}

// NewChallengeService returns a ChallengeService over repo. A zero cfg.Policy means DefaultPolicy.
func NewChallengeService(repo repository.Repository, cfg Config) (*ChallengeService, error) {
	if repo == nil {
		return nil, errors.New("challenge service: repository is required")
	}
	pol := cfg.Policy
	if pol == (domain.Policy{}) {
		pol = domain.DefaultPolicy()
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	s := &ChallengeService{
		repo:       repo,
		policy:     pol,
		clock:      cfg.Clock,
		generator:  cfg.Generator,
		sender:     cfg.Sender,
		devSink:    cfg.DevSink,
		emitter:    cfg.Emitter,
		issuance:   cfg.Issuance,
		validator:  cfg.Validator,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxConflictRetries,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.generator == nil {
		s.generator = otp.NewRandomGenerator()
	}
	if s.issuance == nil {
		s.issuance = policy.AllowAll{}
	}
	if s.validator == nil {
		v, err := validator.NewV10Validator()
		if err != nil {
			return nil, err
		}
		s.validator = v
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxRetries <= 0 {
		s.maxRetries = DefaultMaxConflictRetries
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer(instrumentationName)
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	ins, err := newInstruments(mp.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	s.instruments = ins
	return s, nil
}

func newInstruments(m metric.Meter) (instruments, error) {
	var ins instruments
	var err error
	if ins.requests, err = m.Int64Counter("otp.requests",
		metric.WithDescription("RequestChallenge calls by outcome")); err != nil {
		return ins, err
	}
	if ins.verifications, err = m.Int64Counter("otp.verifications",
		metric.WithDescription("VerifyChallenge calls by outcome")); err != nil {
		return ins, err
	}
	if ins.invalidated, err = m.Int64Counter("otp.invalidated",
		metric.WithDescription("Challenges superseded by Invalidate or a newer request")); err != nil {
		return ins, err
	}
	if ins.cleaned, err = m.Int64Counter("otp.cleanup",
		metric.WithDescription("Challenges marked expired or deleted by Cleanup")); err != nil {
		return ins, err
	}
	return ins, nil
}

// Policy returns the limits the service enforces.
func (s *ChallengeService) Policy() domain.Policy {
	return s.policy
}

// Ping checks the repository.
func (s *ChallengeService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// challengeKeyInput is validated for RequestChallenge and Invalidate.
type challengeKeyInput struct {
	Identity string `json:"identity" validate:"required,max=20"`
	Purpose  string `json:"purpose" validate:"required,purpose"`
}

type verifyInput struct {
	Identity string `json:"identity" validate:"required,max=20"`
	Purpose  string `json:"purpose" validate:"required,purpose"`
	Code     string `json:"code" validate:"required,otpcode"`
}

func (s *ChallengeService) validate(in any) error {
	if err := s.validator.Validate(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// parseKey validates identity and purpose and returns the trimmed identity and canonical purpose.
func (s *ChallengeService) parseKey(identity, purposeName string) (string, domain.Purpose, error) {
	in := challengeKeyInput{Identity: strings.TrimSpace(identity), Purpose: purposeName}
	if err := s.validate(in); err != nil {
		return "", "", err
	}
	p, err := domain.ParsePurpose(purposeName)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return in.Identity, p, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

func (s *ChallengeService) emit(ctx context.Context, t telemetry.EventType, fill func(e *telemetry.Event)) {
	if s.emitter == nil {
		return
	}
	ev := telemetry.NewEvent(t, s.clock.Now())
	fill(ev)
	telemetry.EmitAsync(s.emitter, ctx, ev)
}
