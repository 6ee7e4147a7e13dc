// Package handler implements the gRPC OTPService over the challenge service.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	otpv1 "otp-gateway/api/otp/v1"
	"otp-gateway/internal/otp/service"
	"otp-gateway/internal/platform/validator"
)

// Messages returned to callers. Verification failures never say whether a challenge existed.
const (
	msgInvalidOrExpired = "invalid or expired code"
	msgTooManyAttempts  = "too many attempts"
	msgRateLimited      = "too many OTP requests, try again later"
	msgDenied           = "OTP issuance denied"
	msgInternal         = "internal error"
)

// ChallengeService is the subset of *service.ChallengeService the handler calls.
type ChallengeService interface {
	RequestChallenge(ctx context.Context, identity, purpose string) (*service.Ticket, error)
	VerifyChallenge(ctx context.Context, identity, purpose, code string) (bool, error)
	Invalidate(ctx context.Context, identity, purpose string) (int64, error)
	Cleanup(ctx context.Context) (service.CleanupResult, error)
}

// Server implements OTPService. Proto: otp/v1/otp.proto → internal/otp/handler.
type Server struct {
	otpv1.UnimplementedOTPServiceServer
	svc ChallengeService
}

// NewServer returns an OTPService server. Pass nil svc for stub (Unimplemented).
func NewServer(svc ChallengeService) *Server {
	return &Server{svc: svc}
}

// RequestChallenge issues a code and returns the ticket.
func (s *Server) RequestChallenge(ctx context.Context, req *otpv1.RequestChallengeRequest) (*otpv1.RequestChallengeResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method RequestChallenge not implemented")
	}
	ticket, err := s.svc.RequestChallenge(ctx, req.GetIdentity(), req.GetPurpose())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &otpv1.RequestChallengeResponse{
		ChallengeId: ticket.ChallengeID,
		Destination: ticket.Destination,
		ExpiresAt:   ticket.ExpiresAt,
		Delivered:   ticket.Delivered,
	}, nil
}

// VerifyChallenge checks a code. A wrong code and a missing or expired challenge both return
// verified=false with the same message.
func (s *Server) VerifyChallenge(ctx context.Context, req *otpv1.VerifyChallengeRequest) (*otpv1.VerifyChallengeResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method VerifyChallenge not implemented")
	}
	ok, err := s.svc.VerifyChallenge(ctx, req.GetIdentity(), req.GetPurpose(), req.GetCode())
	switch {
	case err == nil:
		return &otpv1.VerifyChallengeResponse{Verified: ok}, nil
	case errors.Is(err, service.ErrNotFoundOrExpired), errors.Is(err, service.ErrInvalidCode):
		return &otpv1.VerifyChallengeResponse{Verified: false, Message: msgInvalidOrExpired}, nil
	default:
		return nil, toStatus(ctx, err)
	}
}

// Invalidate supersedes every live challenge for the key.
func (s *Server) Invalidate(ctx context.Context, req *otpv1.InvalidateRequest) (*otpv1.InvalidateResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method Invalidate not implemented")
	}
	n, err := s.svc.Invalidate(ctx, req.GetIdentity(), req.GetPurpose())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &otpv1.InvalidateResponse{Invalidated: n}, nil
}

// Cleanup runs one expiry sweep.
func (s *Server) Cleanup(ctx context.Context, req *otpv1.CleanupRequest) (*otpv1.CleanupResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method Cleanup not implemented")
	}
	res, err := s.svc.Cleanup(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &otpv1.CleanupResponse{Marked: res.Marked, Deleted: res.Deleted}, nil
}

// toStatus maps service errors to gRPC status. Store and unexpected errors are logged and
// returned as an opaque Internal.
func toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, context.Canceled.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, context.DeadlineExceeded.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		var verr validator.ValidationError
		if errors.As(err, &verr) {
			return status.Error(codes.InvalidArgument, verr.Error())
		}
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, msgRateLimited)
	case errors.Is(err, service.ErrAttemptsExhausted):
		return status.Error(codes.ResourceExhausted, msgTooManyAttempts)
	case errors.Is(err, service.ErrIssuanceDenied):
		return status.Error(codes.PermissionDenied, msgDenied)
	case errors.Is(err, service.ErrNotFoundOrExpired), errors.Is(err, service.ErrInvalidCode):
		return status.Error(codes.InvalidArgument, msgInvalidOrExpired)
	default:
		slog.ErrorContext(ctx, "otp handler: internal error", "error", err)
		return status.Error(codes.Internal, msgInternal)
	}
}
