// Package handler implements the dev-only gRPC DevService (GetOTP).
package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	devv1 "otp-gateway/api/dev/v1"
	"otp-gateway/internal/devotp"
)

const devOTPNote = "DEV MODE ONLY"

// Server implements DevService. Only registered when OTP_RETURN_TO_CLIENT is set outside production.
type Server struct {
	devv1.UnimplementedDevServiceServer
	store devotp.Store
}

// NewServer returns a DevService server that reads codes from the given store.
func NewServer(store devotp.Store) *Server {
	return &Server{store: store}
}

// GetOTP returns the plain code for challenge_id from the dev store. Returns NotFound if missing or expired.
func (s *Server) GetOTP(ctx context.Context, req *devv1.GetOTPRequest) (*devv1.GetOTPResponse, error) {
	challengeID := strings.TrimSpace(req.GetChallengeId())
	if challengeID == "" {
		return nil, status.Error(codes.InvalidArgument, "challenge_id is required")
	}
	if s.store == nil {
		return nil, status.Error(codes.NotFound, "OTP not found or expired")
	}
	code, ok := s.store.Get(ctx, challengeID)
	if !ok {
		return nil, status.Error(codes.NotFound, "OTP not found or expired")
	}
	return &devv1.GetOTPResponse{
		Otp:  code,
		Note: devOTPNote,
	}, nil
}
