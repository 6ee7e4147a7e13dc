package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	otpv1 "otp-gateway/api/otp/v1"
	"otp-gateway/internal/otp/repository"
	"otp-gateway/internal/otp/service"
	"otp-gateway/internal/platform/clock"
	"otp-gateway/internal/platform/validator"
)

// fakeService returns canned results.
type fakeService struct {
	ticket  *service.Ticket
	ok      bool
	n       int64
	cleanup service.CleanupResult
	err     error
}

func (f *fakeService) RequestChallenge(ctx context.Context, identity, purpose string) (*service.Ticket, error) {
	return f.ticket, f.err
}

func (f *fakeService) VerifyChallenge(ctx context.Context, identity, purpose, code string) (bool, error) {
	return f.ok, f.err
}

func (f *fakeService) Invalidate(ctx context.Context, identity, purpose string) (int64, error) {
	return f.n, f.err
}

func (f *fakeService) Cleanup(ctx context.Context) (service.CleanupResult, error) {
	return f.cleanup, f.err
}

func TestNilService(t *testing.T) {
	srv := NewServer(nil)
	ctx := context.Background()
	calls := map[string]func() error{
		"RequestChallenge": func() error {
			_, err := srv.RequestChallenge(ctx, &otpv1.RequestChallengeRequest{})
			return err
		},
		"VerifyChallenge": func() error {
			_, err := srv.VerifyChallenge(ctx, &otpv1.VerifyChallengeRequest{})
			return err
		},
		"Invalidate": func() error {
			_, err := srv.Invalidate(ctx, &otpv1.InvalidateRequest{})
			return err
		},
		"Cleanup": func() error {
			_, err := srv.Cleanup(ctx, &otpv1.CleanupRequest{})
			return err
		},
	}
	for name, call := range calls {
		if code := status.Code(call()); code != codes.Unimplemented {
			t.Errorf("%s code = %v, want Unimplemented", name, code)
		}
	}
}

func TestRequestChallenge_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode codes.Code
		wantMsg  string
	}{
		{"validation", fmt.Errorf("%w: %w", service.ErrInvalidArgument, validator.ValidationError{"purpose": "purpose must be login or registration"}),
			codes.InvalidArgument, `{"purpose":"purpose must be login or registration"}`},
		{"rate limited", service.ErrRateLimited, codes.ResourceExhausted, msgRateLimited},
		{"denied", fmt.Errorf("%w: blocked", service.ErrIssuanceDenied), codes.PermissionDenied, msgDenied},
		{"store failure", fmt.Errorf("%w: save: %w", service.ErrStoreFailure, errors.New("dial tcp: refused")), codes.Internal, msgInternal},
		{"canceled", context.Canceled, codes.Canceled, context.Canceled.Error()},
		{"deadline", fmt.Errorf("%w: %w", service.ErrStoreFailure, context.DeadlineExceeded), codes.DeadlineExceeded, context.DeadlineExceeded.Error()},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&fakeService{err: tc.err})
			_, err := srv.RequestChallenge(context.Background(), &otpv1.RequestChallengeRequest{Identity: "+15550000", Purpose: "login"})
			st, ok := status.FromError(err)
			if !ok {
				t.Fatalf("error is not a gRPC status: %v", err)
			}
			if st.Code() != tc.wantCode {
				t.Errorf("code = %v, want %v", st.Code(), tc.wantCode)
			}
			if st.Message() != tc.wantMsg {
				t.Errorf("message = %q, want %q", st.Message(), tc.wantMsg)
			}
		})
	}
}

func TestVerifyChallenge_UnifiedFailure(t *testing.T) {
	for _, err := range []error{service.ErrNotFoundOrExpired, service.ErrInvalidCode} {
		srv := NewServer(&fakeService{err: err})
		resp, gotErr := srv.VerifyChallenge(context.Background(), &otpv1.VerifyChallengeRequest{})
		if gotErr != nil {
			t.Fatalf("VerifyChallenge(%v) error = %v", err, gotErr)
		}
		if resp.Verified || resp.Message != msgInvalidOrExpired {
			t.Errorf("VerifyChallenge(%v) = %+v", err, resp)
		}
	}

	srv := NewServer(&fakeService{err: service.ErrAttemptsExhausted})
	_, err := srv.VerifyChallenge(context.Background(), &otpv1.VerifyChallengeRequest{})
	st, _ := status.FromError(err)
	if st.Code() != codes.ResourceExhausted || st.Message() != msgTooManyAttempts {
		t.Errorf("exhausted = %v %q", st.Code(), st.Message())
	}
}

func TestInvalidateAndCleanup(t *testing.T) {
	srv := NewServer(&fakeService{n: 2, cleanup: service.CleanupResult{Marked: 3, Deleted: 4}})
	inv, err := srv.Invalidate(context.Background(), &otpv1.InvalidateRequest{Identity: "+15550000", Purpose: "login"})
	if err != nil || inv.Invalidated != 2 {
		t.Errorf("Invalidate = %+v, %v", inv, err)
	}
	cl, err := srv.Cleanup(context.Background(), &otpv1.CleanupRequest{})
	if err != nil || cl.Marked != 3 || cl.Deleted != 4 {
		t.Errorf("Cleanup = %+v, %v", cl, err)
	}
}

type capturingSender struct {
	code string
}

func (c *capturingSender) SendOTP(ctx context.Context, phone, code string) error {
	c.code = code
	return nil
}

func dialOTP(t *testing.T, svc ChallengeService) otpv1.OTPServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	otpv1.RegisterOTPServiceServer(s, NewServer(svc))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return otpv1.NewOTPServiceClient(conn)
}

func TestOTPService_EndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sender := &capturingSender{}
	svc, err := service.NewChallengeService(repository.NewMemoryRepository(), service.Config{
		Clock:  clock.NewFake(now),
		Sender: sender,
	})
	if err != nil {
		t.Fatalf("NewChallengeService: %v", err)
	}
	client := dialOTP(t, svc)
	ctx := context.Background()

	ticket, err := client.RequestChallenge(ctx, &otpv1.RequestChallengeRequest{Identity: "+15550000", Purpose: "login"})
	if err != nil {
		t.Fatalf("RequestChallenge: %v", err)
	}
	if ticket.ChallengeId == "" || ticket.Destination != "+155***00" || !ticket.Delivered {
		t.Errorf("ticket = %+v", ticket)
	}
	if !ticket.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v", ticket.ExpiresAt)
	}

	wrong, err := client.VerifyChallenge(ctx, &otpv1.VerifyChallengeRequest{Identity: "+15550000", Purpose: "login", Code: "000000"})
	if err != nil {
		t.Fatalf("VerifyChallenge wrong: %v", err)
	}
	if wrong.Verified || wrong.Message != msgInvalidOrExpired {
		t.Errorf("wrong code = %+v", wrong)
	}

	ok, err := client.VerifyChallenge(ctx, &otpv1.VerifyChallengeRequest{Identity: "+15550000", Purpose: "login", Code: sender.code})
	if err != nil || !ok.Verified {
		t.Fatalf("VerifyChallenge = %+v, %v", ok, err)
	}

	again, err := client.VerifyChallenge(ctx, &otpv1.VerifyChallengeRequest{Identity: "+15550000", Purpose: "login", Code: sender.code})
	if err != nil || again.Verified || again.Message != wrong.Message {
		t.Errorf("replay = %+v, %v; want the same message as a wrong code", again, err)
	}

	_, err = client.VerifyChallenge(ctx, &otpv1.VerifyChallengeRequest{Identity: "+15550000", Purpose: "login", Code: "12"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("malformed code = %v, want InvalidArgument", err)
	}

	inv, err := client.Invalidate(ctx, &otpv1.InvalidateRequest{Identity: "+15550000", Purpose: "login"})
	if err != nil || inv.Invalidated != 0 {
		t.Errorf("Invalidate = %+v, %v", inv, err)
	}
	if _, err := client.Cleanup(ctx, &otpv1.CleanupRequest{}); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
}
