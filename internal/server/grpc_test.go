package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	devv1 "otp-gateway/api/dev/v1"
	otpv1 "otp-gateway/api/otp/v1"
	"otp-gateway/internal/devotp"
	"otp-gateway/internal/otp/repository"
	"otp-gateway/internal/otp/service"
	"otp-gateway/internal/platform/clock"
	"otp-gateway/internal/server/interceptors"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices_DevServiceNotRegisteredWhenNil(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, Deps{})

	want := []string{"otp.v1.OTPService", "grpc.health.v1.Health"}
	if len(reg.services) != len(want) {
		t.Fatalf("registered %v, want %v", reg.services, want)
	}
	for i, name := range want {
		if reg.services[i] != name {
			t.Errorf("service[%d] = %q, want %q", i, reg.services[i], name)
		}
	}
}

func TestRegisterServices_DevServiceRegisteredWhenProvided(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, Deps{DevOTPStore: devotp.NewMemoryStore()})

	if len(reg.services) != 3 || reg.services[2] != "dev.v1.DevService" {
		t.Errorf("registered %v, want DevService last", reg.services)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func startServer(t *testing.T, deps Deps) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := NewGRPCServer(Options{})
	RegisterServices(s, deps)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServer_EndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	repo := repository.NewMemoryRepository()
	dev := devotp.NewMemoryStoreWithClock(clk)
	svc, err := service.NewChallengeService(repo, service.Config{Clock: clk, DevSink: dev})
	if err != nil {
		t.Fatalf("NewChallengeService: %v", err)
	}
	conn := startServer(t, Deps{OTP: svc, DevOTPStore: dev, HealthPinger: repo})
	ctx := context.Background()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil || health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health = %v, %v", health, err)
	}

	otpClient := otpv1.NewOTPServiceClient(conn)
	var header metadata.MD
	reqCtx := metadata.AppendToOutgoingContext(ctx, interceptors.RequestIDHeader, "req-42")
	ticket, err := otpClient.RequestChallenge(reqCtx, &otpv1.RequestChallengeRequest{Identity: "+15550000", Purpose: "login"}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("RequestChallenge: %v", err)
	}
	if got := header.Get(interceptors.RequestIDHeader); len(got) != 1 || got[0] != "req-42" {
		t.Errorf("response request id = %v, want req-42", got)
	}

	code, err := devv1.NewDevServiceClient(conn).GetOTP(ctx, &devv1.GetOTPRequest{ChallengeId: ticket.ChallengeId})
	if err != nil {
		t.Fatalf("GetOTP: %v", err)
	}
	resp, err := otpClient.VerifyChallenge(ctx, &otpv1.VerifyChallengeRequest{Identity: "+15550000", Purpose: "login", Code: code.Otp})
	if err != nil || !resp.Verified {
		t.Errorf("VerifyChallenge = %+v, %v", resp, err)
	}
}

func TestServer_HealthNotServingWhenStoreDown(t *testing.T) {
	conn := startServer(t, Deps{HealthPinger: downPinger{}})
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.GetStatus())
	}
}

func TestServer_NilOTPServiceIsUnimplemented(t *testing.T) {
	conn := startServer(t, Deps{})
	_, err := otpv1.NewOTPServiceClient(conn).Cleanup(context.Background(), &otpv1.CleanupRequest{})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("Cleanup = %v, want Unimplemented", err)
	}
	_, err = devv1.NewDevServiceClient(conn).GetOTP(context.Background(), &devv1.GetOTPRequest{ChallengeId: "x"})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("GetOTP without dev store = %v, want Unimplemented", err)
	}
}
