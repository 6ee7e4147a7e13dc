package otpv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"otp-gateway/api/codec"
)

const (
	OTPService_RequestChallenge_FullMethodName = "/otp.v1.OTPService/RequestChallenge"
	OTPService_VerifyChallenge_FullMethodName  = "/otp.v1.OTPService/VerifyChallenge"
	OTPService_Invalidate_FullMethodName       = "/otp.v1.OTPService/Invalidate"
	OTPService_Cleanup_FullMethodName          = "/otp.v1.OTPService/Cleanup"
)

// OTPServiceClient is the client API for OTPService.
type OTPServiceClient interface {
	RequestChallenge(ctx context.Context, in *RequestChallengeRequest, opts ...grpc.CallOption) (*RequestChallengeResponse, error)
	VerifyChallenge(ctx context.Context, in *VerifyChallengeRequest, opts ...grpc.CallOption) (*VerifyChallengeResponse, error)
	Invalidate(ctx context.Context, in *InvalidateRequest, opts ...grpc.CallOption) (*InvalidateResponse, error)
	Cleanup(ctx context.Context, in *CleanupRequest, opts ...grpc.CallOption) (*CleanupResponse, error)
}

type otpServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOTPServiceClient returns a client that always calls with the JSON codec.
func NewOTPServiceClient(cc grpc.ClientConnInterface) OTPServiceClient {
	return &otpServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
}

func (c *otpServiceClient) RequestChallenge(ctx context.Context, in *RequestChallengeRequest, opts ...grpc.CallOption) (*RequestChallengeResponse, error) {
	out := new(RequestChallengeResponse)
	if err := c.cc.Invoke(ctx, OTPService_RequestChallenge_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *otpServiceClient) VerifyChallenge(ctx context.Context, in *VerifyChallengeRequest, opts ...grpc.CallOption) (*VerifyChallengeResponse, error) {
	out := new(VerifyChallengeResponse)
	if err := c.cc.Invoke(ctx, OTPService_VerifyChallenge_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *otpServiceClient) Invalidate(ctx context.Context, in *InvalidateRequest, opts ...grpc.CallOption) (*InvalidateResponse, error) {
	out := new(InvalidateResponse)
	if err := c.cc.Invoke(ctx, OTPService_Invalidate_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *otpServiceClient) Cleanup(ctx context.Context, in *CleanupRequest, opts ...grpc.CallOption) (*CleanupResponse, error) {
	out := new(CleanupResponse)
	if err := c.cc.Invoke(ctx, OTPService_Cleanup_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// OTPServiceServer is the server API for OTPService.
type OTPServiceServer interface {
	RequestChallenge(context.Context, *RequestChallengeRequest) (*RequestChallengeResponse, error)
	VerifyChallenge(context.Context, *VerifyChallengeRequest) (*VerifyChallengeResponse, error)
	Invalidate(context.Context, *InvalidateRequest) (*InvalidateResponse, error)
	Cleanup(context.Context, *CleanupRequest) (*CleanupResponse, error)
}

// UnimplementedOTPServiceServer returns Unimplemented for every method.
type UnimplementedOTPServiceServer struct{}

func (UnimplementedOTPServiceServer) RequestChallenge(context.Context, *RequestChallengeRequest) (*RequestChallengeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestChallenge not implemented")
}

func (UnimplementedOTPServiceServer) VerifyChallenge(context.Context, *VerifyChallengeRequest) (*VerifyChallengeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyChallenge not implemented")
}

func (UnimplementedOTPServiceServer) Invalidate(context.Context, *InvalidateRequest) (*InvalidateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Invalidate not implemented")
}

func (UnimplementedOTPServiceServer) Cleanup(context.Context, *CleanupRequest) (*CleanupResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Cleanup not implemented")
}

// RegisterOTPServiceServer registers srv on s.
func RegisterOTPServiceServer(s grpc.ServiceRegistrar, srv OTPServiceServer) {
	s.RegisterService(&OTPService_ServiceDesc, srv)
}

func _OTPService_RequestChallenge_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RequestChallengeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OTPServiceServer).RequestChallenge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OTPService_RequestChallenge_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OTPServiceServer).RequestChallenge(ctx, req.(*RequestChallengeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OTPService_VerifyChallenge_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(VerifyChallengeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OTPServiceServer).VerifyChallenge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OTPService_VerifyChallenge_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OTPServiceServer).VerifyChallenge(ctx, req.(*VerifyChallengeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OTPService_Invalidate_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(InvalidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OTPServiceServer).Invalidate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OTPService_Invalidate_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OTPServiceServer).Invalidate(ctx, req.(*InvalidateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OTPService_Cleanup_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CleanupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OTPServiceServer).Cleanup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OTPService_Cleanup_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OTPServiceServer).Cleanup(ctx, req.(*CleanupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OTPService_ServiceDesc is the grpc.ServiceDesc for OTPService.
var OTPService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "otp.v1.OTPService",
	HandlerType: (*OTPServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RequestChallenge", Handler: _OTPService_RequestChallenge_Handler},
		{MethodName: "VerifyChallenge", Handler: _OTPService_VerifyChallenge_Handler},
		{MethodName: "Invalidate", Handler: _OTPService_Invalidate_Handler},
		{MethodName: "Cleanup", Handler: _OTPService_Cleanup_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "otp/v1/otp.proto",
}
