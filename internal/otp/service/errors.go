package service

import "errors"

// Sentinel errors for the challenge service; the gRPC handler maps them to status codes.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRateLimited       = errors.New("too many OTP requests, try again later")
	ErrIssuanceDenied    = errors.New("OTP issuance denied by policy")
	ErrNotFoundOrExpired = errors.New("no active challenge or challenge expired")
	ErrAttemptsExhausted = errors.New("too many attempts")
	ErrInvalidCode       = errors.New("invalid code")
	ErrStoreFailure      = errors.New("challenge store failure")
)
