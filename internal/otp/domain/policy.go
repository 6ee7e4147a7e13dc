package domain

import (
	"errors"
	"time"
)

// Default policy values.
const (
	DefaultTTL                     = 5 * time.Minute
	DefaultMaxRequestsPerWindow    = 5
	DefaultRequestWindow           = time.Hour
	DefaultMaxVerificationAttempts = 3
	MaxIdentityLength              = 20
	CodeLength                     = 6
)

// Policy holds the issuance and verification limits applied by the challenge service.
type Policy struct {
	// TTL is how long an issued challenge stays verifiable.
	TTL time.Duration
	// MaxRequestsPerWindow caps issued challenges per (identity, purpose) within RequestWindow.
	MaxRequestsPerWindow int
	// RequestWindow is the sliding lookback for the request limit.
	RequestWindow time.Duration
	// MaxVerificationAttempts is the guess budget per challenge.
	MaxVerificationAttempts int
}

// DefaultPolicy returns the standard 5m / 5 per hour / 3 attempts policy.
func DefaultPolicy() Policy {
	return Policy{
		TTL:                     DefaultTTL,
		MaxRequestsPerWindow:    DefaultMaxRequestsPerWindow,
		RequestWindow:           DefaultRequestWindow,
		MaxVerificationAttempts: DefaultMaxVerificationAttempts,
	}
}

// Validate rejects non-positive limits.
func (p Policy) Validate() error {
	if p.TTL <= 0 {
		return errors.New("policy: TTL must be positive")
	}
	if p.MaxRequestsPerWindow <= 0 {
		return errors.New("policy: MaxRequestsPerWindow must be positive")
	}
	if p.RequestWindow <= 0 {
		return errors.New("policy: RequestWindow must be positive")
	}
	if p.MaxVerificationAttempts <= 0 {
		return errors.New("policy: MaxVerificationAttempts must be positive")
	}
	return nil
}
