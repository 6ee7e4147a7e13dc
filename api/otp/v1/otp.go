// Package otpv1 defines the otp.v1.OTPService messages and gRPC bindings. Messages travel
// with the JSON codec registered by package codec.
package otpv1

import "time"

// RequestChallengeRequest asks for a new code for (identity, purpose).
type RequestChallengeRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
}

func (x *RequestChallengeRequest) GetIdentity() string {
	if x == nil {
		return ""
	}
	return x.Identity
}

func (x *RequestChallengeRequest) GetPurpose() string {
	if x == nil {
		return ""
	}
	return x.Purpose
}

// RequestChallengeResponse carries the issued ticket. The code itself is never returned.
type RequestChallengeResponse struct {
	ChallengeId string    `json:"challenge_id"`
	Destination string    `json:"destination"`
	ExpiresAt   time.Time `json:"expires_at"`
	Delivered   bool      `json:"delivered"`
}

func (x *RequestChallengeResponse) GetChallengeId() string {
	if x == nil {
		return ""
	}
	return x.ChallengeId
}

// VerifyChallengeRequest submits a code for (identity, purpose).
type VerifyChallengeRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
	Code     string `json:"code"`
}

func (x *VerifyChallengeRequest) GetIdentity() string {
	if x == nil {
		return ""
	}
	return x.Identity
}

func (x *VerifyChallengeRequest) GetPurpose() string {
	if x == nil {
		return ""
	}
	return x.Purpose
}

func (x *VerifyChallengeRequest) GetCode() string {
	if x == nil {
		return ""
	}
	return x.Code
}

// VerifyChallengeResponse reports the outcome. Message is set when Verified is false.
type VerifyChallengeResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message,omitempty"`
}

func (x *VerifyChallengeResponse) GetVerified() bool {
	if x == nil {
		return false
	}
	return x.Verified
}

// InvalidateRequest supersedes every live challenge for (identity, purpose).
type InvalidateRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
}

func (x *InvalidateRequest) GetIdentity() string {
	if x == nil {
		return ""
	}
	return x.Identity
}

func (x *InvalidateRequest) GetPurpose() string {
	if x == nil {
		return ""
	}
	return x.Purpose
}

// InvalidateResponse reports how many challenges were superseded.
type InvalidateResponse struct {
	Invalidated int64 `json:"invalidated"`
}

// CleanupRequest triggers one expiry sweep.
type CleanupRequest struct{}

// CleanupResponse reports how many challenges were marked expired and how many were deleted.
type CleanupResponse struct {
	Marked  int64 `json:"marked"`
	Deleted int64 `json:"deleted"`
}
