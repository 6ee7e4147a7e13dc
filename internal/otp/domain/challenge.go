package domain

import (
	"errors"
	"strings"
	"time"
)

// Purpose is the flow a challenge authorizes. Codes are not valid across purposes.
type Purpose string

const (
	PurposeLogin        Purpose = "login"
	PurposeRegistration Purpose = "registration"
)

// ErrUnknownPurpose is returned by ParsePurpose for values outside the recognized set.
var ErrUnknownPurpose = errors.New("unknown purpose")

// ParsePurpose matches s case-insensitively against the recognized purposes.
func ParsePurpose(s string) (Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(PurposeLogin):
		return PurposeLogin, nil
	case string(PurposeRegistration):
		return PurposeRegistration, nil
	default:
		return "", ErrUnknownPurpose
	}
}

// String returns the canonical lower-case purpose name.
func (p Purpose) String() string {
	return string(p)
}

// UsedReason records why a challenge left the Active state.
type UsedReason string

const (
	UsedReasonNone       UsedReason = ""
	UsedReasonVerified   UsedReason = "verified"
	UsedReasonSuperseded UsedReason = "superseded"
	UsedReasonExhausted  UsedReason = "exhausted"
	UsedReasonExpired    UsedReason = "expired"
)

// State is the derived lifecycle state of a challenge at a point in time.
type State string

const (
	StateActive     State = "active"
	StateVerified   State = "verified"
	StateSuperseded State = "superseded"
	StateExhausted  State = "exhausted"
	StateExpired    State = "expired"
)

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s != StateActive
}

// Challenge is a one-time passcode bound to (Identity, Purpose), stored in otp_challenges.
// CodeHash holds the SHA-256 of the code; the plain code is never persisted.
type Challenge struct {
	ID            string
	Identity      string
	Purpose       Purpose
	CodeHash      string
	ExpiresAt     time.Time
	AttemptsCount int
	IsUsed        bool
	UsedReason    UsedReason
	// Version is the optimistic-concurrency token; stores bump it on every update.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Live reports whether the challenge can still be verified at now (unused and unexpired).
func (c *Challenge) Live(now time.Time) bool {
	return !c.IsUsed && !c.Expired(now)
}

// State derives the lifecycle state at now.
func (c *Challenge) State(now time.Time, maxAttempts int) State {
	if c.IsUsed {
		switch c.UsedReason {
		case UsedReasonVerified:
			return StateVerified
		case UsedReasonSuperseded:
			return StateSuperseded
		case UsedReasonExhausted:
			return StateExhausted
		default:
			return StateExpired
		}
	}
	if c.Expired(now) {
		return StateExpired
	}
	if maxAttempts > 0 && c.AttemptsCount >= maxAttempts {
		return StateExhausted
	}
	return StateActive
}

// MarkUsed moves the challenge to a terminal state. A used challenge is never re-marked.
func (c *Challenge) MarkUsed(reason UsedReason, now time.Time) {
	if c.IsUsed {
		return
	}
	c.IsUsed = true
	c.UsedReason = reason
	c.UpdatedAt = now
}

// RecordAttempt increments the verification attempt counter.
func (c *Challenge) RecordAttempt(now time.Time) {
	c.AttemptsCount++
	c.UpdatedAt = now
}

// Clone returns a copy safe to mutate independently.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
