package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParsePurpose(t *testing.T) {
	testCases := []struct {
		in      string
		want    Purpose
		wantErr bool
	}{
		{"login", PurposeLogin, false},
		{"Login", PurposeLogin, false},
		{"LOGIN", PurposeLogin, false},
		{" registration ", PurposeRegistration, false},
		{"Registration", PurposeRegistration, false},
		{"", "", true},
		{"password_reset", "", true},
		{"log in", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePurpose(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownPurpose) {
					t.Fatalf("ParsePurpose(%q) err = %v, want ErrUnknownPurpose", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePurpose(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParsePurpose(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestChallenge_State(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		c    Challenge
		want State
	}{
		{"active", Challenge{ExpiresAt: now.Add(time.Minute)}, StateActive},
		{"expired at boundary", Challenge{ExpiresAt: now}, StateExpired},
		{"expired", Challenge{ExpiresAt: now.Add(-time.Second)}, StateExpired},
		{"attempts reached", Challenge{ExpiresAt: now.Add(time.Minute), AttemptsCount: 3}, StateExhausted},
		{"verified", Challenge{ExpiresAt: now.Add(time.Minute), IsUsed: true, UsedReason: UsedReasonVerified}, StateVerified},
		{"superseded", Challenge{ExpiresAt: now.Add(time.Minute), IsUsed: true, UsedReason: UsedReasonSuperseded}, StateSuperseded},
		{"exhausted", Challenge{ExpiresAt: now.Add(time.Minute), IsUsed: true, UsedReason: UsedReasonExhausted}, StateExhausted},
		{"swept", Challenge{ExpiresAt: now.Add(-time.Hour), IsUsed: true, UsedReason: UsedReasonExpired}, StateExpired},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.State(now, 3); got != tc.want {
				t.Errorf("State = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestChallenge_MarkUsedIsTerminal(t *testing.T) {
	now := time.Now().UTC()
	c := &Challenge{ExpiresAt: now.Add(time.Minute)}
	c.MarkUsed(UsedReasonVerified, now)
	c.MarkUsed(UsedReasonSuperseded, now.Add(time.Second))
	if !c.IsUsed {
		t.Fatal("IsUsed should be true")
	}
	if c.UsedReason != UsedReasonVerified {
		t.Errorf("UsedReason = %q, want %q", c.UsedReason, UsedReasonVerified)
	}
	if !c.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", c.UpdatedAt, now)
	}
	if !c.State(now, 3).Terminal() {
		t.Error("verified state should be terminal")
	}
}

func TestChallenge_CloneIsIndependent(t *testing.T) {
	c := &Challenge{ID: "c1", AttemptsCount: 1}
	cp := c.Clone()
	cp.AttemptsCount = 2
	if c.AttemptsCount != 1 {
		t.Errorf("original AttemptsCount = %d, want 1", c.AttemptsCount)
	}
	var nilC *Challenge
	if nilC.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("DefaultPolicy().Validate: %v", err)
	}
	bad := []Policy{
		{TTL: 0, MaxRequestsPerWindow: 5, RequestWindow: time.Hour, MaxVerificationAttempts: 3},
		{TTL: time.Minute, MaxRequestsPerWindow: 0, RequestWindow: time.Hour, MaxVerificationAttempts: 3},
		{TTL: time.Minute, MaxRequestsPerWindow: 5, RequestWindow: 0, MaxVerificationAttempts: 3},
		{TTL: time.Minute, MaxRequestsPerWindow: 5, RequestWindow: time.Hour, MaxVerificationAttempts: 0},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: Validate should fail for %+v", i, p)
		}
	}
}
