package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const blockPrefixPolicy = `package otp.issuance

default allow := true

allow := false if {
	startswith(input.identity, "+99")
}

allow := false if {
	input.purpose == "registration"
	input.hour_utc < 6
}

reason := "blocked destination" if {
	startswith(input.identity, "+99")
}

reason := "registration closed overnight" if {
	not startswith(input.identity, "+99")
	input.purpose == "registration"
	input.hour_utc < 6
}
`

func TestOPAEvaluator_DefaultPolicyAllows(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background())
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	d, err := e.Evaluate(context.Background(), Input{Identity: "+15550000", Purpose: "login", Now: time.Now()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allow || d.Reason != "" {
		t.Errorf("Decision = %+v, want allow", d)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), blockPrefixPolicy)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	noon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	night := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)

	testCases := []struct {
		name       string
		in         Input
		wantAllow  bool
		wantReason string
	}{
		{"allowed", Input{Identity: "+15550000", Purpose: "login", Now: noon}, true, ""},
		{"blocked prefix", Input{Identity: "+99123456", Purpose: "login", Now: noon}, false, "blocked destination"},
		{"registration at night", Input{Identity: "+15550000", Purpose: "registration", Now: night}, false, "registration closed overnight"},
		{"login at night", Input{Identity: "+15550000", Purpose: "login", Now: night}, true, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := e.Evaluate(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Allow != tc.wantAllow || d.Reason != tc.wantReason {
				t.Errorf("Decision = %+v, want allow=%v reason=%q", d, tc.wantAllow, tc.wantReason)
			}
		})
	}
}

func TestOPAEvaluator_PolicyWithoutAllowAllows(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), "package otp.issuance\n\nnote := \"empty\"\n")
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	d, err := e.Evaluate(context.Background(), Input{Identity: "+15550000", Purpose: "login", Now: time.Now()})
	if err != nil || !d.Allow {
		t.Errorf("Evaluate = %+v, %v; want allow", d, err)
	}
}

func TestNewOPAEvaluator_InvalidRego(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package otp.issuance\n\nallow := if {"); err == nil {
		t.Fatal("invalid Rego should fail to compile")
	}
}

func TestLoadOPAEvaluator(t *testing.T) {
	if _, err := LoadOPAEvaluator(context.Background(), ""); err != nil {
		t.Fatalf("LoadOPAEvaluator(\"\"): %v", err)
	}
	if _, err := LoadOPAEvaluator(context.Background(), filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("missing file should fail")
	}
	path := filepath.Join(t.TempDir(), "issuance.rego")
	if err := os.WriteFile(path, []byte(blockPrefixPolicy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	e, err := LoadOPAEvaluator(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadOPAEvaluator: %v", err)
	}
	d, _ := e.Evaluate(context.Background(), Input{Identity: "+99000000", Purpose: "login", Now: time.Now()})
	if d.Allow {
		t.Error("file policy should deny +99 prefix")
	}
}

func TestAllowAll(t *testing.T) {
	d, err := AllowAll{}.Evaluate(context.Background(), Input{})
	if err != nil || !d.Allow {
		t.Errorf("AllowAll = %+v, %v", d, err)
	}
}
