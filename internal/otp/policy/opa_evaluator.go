package policy

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.otp.issuance"

// DefaultRegoPolicy allows every request. Custom policies must use package otp.issuance and may
// define allow (bool) and reason (string).
const DefaultRegoPolicy = `package otp.issuance

default allow := true

default reason := ""
`

// OPAEvaluator evaluates issuance policies with OPA Rego. The query is prepared once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles modules (Rego source). With no modules the default policy is used.
func NewOPAEvaluator(ctx context.Context, modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{DefaultRegoPolicy}
	}
	opts := []func(*rego.Rego){rego.Query(policyQuery)}
	for i, m := range modules {
		opts = append(opts, rego.Module(fmt.Sprintf("issuance_%d.rego", i), m))
	}
	q, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile issuance policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// LoadOPAEvaluator compiles the Rego file at path, or the default policy when path is empty.
func LoadOPAEvaluator(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issuance policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(src))
}

func buildInput(in Input) map[string]interface{} {
	now := in.Now.UTC()
	return map[string]interface{}{
		"identity":        in.Identity,
		"purpose":         in.Purpose,
		"recent_requests": in.RecentRequests,
		"max_requests":    in.MaxRequests,
		"now":             now.Format(time.RFC3339),
		"hour_utc":        now.Hour(),
	}
}

// Evaluate runs the policy. A policy that leaves allow undefined allows the request.
func (e *OPAEvaluator) Evaluate(ctx context.Context, in Input) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return Decision{}, fmt.Errorf("eval issuance policy: %w", err)
	}
	out := Decision{Allow: true}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return out, nil
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return out, nil
	}
	if v, ok := doc["allow"].(bool); ok {
		out.Allow = v
	}
	if v, ok := doc["reason"].(string); ok {
		out.Reason = v
	}
	return out, nil
}

// HealthCheck verifies the prepared policy evaluates against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Evaluate(ctx, Input{Identity: "+10000000", Purpose: "login", MaxRequests: 1, Now: time.Now()})
	return err
}
