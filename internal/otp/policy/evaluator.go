// Package policy decides whether a challenge may be issued, beyond the built-in request limit.
package policy

import (
	"context"
	"time"
)

// Input is what an issuance policy sees.
type Input struct {
	Identity       string
	Purpose        string
	RecentRequests int
	MaxRequests    int
	Now            time.Time
}

// Decision is the outcome of an issuance policy.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator evaluates an issuance policy.
type Evaluator interface {
	Evaluate(ctx context.Context, in Input) (Decision, error)
}

// AllowAll is an Evaluator that allows every request.
type AllowAll struct{}

// Evaluate always allows.
func (AllowAll) Evaluate(context.Context, Input) (Decision, error) {
	return Decision{Allow: true}, nil
}
