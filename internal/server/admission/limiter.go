// Package admission decides which uploads the relay accepts: a per-origin
// rate limit on transfer creation and a gate on the first bytes of the
// body.
package admission

import (
	"context"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per origin in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, origin string) (Decision, error)
}

// Unlimited admits everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, Remaining: -1}, nil
}
