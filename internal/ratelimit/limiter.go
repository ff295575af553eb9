// Package ratelimit guards the control-connection and login surfaces of
// CRS/SNS against abusive clients, using an in-memory token bucket per key.
// Redis-backed limiting is deliberately not offered here: this module does
// not scale out across processes (see spec Non-goals), so there is nothing
// for a shared store to coordinate.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/metrics"
)

// Limiter enforces a single named rate over an in-memory store.
type Limiter struct {
	name string
	inst *limiter.Limiter
}

// New builds a Limiter from a formatted rate string, e.g. "20-M" for 20 per
// minute, matching ulule/limiter's own format.
func New(name, formatted string) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid rate %q for %s: %w", formatted, name, err)
	}
	return &Limiter{
		name: name,
		inst: limiter.New(memory.NewStore(), rate),
	}, nil
}

// Allow reports whether key is still under the limit, incrementing its
// counter as a side effect. Store failures fail open: the limiter is a
// defensive measure here, not a correctness boundary.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	result, err := l.inst.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "rate limiter store error, failing open", zap.String("limiter", l.name), zap.Error(err))
		return true
	}
	metrics.RateLimitChecks.WithLabelValues(l.name).Inc()
	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(l.name).Inc()
		return false
	}
	return true
}
