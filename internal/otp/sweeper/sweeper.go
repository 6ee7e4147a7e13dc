// Package sweeper runs challenge cleanup on a fixed interval.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"otp-gateway/internal/otp/service"
)

// DefaultInterval is used when New is given a non-positive interval.
const DefaultInterval = time.Minute

// Cleaner is the subset of *service.ChallengeService used by Sweeper.
type Cleaner interface {
	Cleanup(ctx context.Context) (service.CleanupResult, error)
}

// Sweeper calls Cleanup once at start and then every interval.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	logger   *slog.Logger
}

// New returns a Sweeper. A nil logger means slog.Default().
func New(cleaner Cleaner, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cleaner: cleaner, interval: interval, logger: logger}
}

// Run sweeps until ctx is canceled and returns nil on cancellation.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "sweeper: cleanup failed", "error", err)
		}
		return
	}
	if res.Marked > 0 || res.Deleted > 0 {
		s.logger.DebugContext(ctx, "sweeper: cleanup done", "marked", res.Marked, "deleted", res.Deleted)
	}
}
