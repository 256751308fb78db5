// package scheduler runs the periodic maintenance loops.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/devtrackhq/devtrack-service/pkg/logger/sl"
)

const sweepInterval = time.Hour

// SubscriptionExpirer is the slice of the account service the sweep needs.
type SubscriptionExpirer interface {
	ExpireSubscriptions(ctx context.Context) (int64, error)
}

// Scheduler owns the hourly subscription-expiry sweep.
type Scheduler struct {
	accounts SubscriptionExpirer
	log      *slog.Logger
}

func New(accounts SubscriptionExpirer, log *slog.Logger) *Scheduler {
	return &Scheduler{
		accounts: accounts,
		log:      log,
	}
}

// Start blocks until ctx is cancelled, running one sweep immediately and then
// once per interval. Run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	const op = "internal.scheduler.Start"
	log := s.log.With(slog.String("op", op))

	log.Info("scheduler started", slog.Duration("interval", sweepInterval))

	s.sweep(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	const op = "internal.scheduler.sweep"
	log := s.log.With(slog.String("op", op))

	expired, err := s.accounts.ExpireSubscriptions(ctx)
	if err != nil {
		log.Error("subscription sweep failed", sl.Err(err))
		return
	}

	if expired > 0 {
		log.Info("subscription sweep complete", slog.Int64("expired", expired))
	}
}
