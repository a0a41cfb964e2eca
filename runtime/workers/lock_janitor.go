package workers

import (
	"context"
	"log/slog"
	"time"

	"medhub/observability"
)

// LockSweeper is implemented by the hub: expire stale locks and
// broadcast their release.
type LockSweeper interface {
	SweepLocks(now time.Time) int
}

// LockJanitor periodically expires edit locks whose holder went quiet
// without disconnecting (a frozen tab keeps its connection but stops
// touching the lock). With TTL disabled the sweep finds nothing and
// the worker is inert.
type LockJanitor struct {
	log      *slog.Logger
	sweeper  LockSweeper
	stats    *observability.StatsManager
	interval time.Duration
}

func NewLockJanitor(log *slog.Logger, sweeper LockSweeper,
	stats *observability.StatsManager, interval time.Duration) *LockJanitor {
	return &LockJanitor{log: log, sweeper: sweeper, stats: stats, interval: interval}
}

func (w *LockJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping lock janitor")
			return nil
		case now := <-ticker.C:
			if expired := w.sweeper.SweepLocks(now.UTC()); expired > 0 {
				w.stats.LocksExpired(expired)
				w.log.Info("expired stale edit locks", "count", expired)
			}
		}
	}
}
