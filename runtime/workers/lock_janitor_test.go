package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medhub/observability"
)

type fakeSweeper struct {
	expired int32
}

func (f *fakeSweeper) SweepLocks(now time.Time) int {
	atomic.AddInt32(&f.expired, 1)
	return 1
}

func TestLockJanitor_Sweeps_Periodically(t *testing.T) {
	req := require.New(t)
	sweeper := &fakeSweeper{}
	janitor := NewLockJanitor(slog.Default(), sweeper,
		observability.NewStatsManager(), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req.NoError(janitor.Run(ctx))

	// Then the sweeper fired at least once
	req.GreaterOrEqual(atomic.LoadInt32(&sweeper.expired), int32(1))
}

func TestLockJanitor_Stops_On_Context_Done(t *testing.T) {
	req := require.New(t)
	janitor := NewLockJanitor(slog.Default(), &fakeSweeper{},
		observability.NewStatsManager(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("janitor did not stop on context cancellation")
	}
}
