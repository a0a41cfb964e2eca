package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"medhub/observability"
)

// StatsWorker folds process health metrics (CPU, RSS) and the hub
// counters into the stats snapshot served by the debug endpoint.
type StatsWorker struct {
	log      *slog.Logger
	stats    *observability.StatsManager
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, stats *observability.StatsManager, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, stats: stats, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cpu, rss, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.stats.Collect(cpu, rss)
		}
	}
}

// selfStats retrieves CPU and memory usage for the current process.
func selfStats(p *process.Process) (float64, uint64, error) {
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	return cpuPercent, memInfo.RSS, nil
}
