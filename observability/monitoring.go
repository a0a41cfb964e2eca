package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// HubStats aggregates hub metrics for the debug endpoint.
type HubStats struct {
	ActiveSessions  int64   `json:"active_sessions"`
	EventsPublished uint64  `json:"events_published"`
	EventsDelivered uint64  `json:"events_delivered"`
	EventsDropped   uint64  `json:"events_dropped"`
	LocksExpired    uint64  `json:"locks_expired"`
	AllocMemMb      uint64  `json:"alloc_mem_mb"`
	NumGC           uint32  `json:"num_gc"`
	CPUPercent      float64 `json:"cpu_percent"`
	RSSBytes        uint64  `json:"rss_bytes"`
	CollectedAt     string  `json:"collected_at"`
}

// StatsManager tracks realtime counters. Counters are atomic so the
// fanout worker and connection handlers can bump them without sharing
// the snapshot lock.
type StatsManager struct {
	mu          sync.RWMutex
	latestStats HubStats

	activeSessions  int64
	eventsPublished uint64
	eventsDelivered uint64
	eventsDropped   uint64
	locksExpired    uint64
}

func NewStatsManager() *StatsManager {
	return &StatsManager{}
}

func (m *StatsManager) SessionConnected()    { atomic.AddInt64(&m.activeSessions, 1) }
func (m *StatsManager) SessionDisconnected() { atomic.AddInt64(&m.activeSessions, -1) }
func (m *StatsManager) EventPublished()      { atomic.AddUint64(&m.eventsPublished, 1) }
func (m *StatsManager) EventDelivered()      { atomic.AddUint64(&m.eventsDelivered, 1) }
func (m *StatsManager) EventDropped()        { atomic.AddUint64(&m.eventsDropped, 1) }
func (m *StatsManager) LocksExpired(n int)   { atomic.AddUint64(&m.locksExpired, uint64(n)) }

// Collect folds the counters and process metrics into the latest
// snapshot. Called periodically by the stats worker; cpu and rss come
// from the worker's gopsutil probe.
func (m *StatsManager) Collect(cpuPercent float64, rssBytes uint64) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestStats = HubStats{
		ActiveSessions:  atomic.LoadInt64(&m.activeSessions),
		EventsPublished: atomic.LoadUint64(&m.eventsPublished),
		EventsDelivered: atomic.LoadUint64(&m.eventsDelivered),
		EventsDropped:   atomic.LoadUint64(&m.eventsDropped),
		LocksExpired:    atomic.LoadUint64(&m.locksExpired),
		AllocMemMb:      mem.Alloc / 1024 / 1024,
		NumGC:           mem.NumGC,
		CPUPercent:      cpuPercent,
		RSSBytes:        rssBytes,
		CollectedAt:     time.Now().UTC().Format(time.RFC3339),
	}
}

// GetLatest returns the last collected snapshot.
func (m *StatsManager) GetLatest() HubStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestStats
}
