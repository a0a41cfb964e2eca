package internal

import "time"

// Config holds every runtime knob, loaded from the environment.
// LockTTL of zero keeps locks alive until release or disconnect.
type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	DatabaseDSN          string        `env:"DATABASE_DSN,default=file:medhub.db?cache=shared"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	LockTTL              time.Duration `env:"LOCK_TTL,default=0"`
	LockSweepInterval    time.Duration `env:"LOCK_SWEEP_INTERVAL,default=30s"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=5s"`
}
