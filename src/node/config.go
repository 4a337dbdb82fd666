package node

import "time"

// Config holds the node-level tunables. Transport and executor settings live
// with their own components; this is only what the orchestrator itself needs.
type Config struct {
	// HeartbeatInterval is the period of capacity reports. Each report's
	// deadline is one interval in the future.
	HeartbeatInterval time.Duration

	// SpecsInterval is the period of host capacity snapshots.
	SpecsInterval time.Duration

	// BatchSize is the queue capacity advertised in heartbeats. A peer
	// reporting pending_batch above this value is judged overloaded.
	BatchSize uint

	// MaxInflight bounds concurrently running executions.
	MaxInflight int

	// CacheSize bounds the seen-task cache.
	CacheSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HeartbeatInterval: 10 * time.Second,
		SpecsInterval:     time.Minute,
		BatchSize:         10,
		MaxInflight:       4,
		CacheSize:         50000,
	}
}
