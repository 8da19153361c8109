package fixtures

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jonwraymond/probekit/health"
)

// MemoryConfig configures the Memory probe.
type MemoryConfig struct {
	// WarningThreshold is the heap ratio that reports Degraded.
	// Value should be between 0 and 1. Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the heap ratio that reports Unhealthy.
	// Value should be between 0 and 1. Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the allocation ceiling in bytes.
	// Default: 0, which uses the memory obtained from the OS
	MaxAlloc uint64
}

// Memory reports heap usage against configurable thresholds. It is the
// only bundled probe that can report Degraded.
type Memory struct {
	config MemoryConfig
	stats  func(*runtime.MemStats)
}

// NewMemory creates a Memory probe.
func NewMemory(config MemoryConfig) *Memory {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = min(config.WarningThreshold+0.1, 0.99)
	}
	return &Memory{config: config, stats: runtime.ReadMemStats}
}

func (m *Memory) CheckHealth(ctx context.Context, _ health.CheckContext) (health.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return health.Outcome{}, err
	}

	var stats runtime.MemStats
	m.stats(&stats)

	maxAlloc := m.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}
	if maxAlloc == 0 {
		return health.Healthy("memory stats unavailable"), nil
	}

	ratio := float64(stats.Alloc) / float64(maxAlloc)
	data := map[string]any{
		"alloc_bytes":   stats.Alloc,
		"max_alloc":     maxAlloc,
		"usage_percent": ratio * 100,
		"heap_objects":  stats.HeapObjects,
		"num_gc":        stats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	switch {
	case ratio >= m.config.CriticalThreshold:
		return health.Unhealthy(fmt.Sprintf("memory usage critical: %.1f%%", ratio*100), nil).WithData(data), nil
	case ratio >= m.config.WarningThreshold:
		return health.Degraded(fmt.Sprintf("memory usage high: %.1f%%", ratio*100)).WithData(data), nil
	default:
		return health.Healthy(fmt.Sprintf("memory usage normal: %.1f%%", ratio*100)).WithData(data), nil
	}
}
