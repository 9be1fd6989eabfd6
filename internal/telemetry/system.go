package telemetry

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemSampler periodically refreshes CPU and memory gauges on a Registry.
type SystemSampler struct {
	reg      *Registry
	interval time.Duration

	mu         sync.Mutex
	cpuPercent float64
}

// NewSystemSampler creates a sampler that updates reg every interval.
func NewSystemSampler(reg *Registry, interval time.Duration) *SystemSampler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &SystemSampler{reg: reg, interval: interval}
}

// Run samples system metrics until ctx is cancelled.
func (s *SystemSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *SystemSampler) sample() {
	percents, err := cpu.Percent(0, false)
	if err == nil && len(percents) > 0 {
		s.mu.Lock()
		// Exponential moving average to avoid spiky gauge readings.
		if s.cpuPercent == 0 {
			s.cpuPercent = percents[0]
		} else {
			s.cpuPercent = 0.3*percents[0] + 0.7*s.cpuPercent
		}
		current := s.cpuPercent
		s.mu.Unlock()
		s.reg.SystemCPUPercent.Set(current)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.reg.SystemMemoryBytes.Set(float64(mem.HeapAlloc))
}
