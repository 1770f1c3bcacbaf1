package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// LimiterConfig configures one source's token bucket.
type LimiterConfig struct {
	RPS   float64
	Burst int
}

// LimiterManager holds one golang.org/x/time/rate.Limiter per source,
// keyed by source name, so the fan-out never exceeds a venue's published
// request budget even when the worker-pool semaphore has spare capacity.
type LimiterManager struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	configs  map[string]LimiterConfig
}

// NewLimiterManager builds an empty manager. Call AddSource for each
// configured source before the first Wait/Allow call.
func NewLimiterManager() *LimiterManager {
	return &LimiterManager{
		limiters: make(map[string]*rate.Limiter),
		configs:  make(map[string]LimiterConfig),
	}
}

// AddSource registers or replaces the limiter for a source.
func (m *LimiterManager) AddSource(name string, cfg LimiterConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = cfg
	m.limiters[name] = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
}

func (m *LimiterManager) limiterFor(name string) (*rate.Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[name]
	return l, ok
}

// Wait blocks until a token is available for source, or ctx is done,
// whichever comes first. A source with no registered limiter is
// unrestricted.
func (m *LimiterManager) Wait(ctx context.Context, source string) error {
	l, ok := m.limiterFor(source)
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// Allow reports, without blocking, whether a request for source may
// proceed right now. A source with no registered limiter is always
// allowed.
func (m *LimiterManager) Allow(source string) bool {
	l, ok := m.limiterFor(source)
	if !ok {
		return true
	}
	return l.Allow()
}
