// Package resilience holds the per-source circuit breakers, rate limiters
// and daily budget trackers the collector scheduler consults before every
// fetch.
package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures one source's circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker after this many consecutive
	// failed requests.
	ConsecutiveFailures uint32
	// FailureRatioThreshold trips the breaker when at least MinRequests
	// have been seen in the rolling interval and the failure ratio meets
	// or exceeds this value.
	FailureRatioThreshold float64
	MinRequests           uint32
	// Interval is how often the rolling counts reset while the breaker
	// is closed. Timeout is how long the breaker stays open before
	// allowing a half-open probe.
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultBreakerConfig mirrors the thresholds the teacher's own breaker
// wrapper used: trip on 3 consecutive failures, or a >=5% failure rate once
// at least 20 requests have been observed.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures:   3,
		FailureRatioThreshold: 0.05,
		MinRequests:           20,
		Interval:              60 * time.Second,
		Timeout:               60 * time.Second,
	}
}

// BreakerManager holds one gobreaker.CircuitBreaker per source, so one
// source tripping never affects another's breaker state.
type BreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      BreakerConfig
}

// NewBreakerManager builds an empty manager; sources are added lazily on
// first use via Execute, using cfg for every breaker.
func NewBreakerManager(cfg BreakerConfig) *BreakerManager {
	return &BreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
	}
}

func (m *BreakerManager) breakerFor(name string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.breakers[name]; ok {
		return b
	}

	settings := gobreaker.Settings{
		Name:     name,
		Interval: m.cfg.Interval,
		Timeout:  m.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= m.cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests >= m.cfg.MinRequests {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= m.cfg.FailureRatioThreshold
			}
			return false
		},
	}
	b = gobreaker.NewCircuitBreaker(settings)
	m.breakers[name] = b
	return b
}

// Execute runs fn through the named source's breaker. When the breaker is
// open, fn is never called and gobreaker.ErrOpenState is returned; the
// scheduler treats that the same as a daily-budget exhaustion for the tick.
func (m *BreakerManager) Execute(source string, fn func() (interface{}, error)) (interface{}, error) {
	return m.breakerFor(source).Execute(fn)
}

// State reports the current state of a source's breaker for health/metrics
// reporting. Unknown sources report StateClosed, since no breaker has
// tripped for a source that has never been called.
func (m *BreakerManager) State(source string) gobreaker.State {
	m.mu.RLock()
	b, ok := m.breakers[source]
	m.mu.RUnlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return b.State()
}
