package source

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/priceagg/engine/internal/aggregate"
	"github.com/priceagg/engine/internal/obs"
)

// SyntheticSource is a deterministic, network-free price generator. It is
// a first-class citizen of the source set, not a test-only shim: operators
// can run the collector against "mock" in the same config shape as a real
// venue, which is why it satisfies the same Source interface and config
// surface as everything else.
type SyntheticSource struct {
	name       string
	basePrice  float64
	amplitude  float64
	period     time.Duration
	volume     float64
	startedAt  time.Time

	mu        sync.Mutex
	forceErr  error
	callCount int
}

// NewSyntheticSource builds a source that oscillates a sine wave of the
// given amplitude and period around basePrice, with a fixed reported
// volume. It never performs network I/O and fails only when ForceError has
// set an error or the Fetch context is already done.
func NewSyntheticSource(name string, basePrice, amplitude float64, period time.Duration, volume float64) *SyntheticSource {
	return &SyntheticSource{
		name:      name,
		basePrice: basePrice,
		amplitude: amplitude,
		period:    period,
		volume:    volume,
		startedAt: time.Now(),
	}
}

// Name implements Source.
func (s *SyntheticSource) Name() string { return s.name }

// ForceError makes every subsequent Fetch call return err until cleared
// with ForceError(nil). Used to exercise retry, circuit-breaking and
// per-request isolation without a real flaky network dependency.
func (s *SyntheticSource) ForceError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceErr = err
}

// Fetch implements Source.
func (s *SyntheticSource) Fetch(ctx context.Context, pair string) (obs.Observation, error) {
	s.mu.Lock()
	s.callCount++
	forced := s.forceErr
	s.mu.Unlock()

	if forced != nil {
		return obs.Observation{}, newAdapterError(aggregate.KindNetworkError, s.name, pair, forced)
	}
	select {
	case <-ctx.Done():
		return obs.Observation{}, newAdapterError(aggregate.KindNetworkError, s.name, pair, ctx.Err())
	default:
	}

	elapsed := time.Since(s.startedAt)
	phase := 2 * math.Pi * (elapsed.Seconds() / s.period.Seconds())
	price := s.basePrice + s.amplitude*math.Sin(phase)

	return obs.Observation{
		Pair:      pair,
		Source:    s.name,
		Price:     price,
		Volume:    s.volume,
		Timestamp: time.Now(),
	}, nil
}

// CallCount reports how many times Fetch has been invoked, used by tests
// asserting on retry and isolation behavior.
func (s *SyntheticSource) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}
