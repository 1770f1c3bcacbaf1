// Package collector runs the periodic, multi-source fan-out that keeps the
// observation store fed: on a fixed cadence it fetches every configured
// pair from every enabled source, honoring per-source rate limits, daily
// budgets and circuit breakers, retrying transient failures with backoff,
// and isolating each (pair, source) request so one failure never aborts
// another.
package collector

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/priceagg/engine/internal/obs"
	"github.com/priceagg/engine/internal/resilience"
	"github.com/priceagg/engine/internal/source"
)

// State is the scheduler's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Backoff configures the retry delay between attempts for a single
// (pair, source) fetch.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// DefaultBackoff doubles from 1s up to 30s with 20% jitter: 2^attempt
// seconds, capped.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 30 * time.Second, Jitter: 0.2}
}

func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		jitter := d * b.Jitter * (rand.Float64()*2 - 1)
		d += jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Config holds the collector's tunables, loaded from the collector:
// section of the operator config file.
type Config struct {
	CollectInterval time.Duration
	RequestTimeout  time.Duration
	RetryAttempts   int
	MaxInFlight     int
	Pairs           []string
	Backoff         Backoff
}

// DefaultConfig mirrors the defaults documented in the operator config.
func DefaultConfig() Config {
	return Config{
		CollectInterval: 30 * time.Second,
		RequestTimeout:  10 * time.Second,
		RetryAttempts:   3,
		MaxInFlight:     64,
		Backoff:         DefaultBackoff(),
	}
}

// Counters tallies outcomes across ticks, for metrics and health reporting.
// It holds no lock itself — it is the value type returned by
// counterSet.Snapshot, safe to copy and serialize freely.
type Counters struct {
	Attempts    int64
	Successes   int64
	Failures    int64
	TicksRun    int64
	BudgetSkip  int64
	BreakerSkip int64
}

// counterSet is the mutex-guarded live counter storage a Scheduler embeds.
// It never leaves the package by value; callers only ever see Counters
// snapshots.
type counterSet struct {
	mu sync.Mutex
	Counters
}

func (c *counterSet) incr(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// Snapshot returns a copy safe to read without racing further updates.
func (c *counterSet) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Counters
}

// FetchRecorder receives one observation per fetch attempt, for Prometheus
// metrics collection. *metrics.Registry satisfies this interface;
// Scheduler accepts it as an interface so this package never imports
// internal/metrics directly.
type FetchRecorder interface {
	RecordFetch(source string, start time.Time, success bool)
}

// Scheduler periodically fetches every configured pair from every
// registered source and inserts successful reads into the observation
// store.
type Scheduler struct {
	cfg      Config
	store    *obs.Store
	sources  map[string]source.Source
	breakers *resilience.BreakerManager
	limiters *resilience.LimiterManager
	budgets  *resilience.BudgetManager
	log      zerolog.Logger
	recorder FetchRecorder

	counters counterSet

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

// WithRecorder attaches a metrics recorder, returning the same Scheduler
// for chaining. Every fetch attempt after this call reports its latency
// and outcome to recorder.
func (s *Scheduler) WithRecorder(recorder FetchRecorder) *Scheduler {
	s.recorder = recorder
	return s
}

// NewScheduler builds a Scheduler. sources must be keyed by the same names
// used in the resilience managers and the source_weights config table.
func NewScheduler(cfg Config, store *obs.Store, sources map[string]source.Source, breakers *resilience.BreakerManager, limiters *resilience.LimiterManager, budgets *resilience.BudgetManager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    store,
		sources:  sources,
		breakers: breakers,
		limiters: limiters,
		budgets:  budgets,
		log:      log.With().Str("component", "collector").Logger(),
		state:    StateStopped,
	}
}

// State reports the scheduler's current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counters returns a snapshot of the scheduler's running counters.
func (s *Scheduler) Counters() Counters {
	return s.counters.Snapshot()
}

// Start begins the tick loop in the current goroutine; it returns when ctx
// is canceled or Stop is called. Ticks never overlap: if a tick's fan-out
// takes longer than CollectInterval, the next tick waits for it to finish
// rather than piling up concurrent fan-outs against the same sources.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateRunning
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.cfg.CollectInterval)
	defer ticker.Stop()

	s.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.RunTick(ctx)
		}
	}
}

// Stop requests the tick loop to exit after its current tick finishes, and
// blocks until it has.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// RunTick fetches every configured pair from every registered source once,
// bounded by MaxInFlight concurrent requests. Each (pair, source) request
// is isolated: its failure is counted and logged but never aborts any
// other request in the tick.
func (s *Scheduler) RunTick(ctx context.Context) {
	s.counters.incr(&s.counters.TicksRun)

	sem := make(chan struct{}, maxInt(s.cfg.MaxInFlight, 1))
	var wg sync.WaitGroup

	for _, pair := range s.cfg.Pairs {
		for name, src := range s.sources {
			pair, name, src := pair, name, src
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				s.fetchOne(ctx, pair, name, src)
			}()
		}
	}

	wg.Wait()
}

// fetchOne performs the full resilience-checked, retried fetch for one
// (pair, source) combination and inserts the result into the store on
// success. It never panics and never returns an error; all outcomes are
// recorded in counters and logs so one bad source cannot stop the tick.
func (s *Scheduler) fetchOne(ctx context.Context, pair, name string, src source.Source) {
	log := s.log.With().Str("pair", pair).Str("source", name).Logger()

	if s.budgets != nil {
		if err := s.budgets.Consume(name); err != nil {
			s.counters.incr(&s.counters.BudgetSkip)
			log.Warn().Err(err).Msg("daily budget exhausted, skipping")
			return
		}
	}

	if s.limiters != nil {
		if err := s.limiters.Wait(ctx, name); err != nil {
			log.Debug().Err(err).Msg("rate limiter wait canceled")
			return
		}
	}

	attempts := maxInt(s.cfg.RetryAttempts, 1)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			d := s.cfg.Backoff.delay(attempt - 1)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		}

		s.counters.incr(&s.counters.Attempts)
		start := time.Now()

		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		var o obs.Observation
		var err error

		if s.breakers != nil {
			var raw interface{}
			raw, err = s.breakers.Execute(name, func() (interface{}, error) {
				return src.Fetch(reqCtx, pair)
			})
			if err == nil {
				o = raw.(obs.Observation)
			}
		} else {
			o, err = src.Fetch(reqCtx, pair)
		}
		cancel()

		if s.recorder != nil {
			s.recorder.RecordFetch(name, start, err == nil)
		}

		if err == nil {
			s.store.Insert(o)
			s.counters.incr(&s.counters.Successes)
			return
		}

		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) {
			s.counters.incr(&s.counters.BreakerSkip)
			return
		}
	}

	s.counters.incr(&s.counters.Failures)
	log.Warn().Err(lastErr).Int("attempts", attempts).Msg("fetch failed after retries")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
