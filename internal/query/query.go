// Package query exposes the single facade downstream callers use: record
// an observation, or ask for a pair's VWAP, TWAP, current best price, or
// window statistics. It is the only thing outside this module should need
// to import.
package query

import (
	"time"

	"github.com/priceagg/engine/internal/aggregate"
	"github.com/priceagg/engine/internal/collector"
	"github.com/priceagg/engine/internal/obs"
)

// SchedulerCounters is satisfied by *collector.Scheduler. Facade depends on
// this interface, not the concrete type, so its no-arg Stats() can be
// unit-tested without spinning up a real scheduler, and so this package
// never needs more than collector's exported counters.
type SchedulerCounters interface {
	Counters() collector.Counters
}

// Facade wires the observation store to the aggregation engine behind a
// small, stable API.
type Facade struct {
	store  *obs.Store
	engine *aggregate.Engine
	sched  SchedulerCounters
}

// New builds a Facade over an existing store and engine. The collector
// scheduler and the Facade share the same *obs.Store: the scheduler writes,
// the Facade reads.
func New(store *obs.Store, engine *aggregate.Engine) *Facade {
	return &Facade{store: store, engine: engine}
}

// WithScheduler attaches the collector scheduler whose counters back the
// no-arg Stats() operation, returning the same Facade for chaining.
func (f *Facade) WithScheduler(sched SchedulerCounters) *Facade {
	f.sched = sched
	return f
}

// Record inserts a single observation directly, bypassing the collector
// scheduler — used by tests to seed data without running the full fetch
// pipeline.
func (f *Facade) Record(o obs.Observation) {
	f.store.Insert(o)
}

// VWAP returns the pair's volume-weighted average price over window, after
// the same sequential z-score then IQR outlier filter CurrentPrice applies.
// window <= 0 defaults to the engine's configured VWAPWindow.
func (f *Facade) VWAP(pair string, window time.Duration) (float64, error) {
	if window <= 0 {
		window = f.engine.VWAPWindow()
	}
	filtered, err := f.engine.FilterOutliers(pair, f.store.VolumeSnapshot(pair, window))
	if err != nil {
		return 0, err
	}
	return aggregate.ComputeVWAP(pair, filtered, 0)
}

// TWAP returns the pair's time-weighted average price as of asOf over
// window, after the same outlier filter CurrentPrice applies. window <= 0
// defaults to the engine's configured TWAPWindow.
func (f *Facade) TWAP(pair string, window time.Duration, asOf time.Time) (float64, error) {
	if window <= 0 {
		window = f.engine.TWAPWindow()
	}
	filtered, err := f.engine.FilterOutliers(pair, f.store.Snapshot(pair, window))
	if err != nil {
		return 0, err
	}
	return aggregate.ComputeTWAP(pair, filtered, asOf)
}

// CurrentPrice runs the full pipeline — age windowing, sequential z-score
// then IQR outlier filtering, every algorithm the engine can compute, and
// the confidence-ranked best-price selector — returning the engine's best
// Result for pair, over its full retained observation window.
func (f *Facade) CurrentPrice(pair string, asOf time.Time) (aggregate.Result, error) {
	return f.engine.Aggregate(pair, f.store.Snapshot(pair, 0), asOf)
}

// PairStats reports the size and time span of a single pair's current
// observation window.
func (f *Facade) PairStats(pair string) obs.Stats {
	return f.store.Stats(pair)
}

// FacadeStats is the no-arg stats() operation's result: the collector's
// running counters plus a snapshot of the active aggregation config, so an
// operator can see both what happened and what would happen next.
type FacadeStats struct {
	Counters collector.Counters
	Config   aggregate.Config
}

// Stats reports the collector's running counters and the engine's active
// configuration. Counters read as zero values until WithScheduler attaches
// a live scheduler.
func (f *Facade) Stats() FacadeStats {
	var counters collector.Counters
	if f.sched != nil {
		counters = f.sched.Counters()
	}
	return FacadeStats{Counters: counters, Config: f.engine.Config()}
}

// Clear discards all observations for a single pair.
func (f *Facade) Clear(pair string) {
	f.store.Clear(pair)
}

// ClearAll discards every pair's observations.
func (f *Facade) ClearAll() {
	f.store.ClearAll()
}
