package aggregate

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/priceagg/engine/internal/obs"
	"github.com/priceagg/engine/internal/stats"
)

// Config holds the tunables of the aggregation engine, loaded from the
// aggregation: section of the operator config file.
type Config struct {
	ZScoreThreshold float64
	IQRMultiplier   float64
	MinDataPoints   int
	MaxAge          time.Duration
	MinVolume       float64
	SourceWeights   map[string]float64
	// VWAPWindow and TWAPWindow are the per-query look-back windows the
	// query facade defaults to when a caller doesn't specify one. They are
	// a separate concept from the store's own retention (MaxAge above
	// bounds the engine's own aggregation window; the facade's windows
	// bound a single vwap()/twap() call).
	VWAPWindow time.Duration
	TWAPWindow time.Duration
	// ForceAlgorithm, when non-empty, skips the best-price selector and
	// always reports the named algorithm's result (or its error).
	ForceAlgorithm Algorithm
}

// DefaultConfig mirrors the defaults documented in the operator config.
func DefaultConfig() Config {
	return Config{
		ZScoreThreshold: 2.5,
		IQRMultiplier:   1.5,
		MinDataPoints:   3,
		MaxAge:          5 * time.Minute,
		MinVolume:       0.01,
		SourceWeights:   obs.DefaultSourceWeights(),
		VWAPWindow:      time.Hour,
		TWAPWindow:      time.Hour,
	}
}

// Recorder receives outlier counts and per-algorithm/per-error-kind tallies
// from Engine.Aggregate. *metrics.Registry satisfies this interface; Engine
// accepts it as an interface so this package never imports internal/metrics.
type Recorder interface {
	AddOutliersDetected(n int)
	IncAggregation(algo string)
	IncAggregationError(kind string)
}

// Engine runs outlier filtering and the three aggregation algorithms over a
// pair's observation window and selects the best result.
type Engine struct {
	cfg      Config
	log      zerolog.Logger
	recorder Recorder
}

// NewEngine builds an Engine with the given config and logger.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log.With().Str("component", "aggregate").Logger()}
}

// WithRecorder attaches a metrics recorder, returning the same Engine for
// chaining.
func (e *Engine) WithRecorder(recorder Recorder) *Engine {
	e.recorder = recorder
	return e
}

// Config returns the engine's runtime configuration, used by the query
// facade's no-arg Stats() to expose the active tunables alongside counters.
func (e *Engine) Config() Config {
	return e.cfg
}

// VWAPWindow returns the configured default VWAP look-back window, falling
// back to one hour when unset.
func (e *Engine) VWAPWindow() time.Duration {
	if e.cfg.VWAPWindow > 0 {
		return e.cfg.VWAPWindow
	}
	return time.Hour
}

// TWAPWindow returns the configured default TWAP look-back window, falling
// back to one hour when unset.
func (e *Engine) TWAPWindow() time.Duration {
	if e.cfg.TWAPWindow > 0 {
		return e.cfg.TWAPWindow
	}
	return time.Hour
}

// FilterOutliers applies z-score filtering, then IQR filtering to what
// survives the z-score pass, then enforces MinDataPoints on the result. The
// two filtering passes are intentionally sequential, not independent votes
// merged afterward: IQR on the z-score survivors catches residual skew that
// a single pass over the raw set would miss. Exported so the query facade
// can apply the same filtering standalone vwap()/twap() calls get.
func (e *Engine) FilterOutliers(pair string, observations []obs.Observation) ([]obs.Observation, error) {
	if len(observations) == 0 {
		return nil, newErr(KindInsufficientData, pair, "filter", nil)
	}

	prices := make([]float64, len(observations))
	for i, o := range observations {
		prices[i] = o.Price
	}

	zKept := stats.ZScoreFilter(prices, e.cfg.ZScoreThreshold)
	if len(zKept) == 0 {
		return nil, newErr(KindAllOutliers, pair, "filter", nil)
	}
	afterZ := make([]obs.Observation, len(zKept))
	zPrices := make([]float64, len(zKept))
	for i, idx := range zKept {
		afterZ[i] = observations[idx]
		zPrices[i] = observations[idx].Price
	}

	iqrKept := stats.IQRFilter(zPrices, e.cfg.IQRMultiplier)
	if len(iqrKept) == 0 {
		return nil, newErr(KindAllOutliers, pair, "filter", nil)
	}
	afterIQR := make([]obs.Observation, len(iqrKept))
	for i, idx := range iqrKept {
		afterIQR[i] = afterZ[idx]
	}

	if e.recorder != nil {
		if removed := len(observations) - len(afterIQR); removed > 0 {
			e.recorder.AddOutliersDetected(removed)
		}
	}

	if len(afterIQR) < e.cfg.MinDataPoints {
		return nil, newErr(KindInsufficientData, pair, "filter", nil)
	}

	return afterIQR, nil
}

// Aggregate runs the full pipeline for one pair: age-window the raw
// observations, filter outliers, run every algorithm that has enough
// signal, and return the best result (or the forced algorithm's result,
// when Config.ForceAlgorithm is set).
func (e *Engine) Aggregate(pair string, raw []obs.Observation, asOf time.Time) (Result, error) {
	windowed := raw
	if e.cfg.MaxAge > 0 {
		cutoff := asOf.Add(-e.cfg.MaxAge)
		windowed = make([]obs.Observation, 0, len(raw))
		for _, o := range raw {
			if !o.Timestamp.Before(cutoff) {
				windowed = append(windowed, o)
			}
		}
	}

	filtered, err := e.FilterOutliers(pair, windowed)
	if err != nil {
		e.recordError(err)
		return Result{}, err
	}

	conf := Confidence(filtered)

	var results []Result
	var lastErr error
	algoErrs := make(map[Algorithm]error, 3)

	if vwap, vErr := ComputeVWAP(pair, filtered, e.cfg.MinVolume); vErr == nil {
		results = append(results, Result{Algorithm: AlgoVWAP, Price: vwap, Confidence: conf, SampleSize: len(filtered)})
		e.recordAlgo(AlgoVWAP)
	} else {
		lastErr = vErr
		algoErrs[AlgoVWAP] = vErr
		e.log.Debug().Err(vErr).Str("pair", pair).Msg("vwap unavailable")
	}

	if twap, tErr := ComputeTWAP(pair, filtered, asOf); tErr == nil {
		results = append(results, Result{Algorithm: AlgoTWAP, Price: twap, Confidence: conf, SampleSize: len(filtered)})
		e.recordAlgo(AlgoTWAP)
	} else {
		lastErr = tErr
		algoErrs[AlgoTWAP] = tErr
		e.log.Debug().Err(tErr).Str("pair", pair).Msg("twap unavailable")
	}

	if wm, wErr := ComputeSourceWeightedMean(pair, filtered, e.cfg.SourceWeights); wErr == nil {
		results = append(results, Result{Algorithm: AlgoWeighted, Price: wm, Confidence: conf, SampleSize: len(filtered)})
		e.recordAlgo(AlgoWeighted)
	} else {
		lastErr = wErr
		algoErrs[AlgoWeighted] = wErr
		e.log.Debug().Err(wErr).Str("pair", pair).Msg("weighted mean unavailable")
	}

	if e.cfg.ForceAlgorithm != "" {
		for _, r := range results {
			if r.Algorithm == e.cfg.ForceAlgorithm {
				return r, nil
			}
		}
		if fErr, ok := algoErrs[e.cfg.ForceAlgorithm]; ok {
			e.recordError(fErr)
			return Result{}, fErr
		}
		err := newErr(KindUnsupported, pair, string(e.cfg.ForceAlgorithm), nil)
		e.recordError(err)
		return Result{}, err
	}

	if len(results) == 0 {
		if lastErr != nil {
			if aggErr, ok := lastErr.(*Error); ok {
				err := newErr(KindNoAlgorithmSucceeded, pair, "aggregate", aggErr)
				e.recordError(err)
				return Result{}, err
			}
		}
		err := newErr(KindNoAlgorithmSucceeded, pair, "aggregate", nil)
		e.recordError(err)
		return Result{}, err
	}

	return SelectBest(results), nil
}

func (e *Engine) recordAlgo(algo Algorithm) {
	if e.recorder != nil {
		e.recorder.IncAggregation(string(algo))
	}
}

func (e *Engine) recordError(err error) {
	if e.recorder == nil {
		return
	}
	if aggErr, ok := err.(*Error); ok {
		e.recorder.IncAggregationError(aggErr.Kind.String())
	}
}
