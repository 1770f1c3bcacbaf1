package aggregate

import (
	"math"

	"github.com/priceagg/engine/internal/obs"
	"github.com/priceagg/engine/internal/stats"
)

// Confidence blends four factors into a single [0, 1] score: how many
// observations survived filtering, how many distinct sources they came
// from, how tightly their prices agree, and how trusted those sources are.
//
//	confidence = 0.30 · min(n/10, 1)                      // data-points factor
//	           + 0.30 · min(sources/3, 1)                 // source diversity
//	           + 0.30 · max(0, 1 − priceStddev/priceMean) // consistency
//	           + 0.10 · meanSourceWeight                  // trust
func Confidence(observations []obs.Observation) float64 {
	n := len(observations)
	if n == 0 {
		return 0
	}

	prices := make([]float64, n)
	sourceSet := make(map[string]struct{}, n)
	weightSum := 0.0
	for i, o := range observations {
		prices[i] = o.Price
		sourceSet[o.Source] = struct{}{}
		weightSum += o.Weight
	}

	dataFactor := math.Min(float64(n)/10, 1)
	diversityFactor := math.Min(float64(len(sourceSet))/3, 1)

	consistency := 0.0
	if m := stats.Mean(prices); m != 0 {
		consistency = math.Max(0, 1-stats.StdDev(prices)/math.Abs(m))
	}

	meanWeight := weightSum / float64(n)

	score := 0.30*dataFactor + 0.30*diversityFactor + 0.30*consistency + 0.10*meanWeight
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Algorithm identifies which of the three aggregation methods produced a
// Result.
type Algorithm string

const (
	AlgoVWAP    Algorithm = "vwap"
	AlgoTWAP    Algorithm = "twap"
	AlgoWeighted Algorithm = "weighted_mean"
)

// Result is one algorithm's price output plus the confidence and sample
// size behind it, the unit the best-price selector ranks.
type Result struct {
	Algorithm  Algorithm
	Price      float64
	Confidence float64
	SampleSize int
}

// score implements confidence·log(1+n), the ranking function the best-price
// selector uses.
func (r Result) score() float64 {
	return r.Confidence * math.Log1p(float64(r.SampleSize))
}

// algoRank breaks ties in score: VWAP is preferred over TWAP over
// source-weighted-mean, reflecting that VWAP incorporates the most signal
// (both price and volume) when multiple algorithms agree.
func algoRank(a Algorithm) int {
	switch a {
	case AlgoVWAP:
		return 0
	case AlgoTWAP:
		return 1
	case AlgoWeighted:
		return 2
	default:
		return 3
	}
}

// SelectBest picks the highest-scoring result, breaking ties by algorithm
// preference (VWAP > TWAP > weighted mean). results must be non-empty.
func SelectBest(results []Result) Result {
	best := results[0]
	for _, r := range results[1:] {
		if r.score() > best.score() {
			best = r
			continue
		}
		if r.score() == best.score() && algoRank(r.Algorithm) < algoRank(best.Algorithm) {
			best = r
		}
	}
	return best
}
