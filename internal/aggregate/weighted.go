package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/priceagg/engine/internal/obs"
)

// mostRecent returns at most n observations from observations, keeping the
// newest by Timestamp. observations is not mutated.
func mostRecent(observations []obs.Observation, n int) []obs.Observation {
	if len(observations) <= n {
		return observations
	}
	sorted := append([]obs.Observation(nil), observations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })
	return sorted[:n]
}

// ComputeSourceWeightedMean is the fallback algorithm used when VWAP and
// TWAP both fail: over the most recent ten observations after outlier
// filtering, it returns Σ(price·weight) / Σ(weight), where weight comes from
// the configured per-source weight table (falling back to
// obs.DefaultSourceWeight for a source with no entry — an unconfigured
// source still carries below-average trust rather than being excluded).
// Only a source explicitly configured to weight ≤0 is excluded.
func ComputeSourceWeightedMean(pair string, observations []obs.Observation, weights map[string]float64) (float64, error) {
	if len(observations) == 0 {
		return 0, newErr(KindInsufficientData, pair, "weighted_mean", nil)
	}

	recent := mostRecent(observations, 10)

	numerator := decimal.Zero
	denominator := decimal.Zero

	for _, o := range recent {
		w := obs.ResolveWeight(weights, o.Source)
		if w <= 0 {
			continue
		}
		weight := decimal.NewFromFloat(w)
		price := decimal.NewFromFloat(o.Price)
		numerator = numerator.Add(price.Mul(weight))
		denominator = denominator.Add(weight)
	}

	if denominator.IsZero() {
		return 0, newErr(KindZeroWeight, pair, "weighted_mean", nil)
	}

	result, _ := numerator.Div(denominator).Float64()
	return result, nil
}
