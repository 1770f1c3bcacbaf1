package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/priceagg/engine/internal/obs"
)

// ComputeTWAP returns the time-weighted average price over observations,
// each price weighted by the span of time it was "current" for — the gap
// until the next observation, with the final observation weighted out to
// asOf. Observations are sorted by Timestamp first; the caller's ordering is
// not relied upon.
//
// Each observation's combined weight is timeWeight·sourceWeight, where
// sourceWeight is the trust value attached to it at insertion; a zero-weight
// source contributes nothing even while "current" for a nonzero span.
//
// Observations sharing a timestamp with their successor get zero time
// weight; the last one is still weighted out to asOf. If every span is zero
// (all observations share one timestamp and asOf is not after it, or asOf is
// not after the single observation's timestamp), or every source carries
// zero weight, the total weight is zero and KindZeroWeight is returned —
// there is nothing to distinguish one observation's contribution from
// another's.
func ComputeTWAP(pair string, observations []obs.Observation, asOf time.Time) (float64, error) {
	if len(observations) == 0 {
		return 0, newErr(KindInsufficientData, pair, "twap", nil)
	}

	sorted := append([]obs.Observation(nil), observations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	numerator := decimal.Zero
	denominator := decimal.Zero

	for i, o := range sorted {
		var span time.Duration
		if i+1 < len(sorted) {
			span = sorted[i+1].Timestamp.Sub(o.Timestamp)
		} else {
			span = asOf.Sub(o.Timestamp)
		}
		if span <= 0 {
			continue
		}

		weight := decimal.NewFromFloat(span.Seconds() * o.Weight)
		price := decimal.NewFromFloat(o.Price)
		numerator = numerator.Add(price.Mul(weight))
		denominator = denominator.Add(weight)
	}

	if denominator.IsZero() {
		return 0, newErr(KindZeroWeight, pair, "twap", nil)
	}

	result, _ := numerator.Div(denominator).Float64()
	return result, nil
}
