package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/priceagg/engine/internal/obs"
)

// ComputeVWAP returns the volume-weighted average price over observations,
// Σ(price·volume) / Σ(volume). Inner sums are carried in decimal to avoid
// the magnitude-mismatch error float64 accumulation produces when a handful
// of large-volume observations dwarf the rest.
//
// Observations with zero or negative volume, or volume below minVolume, are
// ignored; if none remain, KindNoVolumeData is returned.
func ComputeVWAP(pair string, observations []obs.Observation, minVolume float64) (float64, error) {
	numerator := decimal.Zero
	denominator := decimal.Zero
	counted := 0

	for _, o := range observations {
		if o.Volume <= 0 || o.Volume < minVolume {
			continue
		}
		price := decimal.NewFromFloat(o.Price)
		volume := decimal.NewFromFloat(o.Volume)
		numerator = numerator.Add(price.Mul(volume))
		denominator = denominator.Add(volume)
		counted++
	}

	if counted == 0 {
		return 0, newErr(KindNoVolumeData, pair, "vwap", nil)
	}
	if denominator.IsZero() {
		return 0, newErr(KindZeroWeight, pair, "vwap", nil)
	}

	result, _ := numerator.Div(denominator).Float64()
	return result, nil
}
