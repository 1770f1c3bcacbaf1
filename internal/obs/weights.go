package obs

// DefaultSourceWeight is the trust scalar assigned to a source absent from
// the configured weight table. The spec fixes this at 0.5: an unconfigured
// source still contributes, just with below-average trust, rather than
// being silently excluded.
const DefaultSourceWeight = 0.5

// DefaultSourceWeights returns the mandatory default per-source trust
// table. Operators may override any entry (or add new sources) through
// config; sources left out of the override still fall back to
// DefaultSourceWeight via ResolveWeight.
func DefaultSourceWeights() map[string]float64 {
	return map[string]float64{
		"okx":      1.0,
		"binance":  1.0,
		"coinbase": 0.9,
		"raydium":  0.8,
		"orca":     0.8,
	}
}

// ResolveWeight looks up source's weight in weights, falling back to
// DefaultSourceWeight when the source has no entry.
func ResolveWeight(weights map[string]float64, source string) float64 {
	if w, ok := weights[source]; ok {
		return w
	}
	return DefaultSourceWeight
}
