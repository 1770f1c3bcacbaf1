// Package source defines price adapters and the handful of concrete
// sources the collector scheduler fans out to: a synthetic generator for
// tests and demos, and HTTP adapters for the venues listed in the operator
// config's token_mappings table.
package source

import (
	"context"
	"time"

	"github.com/priceagg/engine/internal/aggregate"
	"github.com/priceagg/engine/internal/obs"
)

// Source fetches a single fresh observation for a pair. Implementations
// must be safe for concurrent use by the collector scheduler, which may
// call Fetch for several pairs against the same Source at once.
type Source interface {
	// Name identifies the source for logging, metrics, rate limiting,
	// circuit breaking and per-source weighting. It must be stable and
	// match the keys used in the operator config.
	Name() string
	// Fetch returns the latest observation for pair, or an
	// *aggregate.Error wrapping one of KindNetworkError, KindRateLimited,
	// KindParseError, or KindUnsupported.
	Fetch(ctx context.Context, pair string) (obs.Observation, error)
}

// newAdapterError wraps cause as the named kind, scoped to source/pair, in
// the same *aggregate.Error shape the aggregation engine itself returns —
// one error taxonomy end to end.
func newAdapterError(kind aggregate.ErrKind, sourceName, pair string, cause error) error {
	return &aggregate.Error{Kind: kind, Pair: pair, Algo: sourceName, Err: cause}
}

func clampTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
