package aggregate

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceagg/engine/internal/obs"
)

func testEngine(cfg Config) *Engine {
	return NewEngine(cfg, zerolog.Nop())
}

func TestEngineAggregateBasic(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.SourceWeights = map[string]float64{"okx": 1.0, "binance": 1.0, "coinbase": 0.9}
	e := testEngine(cfg)

	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175.20, Volume: 1200, Timestamp: now},
		{Pair: "SOL/USDC", Source: "binance", Price: 178.50, Volume: 2100, Timestamp: now.Add(1 * time.Second)},
		{Pair: "SOL/USDC", Source: "coinbase", Price: 177.90, Volume: 1800, Timestamp: now.Add(2 * time.Second)},
	}

	result, err := e.Aggregate("SOL/USDC", observations, now.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, result.SampleSize)
	assert.Greater(t, result.Price, 0.0)
}

func TestEngineAggregateDropsOutliers(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.MinDataPoints = 3
	e := testEngine(cfg)

	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175, Volume: 1000, Timestamp: now},
		{Pair: "SOL/USDC", Source: "binance", Price: 176, Volume: 1000, Timestamp: now},
		{Pair: "SOL/USDC", Source: "coinbase", Price: 177, Volume: 1000, Timestamp: now},
		{Pair: "SOL/USDC", Source: "bogus", Price: 50000, Volume: 1000, Timestamp: now},
	}

	result, err := e.Aggregate("SOL/USDC", observations, now)
	require.NoError(t, err)
	assert.Less(t, result.Price, 1000.0)
}

func TestEngineAggregateInsufficientData(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.MinDataPoints = 3
	e := testEngine(cfg)

	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175, Volume: 1000, Timestamp: now},
	}

	_, err := e.Aggregate("SOL/USDC", observations, now)
	require.Error(t, err)
	assert.Equal(t, KindInsufficientData, err.(*Error).Kind)
}

func TestEngineAggregateAgeWindowEmptiesSet(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.MinDataPoints = 1
	e := testEngine(cfg)

	// The only observation is older than MaxAge, so the age window leaves
	// nothing to filter and Aggregate reports InsufficientData.
	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175, Volume: 1000, Timestamp: now.Add(-time.Hour)},
	}

	_, err := e.Aggregate("SOL/USDC", observations, now)
	require.Error(t, err)
	assert.Equal(t, KindInsufficientData, err.(*Error).Kind)
}

func TestEngineForceAlgorithm(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()
	cfg.MinDataPoints = 2
	cfg.ForceAlgorithm = AlgoWeighted
	cfg.SourceWeights = map[string]float64{"okx": 1.0, "binance": 1.0}
	e := testEngine(cfg)

	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175, Volume: 1000, Timestamp: now},
		{Pair: "SOL/USDC", Source: "binance", Price: 177, Volume: 1000, Timestamp: now.Add(time.Second)},
	}

	result, err := e.Aggregate("SOL/USDC", observations, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, AlgoWeighted, result.Algorithm)
}
