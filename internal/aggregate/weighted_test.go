package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priceagg/engine/internal/obs"
)

func TestComputeSourceWeightedMean(t *testing.T) {
	now := time.Now()
	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175, Timestamp: now},
		{Pair: "SOL/USDC", Source: "raydium", Price: 185, Timestamp: now},
	}
	weights := map[string]float64{"okx": 1.0, "raydium": 0.5}

	price, err := ComputeSourceWeightedMean("SOL/USDC", observations, weights)
	require.NoError(t, err)
	// (175*1.0 + 185*0.5) / 1.5 = 178.333...
	assert.InDelta(t, 178.3333, price, 0.001)
}

func TestComputeSourceWeightedMeanUnconfiguredSourceDefaultsToHalfWeight(t *testing.T) {
	now := time.Now()
	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "okx", Price: 175, Timestamp: now},
		{Pair: "SOL/USDC", Source: "unknown", Price: 99999, Timestamp: now},
	}
	weights := map[string]float64{"okx": 1.0}

	price, err := ComputeSourceWeightedMean("SOL/USDC", observations, weights)
	require.NoError(t, err)
	// (175*1.0 + 99999*0.5) / 1.5 = 33449.666...
	assert.InDelta(t, 33449.67, price, 0.01)
}

func TestComputeSourceWeightedMeanZeroWeight(t *testing.T) {
	now := time.Now()
	observations := []obs.Observation{
		{Pair: "SOL/USDC", Source: "unknown", Price: 175, Timestamp: now},
	}

	_, err := ComputeSourceWeightedMean("SOL/USDC", observations, map[string]float64{"unknown": 0})
	require.Error(t, err)
	assert.Equal(t, KindZeroWeight, err.(*Error).Kind)
}

func TestComputeSourceWeightedMeanKeepsOnlyMostRecentTen(t *testing.T) {
	base := time.Now()
	observations := make([]obs.Observation, 0, 12)
	for i := 0; i < 12; i++ {
		price := 100.0
		if i < 2 {
			price = 1000 // two oldest observations, should be dropped
		}
		observations = append(observations, obs.Observation{
			Pair: "SOL/USDC", Source: "okx", Price: price,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	weights := map[string]float64{"okx": 1.0}

	price, err := ComputeSourceWeightedMean("SOL/USDC", observations, weights)
	require.NoError(t, err)
	assert.InDelta(t, 100, price, 1e-9)
}
