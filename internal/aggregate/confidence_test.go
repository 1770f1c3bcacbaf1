package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/priceagg/engine/internal/obs"
)

func TestConfidenceIdenticalPrices(t *testing.T) {
	now := time.Now()
	observations := []obs.Observation{
		{Price: 100, Source: "okx", Weight: 1.0, Timestamp: now},
		{Price: 100, Source: "okx", Weight: 1.0, Timestamp: now},
		{Price: 100, Source: "okx", Weight: 1.0, Timestamp: now},
	}
	// dataFactor=0.3*0.3=0.09, diversityFactor=0.3*(1/3)=0.1, consistency=0.3*1=0.3, trust=0.1*1=0.1
	assert.InDelta(t, 0.59, Confidence(observations), 0.01)
}

func TestConfidenceDivergentPrices(t *testing.T) {
	now := time.Now()
	observations := []obs.Observation{
		{Price: 100, Source: "okx", Weight: 1.0, Timestamp: now},
		{Price: 200, Source: "binance", Weight: 1.0, Timestamp: now},
		{Price: 300, Source: "coinbase", Weight: 0.9, Timestamp: now},
	}
	c := Confidence(observations)
	assert.Less(t, c, 1.0)
	assert.GreaterOrEqual(t, c, 0.0)
}

func TestSelectBestPrefersHigherScore(t *testing.T) {
	results := []Result{
		{Algorithm: AlgoWeighted, Price: 1, Confidence: 0.5, SampleSize: 3},
		{Algorithm: AlgoVWAP, Price: 2, Confidence: 0.9, SampleSize: 10},
	}
	best := SelectBest(results)
	assert.Equal(t, AlgoVWAP, best.Algorithm)
}

func TestSelectBestTieBreaksByAlgorithmOrder(t *testing.T) {
	results := []Result{
		{Algorithm: AlgoWeighted, Price: 1, Confidence: 0.8, SampleSize: 5},
		{Algorithm: AlgoTWAP, Price: 2, Confidence: 0.8, SampleSize: 5},
		{Algorithm: AlgoVWAP, Price: 3, Confidence: 0.8, SampleSize: 5},
	}
	best := SelectBest(results)
	assert.Equal(t, AlgoVWAP, best.Algorithm)
}
