package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetTrackerConsumeWithinLimit(t *testing.T) {
	tr := NewBudgetTracker(3, 0)
	require.NoError(t, tr.Consume("okx"))
	require.NoError(t, tr.Consume("okx"))
	assert.Equal(t, int64(2), tr.Used())
}

func TestBudgetTrackerExhausted(t *testing.T) {
	tr := NewBudgetTracker(1, 0)
	require.NoError(t, tr.Consume("okx"))

	err := tr.Consume("okx")
	require.Error(t, err)
	var exhausted *BudgetExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, int64(1), exhausted.Used)
}

func TestBudgetTrackerZeroLimitUnlimited(t *testing.T) {
	tr := NewBudgetTracker(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.Consume("mock"))
	}
}

func TestBudgetManagerUnregisteredSourceUnlimited(t *testing.T) {
	m := NewBudgetManager()
	require.NoError(t, m.Consume("never-seen"))
}

func TestBudgetManagerPerSourceIsolation(t *testing.T) {
	m := NewBudgetManager()
	m.AddSource("okx", 1, 0)
	m.AddSource("binance", 5, 0)

	require.NoError(t, m.Consume("okx"))
	require.Error(t, m.Consume("okx"))
	require.NoError(t, m.Consume("binance"))
}
