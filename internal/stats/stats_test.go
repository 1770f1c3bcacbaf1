package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	cases := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"three", []float64{1, 2, 3}, 2},
		{"negatives", []float64{-1, 0, 1}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, Mean(c.xs), 1e-9)
		})
	}
}

func TestStdDev(t *testing.T) {
	cases := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 0},
		{"all equal", []float64{3, 3, 3}, 0},
		{"known", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, StdDev(c.xs), 1e-9)
		})
	}
}

func TestQuantile(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1, Quantile(xs, 0), 1e-9)
	assert.InDelta(t, 4, Quantile(xs, 1), 1e-9)
	assert.InDelta(t, 2.5, Quantile(xs, 0.5), 1e-9)
	assert.InDelta(t, 1.75, Quantile(xs, 0.25), 1e-9)
	assert.InDelta(t, 3.25, Quantile(xs, 0.75), 1e-9)

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)) == false)
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}

func TestQuantileDoesNotMutateInput(t *testing.T) {
	xs := []float64{4, 1, 3, 2}
	_ = Quantile(xs, 0.5)
	assert.Equal(t, []float64{4, 1, 3, 2}, xs)
}

func TestZScoreFilter(t *testing.T) {
	t.Run("too few points keeps all", func(t *testing.T) {
		xs := []float64{1, 100}
		assert.Equal(t, []int{0, 1}, ZScoreFilter(xs, 2.0))
	})

	t.Run("zero stddev keeps all", func(t *testing.T) {
		xs := []float64{5, 5, 5, 5}
		assert.Equal(t, []int{0, 1, 2, 3}, ZScoreFilter(xs, 2.0))
	})

	t.Run("drops a clear outlier", func(t *testing.T) {
		xs := []float64{100, 101, 99, 100, 500}
		// With five points no |z| can exceed 2 (500 scores 1.99998), so a
		// threshold below that is needed for the outlier to be dropped.
		kept := ZScoreFilter(xs, 1.5)
		assert.NotContains(t, kept, 4)
		assert.Contains(t, kept, 0)
	})
}

func TestIQRFilter(t *testing.T) {
	t.Run("too few points keeps all", func(t *testing.T) {
		xs := []float64{1, 2, 3}
		assert.Equal(t, []int{0, 1, 2}, IQRFilter(xs, 1.5))
	})

	t.Run("drops a clear outlier", func(t *testing.T) {
		xs := []float64{10, 11, 12, 13, 14, 1000}
		kept := IQRFilter(xs, 1.5)
		assert.NotContains(t, kept, 5)
	})
}

func TestMinMax(t *testing.T) {
	xs := []float64{3, -1, 7, 2}
	assert.Equal(t, -1.0, Min(xs))
	assert.Equal(t, 7.0, Max(xs))
}
