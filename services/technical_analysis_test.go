package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rsiTolerance = 1e-6

func TestComputeRSI(t *testing.T) {
	t.Run("matches wilder reference values", func(t *testing.T) {
		closes := []float64{
			44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08,
			45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64,
		}
		expected := []float64{
			71.8024106537, 71.8024106537, 65.1865989253, 65.5528219698,
			69.8756148897, 65.4528483016, 54.1792954205,
		}

		series := ComputeRSI(closes, 14)
		require.Len(t, series, len(closes))

		for i := 0; i < 13; i++ {
			assert.True(t, math.IsNaN(series[i]), "index %d should be undefined", i)
		}
		for i, want := range expected {
			assert.InDelta(t, want, series[13+i], rsiTolerance, "index %d", 13+i)
		}

		latest, ok := series.Latest()
		require.True(t, ok)
		assert.InDelta(t, 54.17929542054697, latest, 1e-9)
	})

	t.Run("short window", func(t *testing.T) {
		series := ComputeRSI([]float64{1, 2, 1, 2}, 2)
		require.Len(t, series, 4)
		assert.True(t, math.IsNaN(series[0]))
		assert.InDelta(t, 100.0, series[1], rsiTolerance)
		assert.InDelta(t, 33.3333333333, series[2], rsiTolerance)
		assert.InDelta(t, 71.4285714286, series[3], rsiTolerance)
	})

	t.Run("first defined entry at exactly window closes", func(t *testing.T) {
		series := ComputeRSI([]float64{10, 11, 12}, 3)
		assert.True(t, math.IsNaN(series[0]))
		assert.True(t, math.IsNaN(series[1]))
		assert.Equal(t, 100.0, series[2])
	})

	t.Run("only gains is 100", func(t *testing.T) {
		series := ComputeRSI([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 3)
		for _, v := range series[2:] {
			assert.Equal(t, 100.0, v)
		}
	})

	t.Run("only losses is 0", func(t *testing.T) {
		series := ComputeRSI([]float64{5, 4, 3, 2}, 2)
		assert.True(t, math.IsNaN(series[0]))
		assert.Equal(t, []float64{0, 0, 0}, []float64(series[1:]))
	})

	t.Run("flat prices are 100", func(t *testing.T) {
		series := ComputeRSI([]float64{3, 3, 3, 3}, 2)
		assert.Equal(t, 100.0, series[3])
	})

	t.Run("fewer closes than window", func(t *testing.T) {
		series := ComputeRSI([]float64{1, 2, 3}, 14)
		require.Len(t, series, 3)
		assert.Equal(t, 0, series.Defined())
		_, ok := series.Latest()
		assert.False(t, ok)
	})

	t.Run("empty input", func(t *testing.T) {
		series := ComputeRSI(nil, 14)
		assert.Empty(t, series)
		_, ok := series.Latest()
		assert.False(t, ok)
	})

	t.Run("window below one", func(t *testing.T) {
		series := ComputeRSI([]float64{1, 2, 3}, 0)
		require.Len(t, series, 3)
		assert.Equal(t, 0, series.Defined())
	})

	t.Run("bounded and deterministic", func(t *testing.T) {
		closes := []float64{10, 12, 9, 15, 14, 14, 20, 3, 8, 8.5, 11, 7, 30, 29, 31}
		first := ComputeRSI(closes, 5)
		second := ComputeRSI(closes, 5)

		for i, v := range first {
			if math.IsNaN(v) {
				assert.True(t, math.IsNaN(second[i]))
				continue
			}
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
			assert.Equal(t, v, second[i])
		}
		assert.Equal(t, len(closes)-4, first.Defined())
	})
}
