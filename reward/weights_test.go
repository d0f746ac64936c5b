package reward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeWeights(t *testing.T) {
	t.Parallel()
	t.Run("empty", func(t *testing.T) {
		require.Empty(t, NormalizeWeights(nil))
	})
	t.Run("best maps to one", func(t *testing.T) {
		w := NormalizeWeights([]float64{0.2, 0.9, 0.5})
		require.Equal(t, 1.0, w[1])
		require.Less(t, w[0], w[2])
		require.Less(t, w[2], w[1])
	})
	t.Run("monotone in trust", func(t *testing.T) {
		values := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
		w := NormalizeWeights(values)
		for i := 1; i < len(w); i++ {
			require.Greater(t, w[i], w[i-1])
		}
	})
	t.Run("zero variance degenerates to indicator", func(t *testing.T) {
		require.Equal(t, []float64{1, 1, 1}, NormalizeWeights([]float64{0.4, 0.4, 0.4}))
	})
	t.Run("weights are bounded", func(t *testing.T) {
		w := NormalizeWeights([]float64{0, 0.01, 0.99, 1})
		for _, v := range w {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
			require.False(t, math.IsNaN(v))
		}
	})
}
