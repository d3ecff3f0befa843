package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptiveStatistics(t *testing.T) {
	t.Parallel()

	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean, err := Mean(xs)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mean, 1e-12)

	pop, err := Variance(xs, 0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, pop, 1e-12)

	sample, err := Variance(xs, 1)
	require.NoError(t, err)
	assert.InDelta(t, 32.0/7.0, sample, 1e-12)

	sd, err := StdDev(xs, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sd, 1e-12)

	med, err := Median(xs)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, med, 1e-12)

	lo, err := Min(xs)
	require.NoError(t, err)
	hi, err := Max(xs)
	require.NoError(t, err)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
	assert.Equal(t, 40.0, Sum(xs))
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	t.Parallel()

	xs := []float64{4, 1, 3, 2}

	testCases := []struct {
		q    float64
		want float64
	}{
		{q: 0, want: 1},
		{q: 0.25, want: 1.75},
		{q: 0.5, want: 2.5},
		{q: 0.75, want: 3.25},
		{q: 1, want: 4},
	}
	for _, tc := range testCases {
		got, err := Quantile(xs, tc.q)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, got, 1e-12, "q=%v", tc.q)
	}

	_, err := Quantile(xs, 1.5)
	require.Error(t, err)
	assert.Equal(t, []float64{4, 1, 3, 2}, xs, "input must not be reordered")
}

func TestEmptyInputs(t *testing.T) {
	t.Parallel()

	_, err := Mean(nil)
	require.ErrorIs(t, err, ErrEmpty)
	_, err = Quantile(nil, 0.5)
	require.ErrorIs(t, err, ErrEmpty)

	v, err := Variance([]float64{3}, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestCorrelation(t *testing.T) {
	t.Parallel()

	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}
	zs := []float64{1, 4, 9, 16, 100}

	r, err := Correlation(xs, ys, Pearson)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	rho, err := Correlation(xs, zs, Spearman)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rho, 1e-12)

	c, err := Correlation(xs, []float64{3, 3, 3, 3, 3}, Pearson)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(c))

	_, err = Correlation(xs, ys, "kendall")
	require.ErrorContains(t, err, "unsupported correlation method")

	_, err = Correlation(xs, ys[:2], Pearson)
	require.Error(t, err)
}

func TestRanks_AveragesTies(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{1, 5, 5, 9}))
}

func TestZScores(t *testing.T) {
	t.Parallel()

	z, err := ZScores([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1, 0, 1}, z, 1e-12)

	z, err = ZScores([]float64{5, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, z)
}

func TestRound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3.142, Round(math.Pi, 3))
	assert.Equal(t, -2.3, Round(-2.25, 1))
	assert.Equal(t, 10.0, Round(9.99, 0))
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}
