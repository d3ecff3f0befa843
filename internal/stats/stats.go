// Package stats provides the numeric helpers exposed to analysis modules.
// Functions operate on plain float64 slices; callers strip nulls first.
package stats

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrEmpty is returned when a statistic needs at least one value.
var ErrEmpty = errors.New("no values")

// Mean returns the arithmetic mean.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	return stat.Mean(xs, nil), nil
}

// Variance returns the variance with the given delta degrees of freedom
// (1 for the sample variance, 0 for the population variance). Fewer than
// ddof+1 values yield NaN.
func Variance(xs []float64, ddof int) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	if ddof < 0 {
		return 0, fmt.Errorf("ddof must be non-negative, got %d", ddof)
	}
	n := len(xs)
	if n-ddof <= 0 {
		return math.NaN(), nil
	}
	if n == 1 {
		return 0, nil
	}
	// stat.Variance is the unbiased estimator (n-1 denominator).
	v := stat.Variance(xs, nil)
	return v * float64(n-1) / float64(n-ddof), nil
}

// StdDev returns the square root of Variance.
func StdDev(xs []float64, ddof int) (float64, error) {
	v, err := Variance(xs, ddof)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Quantile returns the q-th quantile using linear interpolation between the
// closest ranks.
func Quantile(xs []float64, q float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, fmt.Errorf("quantile must be within [0, 1], got %v", q)
	}
	sorted := slices.Clone(xs)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// Median returns the 0.5 quantile.
func Median(xs []float64) (float64, error) {
	return Quantile(xs, 0.5)
}

// Min returns the smallest value.
func Min(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	return slices.Min(xs), nil
}

// Max returns the largest value.
func Max(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmpty
	}
	return slices.Max(xs), nil
}

// Sum returns the sum of the values, zero for an empty slice.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// Method selects a correlation coefficient.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// Correlation returns the correlation coefficient of two equally long
// samples. A constant sample yields NaN.
func Correlation(xs, ys []float64, method Method) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("samples differ in length: %d != %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return math.NaN(), nil
	}
	switch method {
	case Pearson, "":
	case Spearman:
		xs, ys = Ranks(xs), Ranks(ys)
	default:
		return 0, fmt.Errorf("unsupported correlation method %q", method)
	}
	if constant(xs) || constant(ys) {
		return math.NaN(), nil
	}
	return stat.Correlation(xs, ys, nil), nil
}

// Ranks returns the 1-based ranks of xs, assigning tied values their average
// rank.
func Ranks(xs []float64) []float64 {
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	ranks := make([]float64, len(xs))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && xs[order[j+1]] == xs[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// ZScores standardizes xs with the sample standard deviation. A constant
// sample yields all zeros.
func ZScores(xs []float64) ([]float64, error) {
	mean, err := Mean(xs)
	if err != nil {
		return nil, err
	}
	sd, err := StdDev(xs, 1)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(xs))
	if sd == 0 || math.IsNaN(sd) {
		return out, nil
	}
	for i, x := range xs {
		out[i] = (x - mean) / sd
	}
	return out, nil
}

// Round rounds x to the given number of decimal places, halves away from
// zero.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}

func constant(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
