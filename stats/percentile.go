// stats/percentile.go

// Package stats holds the metric calculators run over aggregate summaries:
// genotype frequencies, treatment failure percentages and the median / IQR
// bands reported for them.
package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Percentile returns the p-th percentile (0-100) of values, interpolating
// linearly between the two nearest order statistics. NaN is returned for an
// empty input, when any value is NaN, or when p is outside [0, 100].
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || floats.HasNaN(values) || !(p >= 0 && p <= 100) {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	h := float64(len(sorted)-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Summary is the median and interquartile range of a per-replicate sequence.
type Summary struct {
	Median float64
	Lower  float64
	Upper  float64
}

func Summarize(values []float64) Summary {
	return Summary{
		Median: Percentile(values, 50),
		Lower:  Percentile(values, 25),
		Upper:  Percentile(values, 75),
	}
}

// String renders the table cell form, e.g. "0.12 (0.10 - 0.15)".
func (s Summary) String() string {
	return fmt.Sprintf("%.2f (%.2f - %.2f)", s.Median, s.Lower, s.Upper)
}

// Finite reports whether all three values can be plotted.
func (s Summary) Finite() bool {
	for _, v := range []float64{s.Median, s.Lower, s.Upper} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
