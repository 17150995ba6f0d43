// stats/metrics.go
package stats

import (
	"math"
	"slices"

	"github.com/masim/analysis/models"
	"gonum.org/v1/gonum/floats"
)

// DayRange is an inclusive span of elapsed days.
type DayRange struct {
	First int64
	Last  int64
}

func (r DayRange) Contains(day int64) bool {
	return day >= r.First && day <= r.Last
}

// Point is the single day range {day, day}.
func Point(day int64) DayRange {
	return DayRange{First: day, Last: day}
}

// Frequency returns, for every replicate reporting the given day, the key's
// summed occurrences divided by summed infections. Values are in ascending
// replicate order. Zero infections yield NaN or Inf, which is left for the
// caller to see.
func Frequency(rows []models.SummaryRow, key string, day int64) []float64 {
	byReplicate := make(map[int64]models.SummaryRow)
	for _, r := range rows {
		if r.Days == day {
			byReplicate[r.Replicate] = r
		}
	}
	out := make([]float64, 0, len(byReplicate))
	for _, rep := range sortedKeys(byReplicate) {
		out = append(out, occurrences(byReplicate[rep], key)/byReplicate[rep].Infections)
	}
	return out
}

// occurrences returns the key's count, or NaN when the row does not carry
// the key so a mistyped key surfaces like a zero division.
func occurrences(r models.SummaryRow, key string) float64 {
	v, ok := r.Occurrences[key]
	if !ok {
		return math.NaN()
	}
	return v
}

// TreatmentFailurePercentage returns 100 x failures / treatments summed over
// the day range, one value per replicate in ascending replicate order.
// Replicates with no rows inside the range are omitted.
func TreatmentFailurePercentage(rows []models.SummaryRow, span DayRange) []float64 {
	failures := make(map[int64][]float64)
	treatments := make(map[int64][]float64)
	for _, r := range rows {
		if !span.Contains(r.Days) {
			continue
		}
		failures[r.Replicate] = append(failures[r.Replicate], r.Failures)
		treatments[r.Replicate] = append(treatments[r.Replicate], r.Treatments)
	}
	out := make([]float64, 0, len(failures))
	for _, rep := range sortedKeys(failures) {
		out = append(out, 100*floats.Sum(failures[rep])/floats.Sum(treatments[rep]))
	}
	return out
}

// Replicates returns the distinct replicate ids, ascending.
func Replicates(rows []models.SummaryRow) []int64 {
	seen := make(map[int64]struct{})
	for _, r := range rows {
		seen[r.Replicate] = struct{}{}
	}
	return sortedKeys(seen)
}

// Days returns the distinct elapsed days, ascending.
func Days(rows []models.SummaryRow) []int64 {
	seen := make(map[int64]struct{})
	for _, r := range rows {
		seen[r.Days] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
