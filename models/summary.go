// models/summary.go
package models

import "fmt"

// Measure selects which genotype counter feeds the summary occurrence columns.
type Measure string

const (
	MeasureOccurrences Measure = "occurrences"
	MeasureClinical    Measure = "clinical"
	MeasureWeighted    Measure = "weighted"
)

// ParseMeasure validates a configured measure name.
func ParseMeasure(s string) (Measure, error) {
	switch m := Measure(s); m {
	case MeasureOccurrences, MeasureClinical, MeasureWeighted:
		return m, nil
	case "":
		return MeasureOccurrences, nil
	}
	return "", fmt.Errorf("unknown occurrence measure %q", s)
}

// Value picks the counter for this measure.
func (m Measure) Value(g GenotypeCounts) float64 {
	switch m {
	case MeasureClinical:
		return float64(g.ClinicalOccurrences)
	case MeasureWeighted:
		return g.WeightedOccurrences
	}
	return float64(g.Occurrences)
}

// SummaryRow is the per (replicate, day) sum over all districts.
// Occurrences is keyed by mutation key, Either included.
type SummaryRow struct {
	Replicate   int64
	Days        int64
	Treatments  float64
	Failures    float64
	Infections  float64
	Occurrences map[string]float64
}

// SummaryHeader returns the aggregate cache file header for the given keys.
func SummaryHeader(keys []string) []string {
	return append([]string{"replicate", "days", "treatments", "failures", "infections"}, keys...)
}
