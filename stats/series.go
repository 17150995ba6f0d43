// stats/series.go
package stats

import (
	"math"
	"sort"

	"github.com/masim/analysis/models"
)

// Series is a median / IQR band per day.
type Series struct {
	Days  []int64
	Bands []Summary
}

// FrequencySeries summarizes the key's frequency across replicates for
// every day present in rows.
func FrequencySeries(rows []models.SummaryRow, key string) Series {
	days := Days(rows)
	s := Series{Days: days, Bands: make([]Summary, len(days))}
	for i, day := range days {
		s.Bands[i] = Summarize(Frequency(rows, key, day))
	}
	return s
}

// DistrictFrequencySeries is FrequencySeries restricted to one district of
// a configuration dataset. The key's counter is picked by measure.
func DistrictFrequencySeries(rows []models.ReplicateRow, schema models.Schema, measure models.Measure, key string, district int64) (Series, bool) {
	index, ok := schema.KeyIndex(key)
	if !ok {
		return Series{}, false
	}
	perDay := make(map[int64][]float64)
	for _, r := range rows {
		if r.District != district {
			continue
		}
		perDay[r.DaysElapsed] = append(perDay[r.DaysElapsed],
			measure.Value(r.Genotypes[index])/float64(r.Infections))
	}
	days := sortedKeys(perDay)
	s := Series{Days: days, Bands: make([]Summary, len(days))}
	for i, day := range days {
		s.Bands[i] = Summarize(perDay[day])
	}
	return s, len(days) > 0
}

// Trace is one replicate's frequency over its reported days.
type Trace struct {
	Replicate int64
	Days      []int64
	Values    []float64
}

// DistrictReplicateTraces is the key's frequency in one district, one trace
// per replicate in replicate order.
func DistrictReplicateTraces(rows []models.ReplicateRow, schema models.Schema, measure models.Measure, key string, district int64) ([]Trace, bool) {
	index, ok := schema.KeyIndex(key)
	if !ok {
		return nil, false
	}
	byReplicate := make(map[int64]*Trace)
	for _, r := range rows {
		if r.District != district {
			continue
		}
		t, ok := byReplicate[r.ReplicateID]
		if !ok {
			t = &Trace{Replicate: r.ReplicateID}
			byReplicate[r.ReplicateID] = t
		}
		t.Days = append(t.Days, r.DaysElapsed)
		t.Values = append(t.Values, measure.Value(r.Genotypes[index])/float64(r.Infections))
	}
	traces := make([]Trace, 0, len(byReplicate))
	for _, rep := range sortedKeys(byReplicate) {
		t := byReplicate[rep]
		sort.Sort(byDay{t})
		traces = append(traces, *t)
	}
	return traces, len(traces) > 0
}

type byDay struct{ *Trace }

func (b byDay) Len() int           { return len(b.Days) }
func (b byDay) Less(i, j int) bool { return b.Days[i] < b.Days[j] }
func (b byDay) Swap(i, j int) {
	b.Days[i], b.Days[j] = b.Days[j], b.Days[i]
	b.Values[i], b.Values[j] = b.Values[j], b.Values[i]
}

// FrequencyMatrix lays the key's frequency out as replicates x days. Cells
// for a missing (replicate, day) pair are NaN.
func FrequencyMatrix(rows []models.SummaryRow, key string) (replicates, days []int64, values [][]float64) {
	replicates, days = Replicates(rows), Days(rows)
	rowIndex := make(map[int64]int, len(replicates))
	for i, rep := range replicates {
		rowIndex[rep] = i
	}
	colIndex := make(map[int64]int, len(days))
	for j, day := range days {
		colIndex[day] = j
	}
	values = make([][]float64, len(replicates))
	for i := range values {
		values[i] = make([]float64, len(days))
		for j := range values[i] {
			values[i][j] = math.NaN()
		}
	}
	for _, r := range rows {
		values[rowIndex[r.Replicate]][colIndex[r.Days]] = occurrences(r, key) / r.Infections
	}
	return replicates, days, values
}
