// dataset/aggregate.go
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/store"
	"github.com/masim/analysis/telemetry"
	"github.com/masim/analysis/utils"
	log "github.com/sirupsen/logrus"
)

// AggregateCache derives per (replicate, day) summaries from configuration
// datasets and keeps them on disk keyed by dataset name. A cached summary
// is returned as is for as long as the file exists; Refresh or Invalidate
// it after regenerating a dataset.
type AggregateCache struct {
	dir      string
	schema   models.Schema
	measure  models.Measure
	metrics  *telemetry.Metrics
	progress func(label string) utils.Progress
}

// NewAggregateCache stores summaries under dir. newProgress may be nil.
func NewAggregateCache(dir string, schema models.Schema, measure models.Measure, metrics *telemetry.Metrics, newProgress func(string) utils.Progress) *AggregateCache {
	if newProgress == nil {
		newProgress = func(string) utils.Progress { return &utils.Recorder{} }
	}
	return &AggregateCache{dir: dir, schema: schema, measure: measure, metrics: metrics, progress: newProgress}
}

// Path is the cache file for a dataset.
func (c *AggregateCache) Path(datasetPath string) string {
	return filepath.Join(c.dir, Name(datasetPath)+".summary.csv")
}

// Load returns the cached summary of datasetPath, building and persisting
// it first when no cache file exists.
func (c *AggregateCache) Load(datasetPath string) ([]models.SummaryRow, error) {
	path := c.Path(datasetPath)
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		c.metrics.CacheLookup("hit")
		if stale, _ := c.Stale(datasetPath); stale {
			log.WithField("dataset", datasetPath).Warn("Aggregate: cached summary is older than its dataset; use a refresh to rebuild it")
		}
		rows, err := ReadSummary(f, c.schema.Keys())
		if err != nil {
			return nil, fmt.Errorf("failed to read cached summary %s: %w", path, err)
		}
		return rows, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	c.metrics.CacheLookup("miss")
	return c.build(datasetPath)
}

// Refresh rebuilds the summary regardless of any cached file.
func (c *AggregateCache) Refresh(datasetPath string) ([]models.SummaryRow, error) {
	if err := c.Invalidate(datasetPath); err != nil {
		return nil, err
	}
	c.metrics.CacheLookup("refresh")
	return c.build(datasetPath)
}

// Invalidate removes the cached summary of a dataset, if any.
func (c *AggregateCache) Invalidate(datasetPath string) error {
	err := os.Remove(c.Path(datasetPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cached summary: %w", err)
	}
	return nil
}

// Stale reports whether the dataset was modified after its summary was
// written. Load only warns about it.
func (c *AggregateCache) Stale(datasetPath string) (bool, error) {
	cached, err := os.Stat(c.Path(datasetPath))
	if err != nil {
		return false, err
	}
	source, err := os.Stat(datasetPath)
	if err != nil {
		return false, err
	}
	return source.ModTime().After(cached.ModTime()), nil
}

func (c *AggregateCache) build(datasetPath string) ([]models.SummaryRow, error) {
	rows, err := ReadDataset(datasetPath, c.schema)
	if err != nil {
		return nil, err
	}
	progress := c.progress("Aggregating " + Name(datasetPath))
	summary := Aggregate(rows, c.schema, c.measure, progress)
	progress.Done()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	err = store.WriteFileAtomic(c.Path(datasetPath), func(w io.Writer) error {
		return WriteSummary(w, c.schema.Keys(), summary)
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

type pair struct{ replicate, day int64 }

// Aggregate sums district rows sharing a (replicate, day). Output is ordered
// by replicate, then day. progress advances once per replicate x day pair
// evaluated, present or not.
func Aggregate(rows []models.ReplicateRow, schema models.Schema, measure models.Measure, progress utils.Progress) []models.SummaryRow {
	keys := schema.Keys()
	sums := make(map[pair]*models.SummaryRow)
	var replicates, days []int64
	seenReplicate, seenDay := map[int64]bool{}, map[int64]bool{}

	for _, r := range rows {
		if !seenReplicate[r.ReplicateID] {
			seenReplicate[r.ReplicateID] = true
			replicates = append(replicates, r.ReplicateID)
		}
		if !seenDay[r.DaysElapsed] {
			seenDay[r.DaysElapsed] = true
			days = append(days, r.DaysElapsed)
		}
		p := pair{r.ReplicateID, r.DaysElapsed}
		s, ok := sums[p]
		if !ok {
			s = &models.SummaryRow{Replicate: r.ReplicateID, Days: r.DaysElapsed, Occurrences: make(map[string]float64, len(keys))}
			for _, k := range keys {
				s.Occurrences[k] = 0
			}
			sums[p] = s
		}
		s.Treatments += float64(r.Treatments)
		s.Failures += float64(r.Failures)
		s.Infections += float64(r.Infections)
		for i, k := range keys {
			s.Occurrences[k] += measure.Value(r.Genotypes[i])
		}
	}
	slices.Sort(replicates)
	slices.Sort(days)

	out := make([]models.SummaryRow, 0, len(sums))
	total, done := len(replicates)*len(days), 0
	for _, rep := range replicates {
		for _, day := range days {
			if s, ok := sums[pair{rep, day}]; ok {
				out = append(out, *s)
			}
			done++
			progress.Update(done, total)
		}
	}
	return out
}

// WriteSummary writes summary rows with a header.
func WriteSummary(w io.Writer, keys []string, rows []models.SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.SummaryHeader(keys)); err != nil {
		return err
	}
	rec := make([]string, 5+len(keys))
	for _, r := range rows {
		rec[0] = strconv.FormatInt(r.Replicate, 10)
		rec[1] = strconv.FormatInt(r.Days, 10)
		rec[2] = formatFloat(r.Treatments)
		rec[3] = formatFloat(r.Failures)
		rec[4] = formatFloat(r.Infections)
		for i, k := range keys {
			rec[5+i] = formatFloat(r.Occurrences[k])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSummary reads a summary written by WriteSummary. The header must list
// the same keys.
func ReadSummary(r io.Reader, keys []string) ([]models.SummaryRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("missing summary header: %w", err)
	}
	if !slices.Equal(header, models.SummaryHeader(keys)) {
		return nil, fmt.Errorf("summary header %v does not match tracked keys %v", header, keys)
	}
	var rows []models.SummaryRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, err
		}
		row := models.SummaryRow{Occurrences: make(map[string]float64, len(keys))}
		if row.Replicate, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: replicate: %w", line, err)
		}
		if row.Days, err = strconv.ParseInt(rec[1], 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: days: %w", line, err)
		}
		values := make([]float64, len(rec)-2)
		for i, s := range rec[2:] {
			if values[i], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, header[i+2], err)
			}
		}
		row.Treatments, row.Failures, row.Infections = values[0], values[1], values[2]
		for i, k := range keys {
			row.Occurrences[k] = values[3+i]
		}
		rows = append(rows, row)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
