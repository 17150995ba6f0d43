// services/summary_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/report"
	"github.com/masim/analysis/stats"
	"github.com/masim/analysis/telemetry"
)

const (
	stageSummary = "summary"
	// annual windows reported in the summary tables
	summaryYears = 15
)

// SummaryService writes the treatment failure and frequency tables.
type SummaryService struct {
	modelYear int
	keys      []string
	metrics   *telemetry.Metrics
}

func NewSummaryService(modelYear int, schema models.Schema, metrics *telemetry.Metrics) *SummaryService {
	return &SummaryService{modelYear: modelYear, keys: schema.Keys(), metrics: metrics}
}

// Generate emits treatment_failures.csv and one <key>.csv per tracked key.
// Windows are taken from the first configuration's reported days.
func (s *SummaryService) Generate(ctx context.Context, emitter *report.Emitter, configs []report.Configuration) (*models.Report, error) {
	start := time.Now()
	rep := models.NewReport(stageSummary)
	if len(configs) == 0 {
		s.metrics.StageDone(stageSummary, start, false)
		return rep, fmt.Errorf("no configurations to summarize")
	}
	spans, points := stats.TimeSpans(stats.Days(configs[0].Rows), summaryYears)

	key := "summary/treatment_failures.csv"
	err := emitter.Emit(ctx, key, "Treatment failures", func(w io.Writer) error {
		return report.TreatmentFailureTable(w, s.modelYear, configs, spans)
	})
	s.record(rep, key, err)

	for _, mutation := range s.keys {
		key := fmt.Sprintf("summary/%s.csv", mutation)
		err := emitter.Emit(ctx, key, fmt.Sprintf("%s frequency", mutation), func(w io.Writer) error {
			return report.FrequencyTable(w, s.modelYear, mutation, configs, points)
		})
		s.record(rep, key, err)
	}
	s.metrics.StageDone(stageSummary, start, rep.Err() == nil)
	return rep, nil
}

func (s *SummaryService) record(rep *models.Report, key string, err error) {
	if err != nil {
		rep.Fail(key, "", err)
		s.metrics.ItemFailed(stageSummary)
		return
	}
	rep.Add(key, "", models.StatusDone)
}
