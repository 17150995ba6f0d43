// services/export_service.go
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
	log "github.com/sirupsen/logrus"
)

const stageExport = "export"

// ExportService writes replicate x day frequency matrices as .npy files,
// with the replicate ids and days as separate vectors.
type ExportService struct {
	keys    []string
	metrics *telemetry.Metrics
}

func NewExportService(schema models.Schema, metrics *telemetry.Metrics) *ExportService {
	return &ExportService{keys: schema.Keys(), metrics: metrics}
}

func (s *ExportService) Generate(ctx context.Context, emitter *report.Emitter, configs []report.Configuration) *models.Report {
	start := time.Now()
	rep := models.NewReport(stageExport)
	for _, c := range configs {
		configuration := c.Dataset + ".yml"
		var replicates, days []int64
		for _, key := range s.keys {
			var values [][]float64
			replicates, days, values = stats.FrequencyMatrix(c.Rows, key)
			name := fmt.Sprintf("numpy/%s-%s.npy", c.Dataset, key)
			err := emitter.Emit(ctx, name, fmt.Sprintf("%s, %s frequency matrix", c.Label, key), func(w io.Writer) error {
				return report.WriteMatrix(w, values)
			})
			s.record(rep, name, configuration, err)
		}
		axes := []struct {
			suffix string
			values []int64
		}{{"replicates", replicates}, {"days", days}}
		for _, axis := range axes {
			name := fmt.Sprintf("numpy/%s-%s.npy", c.Dataset, axis.suffix)
			err := emitter.Emit(ctx, name, fmt.Sprintf("%s, %s", c.Label, axis.suffix), func(w io.Writer) error {
				return report.WriteVector(w, axis.values)
			})
			s.record(rep, name, configuration, err)
		}
	}
	s.metrics.StageDone(stageExport, start, rep.Err() == nil)
	return rep
}

func (s *ExportService) record(rep *models.Report, key, configuration string, err error) {
	if err != nil {
		rep.Fail(key, configuration, err)
		s.metrics.ItemFailed(stageExport)
		log.WithField("artifact", key).Errorf("Export: %v", err)
		return
	}
	rep.Add(key, configuration, models.StatusDone)
}
