// services/merge_service.go
package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/masim/analysis/dataset"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/store"
	"github.com/masim/analysis/telemetry"
	"github.com/masim/analysis/utils"
	log "github.com/sirupsen/logrus"
)

const stageMerge = "merge"

// MergeService builds one dataset per configuration from the replicate store.
type MergeService struct {
	merger     *dataset.Merger
	datasetDir string
	compress   bool
	metrics    *telemetry.Metrics
	progress   utils.ProgressFunc
}

func NewMergeService(st *store.ReplicateStore, datasetDir string, compress bool, metrics *telemetry.Metrics, progress utils.ProgressFunc) *MergeService {
	if progress == nil {
		progress = utils.Quiet
	}
	return &MergeService{merger: dataset.NewMerger(st), datasetDir: datasetDir, compress: compress, metrics: metrics, progress: progress}
}

// MergeAll groups replicates by configuration, in first-seen order, and
// rewrites each configuration's dataset from scratch. A configuration that
// cannot be merged is recorded and the others still are.
func (s *MergeService) MergeAll(ctx context.Context, replicates []models.Replicate) *models.Report {
	start := time.Now()
	report := models.NewReport(stageMerge)
	order, groups := models.GroupByConfiguration(replicates)
	for _, configuration := range order {
		if err := ctx.Err(); err != nil {
			report.Fail(configuration, configuration, err)
			break
		}
		name, err := dataset.FileName(configuration, s.compress)
		if err != nil {
			s.fail(report, configuration, configuration, err)
			continue
		}
		destination := filepath.Join(s.datasetDir, name)
		progress := s.progress(fmt.Sprintf("Merging %s", configuration))
		if err := s.merger.Merge(groups[configuration], destination, progress); err != nil {
			s.fail(report, name, configuration, err)
			continue
		}
		report.Add(name, configuration, models.StatusDone)
		log.WithFields(log.Fields{"configuration": configuration, "replicates": len(groups[configuration])}).Info("Merge: wrote ", destination)
	}
	s.metrics.StageDone(stageMerge, start, report.Err() == nil)
	return report
}

// MergeList merges the replicates recorded in a replicate list file.
func (s *MergeService) MergeList(ctx context.Context, listPath string) (*models.Report, error) {
	replicates, err := store.ReadReplicateList(listPath)
	if err != nil {
		return nil, err
	}
	return s.MergeAll(ctx, replicates), nil
}

func (s *MergeService) fail(report *models.Report, key, configuration string, err error) {
	report.Fail(key, configuration, err)
	s.metrics.ItemFailed(stageMerge)
	log.WithField("configuration", configuration).Errorf("Merge: %v", err)
}
