// services/loader_service.go
package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/store"
	"github.com/masim/analysis/telemetry"
	"github.com/masim/analysis/utils"
	log "github.com/sirupsen/logrus"
)

const stageLoad = "load"

// ReplicateSource is the simulation database as seen by the loader.
type ReplicateSource interface {
	ListReplicates(ctx context.Context, studyID int64) ([]models.Replicate, error)
	ReplicateRows(ctx context.Context, replicateID int64) ([]models.ReplicateRow, error)
}

// LoaderService copies completed replicates of a study into the replicate
// store. Replicates already stored are never fetched again, so an
// interrupted run resumes where it stopped.
type LoaderService struct {
	source   ReplicateSource
	store    *store.ReplicateStore
	listPath string
	metrics  *telemetry.Metrics
	progress utils.ProgressFunc
}

func NewLoaderService(source ReplicateSource, st *store.ReplicateStore, listPath string, metrics *telemetry.Metrics, progress utils.ProgressFunc) *LoaderService {
	if progress == nil {
		progress = utils.Quiet
	}
	return &LoaderService{source: source, store: st, listPath: listPath, metrics: metrics, progress: progress}
}

// Run lists the study's completed replicates, writes the replicate list
// file and stores every replicate not yet cached. A failing list query
// aborts the run; a failing replicate is recorded in the report and the
// loop moves on. Lost connections and cancellation abort as well.
func (s *LoaderService) Run(ctx context.Context, studyID int64) (*models.Report, error) {
	start := time.Now()
	report := models.NewReport(stageLoad)

	replicates, err := s.source.ListReplicates(ctx, studyID)
	if err != nil {
		s.metrics.StageDone(stageLoad, start, false)
		return report, err
	}
	if err := store.WriteReplicateList(s.listPath, replicates); err != nil {
		s.metrics.StageDone(stageLoad, start, false)
		return report, err
	}
	log.WithFields(log.Fields{"study": studyID, "replicates": len(replicates)}).Info("Loader: replicate list written to ", s.listPath)

	progress := s.progress("Loading replicates")
	for i, r := range replicates {
		key := strconv.FormatInt(r.ReplicateID, 10)
		if s.store.Exists(r.ReplicateID) {
			report.Add(key, r.Filename, models.StatusCached)
			s.metrics.ReplicateCached()
		} else if err := s.fetch(ctx, r.ReplicateID); err != nil {
			if aborts(err) {
				progress.Done()
				s.metrics.StageDone(stageLoad, start, false)
				return report, fmt.Errorf("replicate %d: %w", r.ReplicateID, err)
			}
			report.Fail(key, r.Filename, err)
			s.metrics.ItemFailed(stageLoad)
			log.WithFields(log.Fields{"replicate": r.ReplicateID, "configuration": r.Filename}).Errorf("Loader: %v", err)
		} else {
			report.Add(key, r.Filename, models.StatusDone)
			s.metrics.ReplicateFetched()
		}
		progress.Update(i+1, len(replicates))
	}
	progress.Done()

	log.WithFields(log.Fields{
		"fetched": report.Count(models.StatusDone),
		"cached":  report.Count(models.StatusCached),
		"failed":  report.Count(models.StatusFailed),
	}).Info("Loader: done")
	s.metrics.StageDone(stageLoad, start, report.Err() == nil)
	return report, nil
}

func (s *LoaderService) fetch(ctx context.Context, replicateID int64) error {
	rows, err := s.source.ReplicateRows(ctx, replicateID)
	if err != nil {
		return err
	}
	return s.store.Write(replicateID, rows)
}

func aborts(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn)
}
