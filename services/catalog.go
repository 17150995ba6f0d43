// services/catalog.go
package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/masim/analysis/config"
	"github.com/masim/analysis/dataset"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/report"
	"github.com/masim/analysis/telemetry"
	log "github.com/sirupsen/logrus"
)

const stageAggregate = "aggregate"

// Catalog finds configuration datasets and their aggregate summaries.
// Datasets are the configured labels in order, or every dataset file in
// the dataset directory when no labels are configured.
type Catalog struct {
	cfg     *config.Config
	cache   *dataset.AggregateCache
	metrics *telemetry.Metrics
}

func NewCatalog(cfg *config.Config, cache *dataset.AggregateCache, metrics *telemetry.Metrics) *Catalog {
	return &Catalog{cfg: cfg, cache: cache, metrics: metrics}
}

// Names lists the dataset names to report on.
func (c *Catalog) Names() ([]string, error) {
	if len(c.cfg.Labels) > 0 {
		names := make([]string, len(c.cfg.Labels))
		for i, l := range c.cfg.Labels {
			names[i] = l.Dataset
		}
		return names, nil
	}
	entries, err := os.ReadDir(c.cfg.Paths.DatasetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !(strings.HasSuffix(n, ".csv") || strings.HasSuffix(n, ".csv.gz")) {
			continue
		}
		names = append(names, dataset.Name(n))
	}
	return slices.Compact(names), nil
}

// Path resolves a dataset name, or a configuration filename, to its file.
func (c *Catalog) Path(name string) (string, error) {
	if strings.HasSuffix(name, ".yml") {
		name = strings.TrimSuffix(filepath.Base(name), ".yml")
	}
	name = dataset.Name(name)
	for _, candidate := range []string{name + ".csv", name + ".csv.gz"} {
		p := filepath.Join(c.cfg.Paths.DatasetDir, candidate)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no dataset for %s in %s", name, c.cfg.Paths.DatasetDir)
}

// Refresh rebuilds the aggregate summary of one dataset.
func (c *Catalog) Refresh(name string) error {
	p, err := c.Path(name)
	if err != nil {
		return err
	}
	_, err = c.cache.Refresh(p)
	return err
}

// Configurations loads the summary of every dataset, rebuilding the cached
// summaries first when refresh is set. Datasets that fail are recorded in
// the report and left out.
func (c *Catalog) Configurations(refresh bool) ([]report.Configuration, *models.Report) {
	start := time.Now()
	rep := models.NewReport(stageAggregate)
	names, err := c.Names()
	if err != nil {
		rep.Fail(c.cfg.Paths.DatasetDir, "", err)
		c.metrics.StageDone(stageAggregate, start, false)
		return nil, rep
	}
	var configs []report.Configuration
	for _, name := range names {
		rows, status, err := c.summary(name, refresh)
		if err != nil {
			rep.Fail(name, name+".yml", err)
			c.metrics.ItemFailed(stageAggregate)
			log.WithField("dataset", name).Errorf("Aggregate: %v", err)
			continue
		}
		rep.Add(name, name+".yml", status)
		label, color := c.cfg.LabelFor(name)
		configs = append(configs, report.Configuration{Dataset: name, Label: label, Color: color, Rows: rows})
	}
	c.metrics.StageDone(stageAggregate, start, rep.Err() == nil)
	return configs, rep
}

func (c *Catalog) summary(name string, refresh bool) ([]models.SummaryRow, models.Status, error) {
	p, err := c.Path(name)
	if err != nil {
		return nil, models.StatusFailed, err
	}
	if refresh {
		rows, err := c.cache.Refresh(p)
		return rows, models.StatusDone, err
	}
	status := models.StatusDone
	if _, err := os.Stat(c.cache.Path(p)); err == nil {
		status = models.StatusCached
	}
	rows, err := c.cache.Load(p)
	return rows, status, err
}

// Dataset reads the district-level rows of one dataset.
func (c *Catalog) Dataset(name string, schema models.Schema) ([]models.ReplicateRow, error) {
	p, err := c.Path(name)
	if err != nil {
		return nil, err
	}
	return dataset.ReadDataset(p, schema)
}
