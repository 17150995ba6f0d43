// cmd_pipeline.go
package main

import (
	"errors"
	"fmt"

	"github.com/masim/analysis/database"
	"github.com/masim/analysis/dataset"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/services"
	"github.com/masim/analysis/store"
	"github.com/masim/analysis/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	studyID int64
	refresh bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Copy the study's completed replicates into the replicate store",
	Long: `Lists the completed replicates of the study, writes the replicate list
and fetches every replicate not already stored. Interrupted runs resume
where they stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := load(cmd)
		if err != nil {
			return err
		}
		return finish(report)
	},
}

// load fetches the study's replicates. The error is reserved for stage
// failures; per-replicate failures are in the report.
func load(cmd *cobra.Command) (*models.Report, error) {
	if cmd.Flags().Changed("study") {
		cfg.Study.ID = studyID
	}
	db, err := database.Open(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	loader, err := newLoader(db)
	if err != nil {
		return nil, err
	}
	return loader.Run(cmd.Context(), cfg.Study.ID)
}

func newLoader(db database.Querier) (*services.LoaderService, error) {
	s := schema()
	source, err := database.NewReplicateSource(db, cfg, s)
	if err != nil {
		return nil, err
	}
	st := store.NewReplicateStore(cfg.Paths.ReplicateDir, s)
	return services.NewLoaderService(source, st, cfg.Paths.ReplicateList, metrics, utils.LogProgress), nil
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge stored replicates into one dataset per configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := merge(cmd)
		if err != nil {
			return err
		}
		return finish(report)
	},
}

func merge(cmd *cobra.Command) (*models.Report, error) {
	st := store.NewReplicateStore(cfg.Paths.ReplicateDir, schema())
	merger := services.NewMergeService(st, cfg.Paths.DatasetDir, cfg.Paths.Compress, metrics, utils.LogProgress)
	return merger.MergeList(cmd.Context(), cfg.Paths.ReplicateList)
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [configuration...]",
	Short: "Build or reuse the cached national summary of each dataset",
	Long: `Without arguments every dataset is summarized, reusing cached summaries
unless --refresh is given. With arguments only the named configurations
are rebuilt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := newCatalog()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, report := catalog.Configurations(refresh)
			return finish(report)
		}
		report := models.NewReport("aggregate")
		for _, name := range args {
			if err := catalog.Refresh(name); err != nil {
				report.Fail(name, name, err)
				continue
			}
			report.Add(name, name, models.StatusDone)
		}
		return finish(report)
	},
}

func newCatalog() (*services.Catalog, error) {
	measure, err := models.ParseMeasure(cfg.Study.Measure)
	if err != nil {
		return nil, err
	}
	cache := dataset.NewAggregateCache(cfg.Paths.CacheDir, schema(), measure, metrics, utils.LogProgress)
	return services.NewCatalog(cfg, cache, metrics), nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load, merge, aggregate and report in one go",
	Long: `Runs every stage in order. Replicates that fail to load or merge are
logged and skipped so the remaining configurations still get their
datasets and reports; the command exits non-zero if any item failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed []error
		for _, stage := range []struct {
			name string
			run  func(*cobra.Command) (*models.Report, error)
		}{{"load", load}, {"merge", merge}} {
			report, err := stage.run(cmd)
			if err != nil {
				return fmt.Errorf("%s: %w", stage.name, err)
			}
			failed = append(failed, finish(report))
		}
		if err := runReports(cmd, allReports); err != nil {
			log.Errorf("report: %v", err)
			failed = append(failed, err)
		}
		return errors.Join(failed...)
	},
}

func init() {
	loadCmd.Flags().Int64Var(&studyID, "study", 0, "study id (defaults to study.id from the configuration)")
	runCmd.Flags().Int64Var(&studyID, "study", 0, "study id (defaults to study.id from the configuration)")
	aggregateCmd.Flags().BoolVar(&refresh, "refresh", false, "discard cached summaries and rebuild them")
	runCmd.Flags().BoolVar(&refresh, "refresh", false, "discard cached summaries and rebuild them")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(runCmd)
}
