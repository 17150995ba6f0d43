// cmd_report.go
package main

import (
	"context"
	"fmt"

	"github.com/masim/analysis/blob"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/refdata"
	"github.com/masim/analysis/report"
	"github.com/masim/analysis/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type reportKind string

const (
	summaryReport reportKind = "summary"
	plotReport    reportKind = "plot"
	exportReport  reportKind = "export"
)

var allReports = []reportKind{summaryReport, plotReport, exportReport}

var noReference bool

func reportCommand(use, short string, kinds ...reportKind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReports(cmd, kinds)
		},
	}
}

var (
	summaryCmd = reportCommand("summary", "Write the treatment failure and frequency summary tables", summaryReport)
	plotCmd    = reportCommand("plot", "Render the frequency charts and endpoint box summaries", plotReport)
	exportCmd  = reportCommand("export", "Write replicate x day frequency matrices as .npy files", exportReport)
	reportCmd  = reportCommand("report", "Write every table, chart and matrix with one index", allReports...)
)

// runReports loads the aggregate summaries once and renders the requested
// artifacts into the configured sink, then writes the index.
func runReports(cmd *cobra.Command, kinds []reportKind) error {
	ctx := cmd.Context()
	catalog, err := newCatalog()
	if err != nil {
		return err
	}
	configs, aggregated := catalog.Configurations(refresh)
	if err := finish(aggregated); err != nil {
		log.Warnf("continuing with %d configurations: %v", len(configs), err)
	}
	if len(configs) == 0 {
		return fmt.Errorf("no configuration summaries to report on")
	}

	sink, err := blob.Open(ctx, cfg.Publish, cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	emitter := report.NewEmitter(sink, fmt.Sprintf("Study %d", cfg.Study.ID), runID)

	var failed error
	for _, kind := range kinds {
		rep, err := generate(ctx, kind, emitter, catalog, configs)
		if err == nil {
			err = finish(rep)
		}
		if err != nil {
			log.Errorf("%s: %v", kind, err)
			failed = fmt.Errorf("%s: %w", kind, err)
		}
	}
	if err := emitter.Close(ctx); err != nil {
		return err
	}
	log.WithField("index", sink.Location("index.html")).Infof("%d artifacts written", len(emitter.Artifacts()))
	return failed
}

func generate(ctx context.Context, kind reportKind, emitter *report.Emitter, catalog *services.Catalog, configs []report.Configuration) (*models.Report, error) {
	s := schema()
	switch kind {
	case summaryReport:
		return services.NewSummaryService(cfg.Study.ModelYear, s, metrics).Generate(ctx, emitter, configs)
	case plotReport:
		measure, err := models.ParseMeasure(cfg.Study.Measure)
		if err != nil {
			return nil, err
		}
		var reference services.ReferenceData
		if !noReference && cfg.Reference.DistrictsMapping != "" {
			reference = refdata.NewSource(cfg.Reference, nil)
		}
		return services.NewPlotService(cfg.Study.ModelYear, s, measure, reference, catalog, metrics).Generate(ctx, emitter, configs), nil
	case exportReport:
		return services.NewExportService(s, metrics).Generate(ctx, emitter, configs), nil
	}
	return nil, fmt.Errorf("unknown report %q", kind)
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Copy the local output directory to the configured object store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if blob.Driver(cfg.Publish.Driver) != blob.DriverS3 {
			return fmt.Errorf("publish needs publish.driver s3, reports already live in %s", cfg.Paths.OutputDir)
		}
		sink, err := blob.Open(cmd.Context(), cfg.Publish, cfg.Paths.OutputDir)
		if err != nil {
			return err
		}
		n, err := blob.PublishDir(cmd.Context(), sink, cfg.Paths.OutputDir)
		if err != nil {
			return err
		}
		log.WithField("destination", sink.Location("")).Infof("published %d files", n)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{plotCmd, reportCmd, runCmd} {
		c.Flags().BoolVar(&noReference, "no-reference", false, "skip district charts and reference points")
	}
	for _, c := range []*cobra.Command{summaryCmd, plotCmd, exportCmd, reportCmd} {
		c.Flags().BoolVar(&refresh, "refresh", false, "discard cached summaries and rebuild them")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(publishCmd)
}
