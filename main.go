// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/masim/analysis/config"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/telemetry"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg     *config.Config
	metrics *telemetry.Metrics
	runID   string
)

var rootCmd = &cobra.Command{
	Use:   "masim-analysis",
	Short: "Load, merge and report on MaSim simulation studies",
	Long: `masim-analysis copies completed replicates of a simulation study out of
the simulation database, merges them per configuration, caches national
summaries and renders the summary tables, charts and matrices.

Every stage can be rerun; replicates and summaries already on disk are reused.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := setupLogging(cfg.Logging.Level); err != nil {
			return err
		}
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		runID = uuid.NewString()
		metrics = telemetry.New()
		log.WithFields(log.Fields{"run": runID, "command": cmd.Name()}).Debug("Starting")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		DisableColors: !isatty.IsTerminal(os.Stderr.Fd()),
	})
	return nil
}

func schema() models.Schema {
	return models.NewSchema(cfg.MutationKeys()...)
}

// finish logs a stage report and turns item failures into the exit error.
func finish(report *models.Report) error {
	if report == nil {
		return nil
	}
	for _, f := range report.Failures() {
		log.Warnf("%s failed: %s", report.Stage, f)
	}
	log.WithFields(log.Fields{
		"done":   report.Count(models.StatusDone),
		"cached": report.Count(models.StatusCached),
		"failed": report.Count(models.StatusFailed),
	}).Infof("%s finished", report.Stage)
	if n := len(report.Failures()); n > 0 {
		return fmt.Errorf("%s: %d of %d items failed", report.Stage, n, len(report.Items))
	}
	return nil
}

// execute runs one command line and writes the metrics textfile whether or
// not the command succeeded, so failed runs still export their counters.
func execute(ctx context.Context, args []string) error {
	cfg, metrics = nil, nil
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cfg != nil {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Error(werr)
			err = errors.Join(err, werr)
		}
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}
