// services/plot_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"time"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/refdata"
	"github.com/masim/analysis/report"
	"github.com/masim/analysis/stats"
	"github.com/masim/analysis/telemetry"
	log "github.com/sirupsen/logrus"
)

const stagePlot = "plot"

// ReferenceData supplies the survey points drawn over simulated frequencies.
type ReferenceData interface {
	Districts(ctx context.Context) (*refdata.DistrictMap, error)
	MutationPoints(ctx context.Context, key string) ([]models.MutationPoint, error)
}

// DatasetReader returns the district-level rows of a dataset.
type DatasetReader interface {
	Dataset(name string, schema models.Schema) ([]models.ReplicateRow, error)
}

// PlotService renders the national and district frequency charts and the
// endpoint box summaries.
type PlotService struct {
	modelYear int
	schema    models.Schema
	measure   models.Measure
	reference ReferenceData
	datasets  DatasetReader
	metrics   *telemetry.Metrics
}

func NewPlotService(modelYear int, schema models.Schema, measure models.Measure, reference ReferenceData, datasets DatasetReader, metrics *telemetry.Metrics) *PlotService {
	return &PlotService{modelYear: modelYear, schema: schema, measure: measure, reference: reference, datasets: datasets, metrics: metrics}
}

// Generate emits every chart. Charts that fail are recorded and skipped.
// District charts are left out when reference is nil.
func (s *PlotService) Generate(ctx context.Context, emitter *report.Emitter, configs []report.Configuration) *models.Report {
	start := time.Now()
	rep := models.NewReport(stagePlot)
	for i, c := range configs {
		s.national(ctx, emitter, rep, c, configColor(c, i))
	}
	if s.reference != nil {
		s.districts(ctx, emitter, rep, configs)
	}
	s.endpoints(ctx, emitter, rep, configs)
	s.metrics.StageDone(stagePlot, start, rep.Err() == nil)
	return rep
}

func configColor(c report.Configuration, i int) color.Color {
	return report.ParseColor(c.Color, report.PaletteColor(i))
}

func titles(label, key string) (title, ylabel string) {
	if key == models.Either {
		return fmt.Sprintf("%s / Total ART Resistance", label), "Total ART Resistance Frequency"
	}
	return fmt.Sprintf("%s, %s", label, key), fmt.Sprintf("%s Frequency", key)
}

func (s *PlotService) national(ctx context.Context, emitter *report.Emitter, rep *models.Report, c report.Configuration, col color.Color) {
	for _, key := range s.schema.Keys() {
		name := fmt.Sprintf("median/%s-national-%s.png", c.Dataset, key)
		title, ylabel := titles(c.Label, key)
		p, err := report.FrequencyChart(title, ylabel, s.modelYear, stats.FrequencySeries(c.Rows, key), nil, col)
		if err == nil {
			err = emitter.EmitPlot(ctx, name, p)
		}
		s.record(rep, name, c.Dataset, err)
	}
}

func (s *PlotService) districts(ctx context.Context, emitter *report.Emitter, rep *models.Report, configs []report.Configuration) {
	mapping, err := s.reference.Districts(ctx)
	if err != nil {
		s.record(rep, "districts", "", fmt.Errorf("district mapping: %w", err))
		return
	}
	points := make(map[string][]models.MutationPoint)
	for _, key := range s.schema.Keys() {
		p, err := s.reference.MutationPoints(ctx, key)
		if err != nil {
			s.record(rep, "reference "+key, "", err)
			continue
		}
		points[key] = p
	}

	for i, c := range configs {
		rows, err := s.datasets.Dataset(c.Dataset, s.schema)
		if err != nil {
			s.record(rep, "median/"+c.Dataset, c.Dataset, err)
			continue
		}
		for _, key := range s.schema.Keys() {
			reference, ok := points[key]
			if !ok {
				continue
			}
			title, ylabel := titles(c.Label, key)
			panels, err := s.panels(rows, key, reference, mapping)
			for _, view := range []districtView{medianView, spaghettiView} {
				name := fmt.Sprintf("%s/%s-%s.png", view, c.Dataset, key)
				if err != nil {
					s.record(rep, name, c.Dataset, err)
					continue
				}
				grid := view.of(panels)
				emitted := emitter.Emit(ctx, name, title, func(w io.Writer) error {
					return report.WriteDistrictGrid(w, title, ylabel, s.modelYear, grid, configColor(c, i))
				})
				s.record(rep, name, c.Dataset, emitted)
			}
		}
	}
}

// districtView picks what the district grids draw: the median band across
// replicates, or one line per replicate.
type districtView string

const (
	medianView    districtView = "median"
	spaghettiView districtView = "spaghetti"
)

func (v districtView) of(panels []report.Panel) []report.Panel {
	out := make([]report.Panel, len(panels))
	for i, p := range panels {
		if v == spaghettiView {
			p.Series = stats.Series{}
		} else {
			p.Traces = nil
		}
		out[i] = p
	}
	return out
}

// panels builds one panel per district with its band, replicate traces
// and reference points. Survey points are not drawn for the combined key,
// whose reference set only picks the districts.
func (s *PlotService) panels(rows []models.ReplicateRow, key string, reference []models.MutationPoint, mapping *refdata.DistrictMap) ([]report.Panel, error) {
	var panels []report.Panel
	var missing []error
	for _, district := range refdata.DistrictsOf(reference) {
		id, err := mapping.ID(district)
		if err != nil {
			missing = append(missing, err)
			continue
		}
		series, ok := stats.DistrictFrequencySeries(rows, s.schema, s.measure, key, id)
		if !ok {
			missing = append(missing, fmt.Errorf("no rows for district %s (%d)", district, id))
			continue
		}
		traces, _ := stats.DistrictReplicateTraces(rows, s.schema, s.measure, key, id)
		panel := report.Panel{Title: district, Series: series, Traces: traces}
		if key != models.Either {
			panel.Points = refdata.PointsFor(reference, district)
		}
		panels = append(panels, panel)
	}
	for _, err := range missing {
		log.WithField("key", key).Warnf("Plot: %v", err)
	}
	if len(panels) == 0 {
		return nil, errors.Join(append(missing, fmt.Errorf("no districts to plot"))...)
	}
	return panels, nil
}

func (s *PlotService) endpoints(ctx context.Context, emitter *report.Emitter, rep *models.Report, configs []report.Configuration) {
	if len(configs) == 0 {
		return
	}
	days := stats.Days(configs[0].Rows)
	for _, e := range stats.Endpoints {
		window, err := e.Window(days)
		if err != nil {
			s.record(rep, fmt.Sprintf("endpoint %s", e.Name), "", err)
			continue
		}
		log.Infof("Plot: %s year endpoint covers %s to %s", e.Name,
			stats.ModelDate(s.modelYear, window.First).Format("2006-01"),
			stats.ModelDate(s.modelYear, window.Last).Format("2006-01"))

		failures := make([]report.Group, len(configs))
		for i, c := range configs {
			failures[i] = report.Group{Label: c.Label, Color: configColor(c, i), Values: stats.TreatmentFailurePercentage(c.Rows, window)}
		}
		name := fmt.Sprintf("violin/treatment-failures-%d-year.png", e.Years)
		s.box(ctx, emitter, rep, name, fmt.Sprintf("Treatment failures, %d year", e.Years), "Percent Treatment Failures", failures)

		for _, key := range s.schema.Keys() {
			groups := make([]report.Group, len(configs))
			for i, c := range configs {
				groups[i] = report.Group{Label: c.Label, Color: configColor(c, i), Values: stats.Frequency(c.Rows, key, window.Last)}
			}
			xlabel := fmt.Sprintf("%s allele frequency", key)
			if key == models.Either {
				xlabel = "ART-R alleles frequency"
			}
			name := fmt.Sprintf("violin/frequency-%s-%d-year.png", key, e.Years)
			s.box(ctx, emitter, rep, name, fmt.Sprintf("%s, %d year", key, e.Years), xlabel, groups)
		}
	}
}

func (s *PlotService) box(ctx context.Context, emitter *report.Emitter, rep *models.Report, name, title, xlabel string, groups []report.Group) {
	p, err := report.BoxSummary(title, xlabel, groups)
	if err == nil {
		err = emitter.EmitPlot(ctx, name, p)
	}
	s.record(rep, name, "", err)
}

func (s *PlotService) record(rep *models.Report, key, dataset string, err error) {
	configuration := ""
	if dataset != "" {
		configuration = dataset + ".yml"
	}
	if err != nil {
		rep.Fail(key, configuration, err)
		s.metrics.ItemFailed(stagePlot)
		log.WithField("artifact", key).Errorf("Plot: %v", err)
		return
	}
	rep.Add(key, configuration, models.StatusDone)
}
