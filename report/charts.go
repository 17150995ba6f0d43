// report/charts.go
package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/stats"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
	gridColumns = 5
)

// ParseColor reads "#rrggbb"; anything else yields fallback.
func ParseColor(hex string, fallback color.Color) color.Color {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// PaletteColor is the default color of the i-th series.
func PaletteColor(i int) color.Color {
	return plotutil.Color(i)
}

func withAlpha(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}

func unixX(modelYear int, day int64) float64 {
	return float64(stats.ModelDate(modelYear, day).Unix())
}

// FrequencyChart is a median line with a shaded IQR band over model time,
// plus reference survey points when given. Days whose band is not finite
// are left out.
func FrequencyChart(title, ylabel string, modelYear int, series stats.Series, points []models.MutationPoint, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Label.Text = "Model Year"
	if err := addBand(p, modelYear, series, points, c); err != nil {
		return nil, err
	}
	return p, nil
}

func addBand(p *plot.Plot, modelYear int, series stats.Series, points []models.MutationPoint, c color.Color) error {
	var median, upper, lower plotter.XYs
	dropped := 0
	for i, day := range series.Days {
		band := series.Bands[i]
		if !band.Finite() {
			dropped++
			continue
		}
		x := unixX(modelYear, day)
		median = append(median, plotter.XY{X: x, Y: band.Median})
		upper = append(upper, plotter.XY{X: x, Y: band.Upper})
		lower = append(lower, plotter.XY{X: x, Y: band.Lower})
	}
	if dropped > 0 {
		log.Warnf("Report: %s: %d of %d days have no finite frequency (zero infections?)", p.Title.Text, dropped, len(series.Days))
	}
	p.Y.Min, p.Y.Max = 0, 1
	p.X.Tick.Marker = plot.TimeTicks{Format: "'06"}
	if len(median) > 0 {
		p.X.Min, p.X.Max = median[0].X, median[len(median)-1].X
	}
	if len(median) > 1 {
		outline := append(plotter.XYs{}, upper...)
		for i := len(lower) - 1; i >= 0; i-- {
			outline = append(outline, lower[i])
		}
		band, err := plotter.NewPolygon(outline)
		if err != nil {
			return err
		}
		band.Color = withAlpha(c, 0x80)
		band.LineStyle.Width = 0
		p.Add(band)

		line, err := plotter.NewLine(median)
		if err != nil {
			return err
		}
		line.Color = c
		line.Width = vg.Points(1.5)
		p.Add(line)
	}
	if len(points) > 0 {
		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i] = plotter.XY{X: float64(stats.ReferenceDate(pt.Year).Unix()), Y: pt.Frequency}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = color.Black
		scatter.GlyphStyle.Radius = vg.Points(4)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
	}
	return nil
}

// addTraces draws one thin line per replicate in palette order. Non-finite
// values are skipped.
func addTraces(p *plot.Plot, modelYear int, traces []stats.Trace) error {
	for j, t := range traces {
		var xys plotter.XYs
		for i, day := range t.Days {
			if v := t.Values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				xys = append(xys, plotter.XY{X: unixX(modelYear, day), Y: v})
			}
		}
		if len(xys) < 2 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("replicate %d: %w", t.Replicate, err)
		}
		line.Color = PaletteColor(j)
		line.Width = vg.Points(0.75)
		p.Add(line)
	}
	return nil
}

// Panel is one district of a small-multiples chart. A panel draws its
// median band, its per-replicate traces, or both.
type Panel struct {
	Title  string
	Series stats.Series
	Traces []stats.Trace
	Points []models.MutationPoint
}

// WriteDistrictGrid renders panels five to a row under a shared title as a
// PNG. Tick labels are only kept on the left column and bottom row.
func WriteDistrictGrid(w io.Writer, title, ylabel string, modelYear int, panels []Panel, c color.Color) error {
	if len(panels) == 0 {
		return fmt.Errorf("no district panels for %s", title)
	}
	rows := (len(panels) + gridColumns - 1) / gridColumns
	grid := make([][]*plot.Plot, rows)
	for r := range grid {
		grid[r] = make([]*plot.Plot, gridColumns)
		for col := range grid[r] {
			i := r*gridColumns + col
			p := plot.New()
			grid[r][col] = p
			if i >= len(panels) {
				p.HideAxes()
				continue
			}
			p.Title.Text = panels[i].Title
			if err := addBand(p, modelYear, panels[i].Series, panels[i].Points, c); err != nil {
				return err
			}
			if err := addTraces(p, modelYear, panels[i].Traces); err != nil {
				return err
			}
			if i+gridColumns < len(panels) {
				p.X.Tick.Marker = unlabeled{p.X.Tick.Marker}
			}
			if col != 0 {
				p.Y.Tick.Marker = unlabeled{p.Y.Tick.Marker}
			} else if r == rows/2 {
				p.Y.Label.Text = ylabel
			}
		}
	}

	width, height := 16*vg.Inch, vg.Length(rows)*3*vg.Inch+0.5*vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	dc.FillText(text.Style{
		Color:   color.Black,
		Font:    font.From(plot.DefaultFont, 16),
		XAlign:  text.XCenter,
		YAlign:  text.YTop,
		Handler: plot.DefaultTextHandler,
	}, vg.Point{X: dc.Center().X, Y: dc.Max.Y - vg.Points(6)}, title)

	body := draw.Crop(dc, 0, 0, 0, -0.5*vg.Inch)
	tiles := draw.Tiles{
		Rows: rows, Cols: gridColumns,
		PadX: vg.Millimeter, PadY: 3 * vg.Millimeter,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter,
		PadLeft: vg.Millimeter, PadRight: vg.Millimeter,
	}
	canvases := plot.Align(grid, tiles, body)
	for r := range grid {
		for col := range grid[r] {
			if r*gridColumns+col < len(panels) {
				grid[r][col].Draw(canvases[r][col])
			}
		}
	}
	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

// unlabeled keeps tick positions but drops their labels.
type unlabeled struct {
	plot.Ticker
}

func (u unlabeled) Ticks(min, max float64) []plot.Tick {
	ticks := u.Ticker.Ticks(min, max)
	for i := range ticks {
		ticks[i].Label = ""
	}
	return ticks
}

// Group is one labeled distribution of a box summary.
type Group struct {
	Label  string
	Color  color.Color
	Values []float64
}

// BoxSummary draws one horizontal box per group, top to bottom in the
// order given. Non-finite values are dropped; a group left empty is
// skipped with a warning.
func BoxSummary(title, xlabel string, groups []Group) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel

	type kept struct {
		group  Group
		values plotter.Values
	}
	var boxes []kept
	for _, g := range groups {
		values := finite(g.Values)
		if len(values) == 0 {
			log.Warnf("Report: %s: no finite values for %s", title, g.Label)
			continue
		}
		boxes = append(boxes, kept{g, values})
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no data for %s", title)
	}
	// first group on top
	n := len(boxes)
	labels := make([]string, n)
	for i, b := range boxes {
		box, err := plotter.NewBoxPlot(vg.Points(18), float64(n-1-i), b.values)
		if err != nil {
			return nil, fmt.Errorf("box for %s: %w", b.group.Label, err)
		}
		box.Horizontal = true
		box.FillColor = b.group.Color
		labels[n-1-i] = b.group.Label
		p.Add(box)
	}
	p.NominalY(labels...)
	return p, nil
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// WritePNG renders p at the default chart size.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
