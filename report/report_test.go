package report

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/kshedden/gonpy"
	"github.com/masim/analysis/blob"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryRows(reps int, days []int64) []models.SummaryRow {
	var rows []models.SummaryRow
	for r := 1; r <= reps; r++ {
		for _, day := range days {
			rows = append(rows, models.SummaryRow{
				Replicate: int64(r), Days: day,
				Treatments: 100, Failures: float64(r),
				Infections: 100,
				Occurrences: map[string]float64{"469Y": float64(10 * r), models.Either: float64(20 * r)},
			})
		}
	}
	return rows
}

func TestTreatmentFailureTable(t *testing.T) {
	configs := []Configuration{
		{Label: "Status Quo", Rows: summaryRows(4, []int64{0, 31})},
		{Label: "AL (25%) + ASAQ (75%)", Rows: summaryRows(1, []int64{0, 31})},
	}
	var buf bytes.Buffer
	require.NoError(t, TreatmentFailureTable(&buf, 2004, configs, []stats.DayRange{{First: 0, Last: 31}}))
	assert.Equal(t, ",2004,\n"+
		"Status Quo,2.50 (1.75 - 3.25),\n"+
		"AL (25%) + ASAQ (75%),1.00 (1.00 - 1.00),\n"+
		"\n"+
		"record range,2004/01-2004/02,\n", buf.String())
}

func TestFrequencyTable(t *testing.T) {
	configs := []Configuration{{Label: "AL", Rows: summaryRows(5, []int64{366, 731})}}
	var buf bytes.Buffer
	require.NoError(t, FrequencyTable(&buf, 2004, "469Y", configs, []int64{366, 731}))
	assert.Equal(t, ",2005,2006,\n"+
		"AL,0.30 (0.20 - 0.40),0.30 (0.20 - 0.40),\n"+
		"\n"+
		"record source,'2005/01,'2006/01,\n", buf.String())
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0xbd, G: 0xd7, B: 0xe7, A: 0xff}, ParseColor("#bdd7e7", color.Black))
	assert.Equal(t, color.Black, ParseColor("blue", color.Black))
}

func series(days ...int64) stats.Series {
	s := stats.Series{Days: days}
	for i := range days {
		v := float64(i+1) / float64(len(days)+1)
		s.Bands = append(s.Bands, stats.Summary{Median: v, Lower: v / 2, Upper: math.Min(1, v*1.5)})
	}
	return s
}

func assertPNG(t *testing.T, data []byte) {
	t.Helper()
	_, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestFrequencyChart(t *testing.T) {
	s := series(3000, 3030, 3060, 3090)
	s.Bands = append(s.Bands, stats.Summary{Median: math.NaN(), Lower: math.NaN(), Upper: math.NaN()})
	s.Days = append(s.Days, 3120)
	p, err := FrequencyChart("Status Quo, 469Y", "469Y Frequency", 2004, s,
		[]models.MutationPoint{{District: "Agago", Year: 2012, Frequency: 0.1}}, PaletteColor(0))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p))
	assertPNG(t, buf.Bytes())
}

func TestDistrictGrid(t *testing.T) {
	var panels []Panel
	for i := 0; i < 7; i++ {
		panels = append(panels, Panel{Title: "District", Series: series(3000, 3030, 3060)})
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDistrictGrid(&buf, "Status Quo, 469Y", "469Y Frequency", 2004, panels, PaletteColor(1)))
	assertPNG(t, buf.Bytes())

	assert.Error(t, WriteDistrictGrid(&buf, "empty", "", 2004, nil, PaletteColor(1)))
}

func TestDistrictGridTraces(t *testing.T) {
	traces := []stats.Trace{
		{Replicate: 1, Days: []int64{3000, 3030, 3060}, Values: []float64{0.1, 0.2, 0.3}},
		{Replicate: 2, Days: []int64{3000, 3030, 3060}, Values: []float64{0.2, math.NaN(), 0.5}},
		// a single point draws nothing
		{Replicate: 3, Days: []int64{3000}, Values: []float64{0.4}},
	}
	panels := []Panel{
		{Title: "Abim", Traces: traces, Points: []models.MutationPoint{{District: "Abim", Year: 2012, Frequency: 0.2}}},
		{Title: "Agago", Traces: traces},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDistrictGrid(&buf, "Status Quo, 469Y", "469Y Frequency", 2004, panels, PaletteColor(0)))
	assertPNG(t, buf.Bytes())
}

func TestBoxSummary(t *testing.T) {
	p, err := BoxSummary("Treatment failures, 3 year", "Percent Treatment Failures", []Group{
		{Label: "Status Quo", Color: PaletteColor(0), Values: []float64{10, 12, 14, 11}},
		{Label: "Empty", Color: PaletteColor(1), Values: []float64{math.NaN()}},
		{Label: "AL", Color: PaletteColor(2), Values: []float64{8, 9, math.Inf(1)}},
	})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p))
	assertPNG(t, buf.Bytes())

	_, err = BoxSummary("none", "", []Group{{Label: "Empty"}})
	assert.Error(t, err)
}

func TestWriteMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, [][]float64{{0.1, 0.2, 0.3}, {0.4, math.NaN(), 0.6}}))

	npy, err := gonpy.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, npy.Shape)
	values, err := npy.GetFloat64()
	require.NoError(t, err)
	require.Len(t, values, 6)
	assert.Equal(t, 0.4, values[3])
	assert.True(t, math.IsNaN(values[4]))

	assert.Error(t, WriteMatrix(&bytes.Buffer{}, [][]float64{{1, 2}, {3}}))

	buf.Reset()
	require.NoError(t, WriteVector(&buf, []int64{101, 102}))
	npy, err = gonpy.NewReader(&buf)
	require.NoError(t, err)
	ids, err := npy.GetInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, ids)
}

func TestEmitterWritesIndex(t *testing.T) {
	dir := t.TempDir()
	e := NewEmitter(blob.NewFilesystem(dir), "Study 5", "run-1")
	ctx := context.Background()

	p, err := FrequencyChart("Status Quo, 469Y", "469Y Frequency", 2004, series(3000, 3030), nil, PaletteColor(0))
	require.NoError(t, err)
	require.NoError(t, e.EmitPlot(ctx, "median/status-quo-national-469Y.png", p))
	require.NoError(t, e.Emit(ctx, "summary/469Y.csv", "469Y frequency", func(w io.Writer) error {
		_, err := w.Write([]byte("x\n"))
		return err
	}))
	require.NoError(t, e.Close(ctx))
	assert.Len(t, e.Artifacts(), 2)

	_, err = os.Stat(filepath.Join(dir, "median", "status-quo-national-469Y.png"))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, "Study 5", doc.Find("h1").Text())
	assert.Contains(t, doc.Find("p.meta").Text(), "run-1")

	var hrefs []string
	doc.Find("ul a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		hrefs = append(hrefs, href)
	})
	assert.Equal(t, []string{"summary/469Y.csv", "median/status-quo-national-469Y.png"}, hrefs)
	assert.Equal(t, "469Y frequency", strings.TrimSpace(doc.Find("ul.table a").Text()))
}
