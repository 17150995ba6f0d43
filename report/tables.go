// report/tables.go

// Package report renders metric results: summary tables, PNG charts,
// numpy matrices and an HTML index of everything produced.
package report

import (
	"encoding/csv"
	"io"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/stats"
)

// Configuration is one labeled configuration dataset and its aggregate
// summary.
type Configuration struct {
	Dataset string
	Label   string
	Color   string
	Rows    []models.SummaryRow
}

// TreatmentFailureTable writes one row per configuration with the median
// (IQR) treatment failure percentage over each span. The header carries
// the year each span starts; a trailing row records the month range used.
func TreatmentFailureTable(w io.Writer, modelYear int, configs []Configuration, spans []stats.DayRange) error {
	header := []string{""}
	check := []string{"record range"}
	for _, span := range spans {
		first, last := stats.ModelDate(modelYear, span.First), stats.ModelDate(modelYear, span.Last)
		header = append(header, first.Format("2006"))
		check = append(check, first.Format("2006/01")+"-"+last.Format("2006/01"))
	}
	rows := make([][]string, len(configs))
	for i, c := range configs {
		rows[i] = []string{c.Label}
		for _, span := range spans {
			cell := stats.Summarize(stats.TreatmentFailurePercentage(c.Rows, span))
			rows[i] = append(rows[i], cell.String())
		}
	}
	return writeTable(w, header, rows, check)
}

// FrequencyTable writes one row per configuration with the median (IQR)
// frequency of key on each point day.
func FrequencyTable(w io.Writer, modelYear int, key string, configs []Configuration, points []int64) error {
	header := []string{""}
	check := []string{"record source"}
	for _, day := range points {
		date := stats.ModelDate(modelYear, day)
		header = append(header, date.Format("2006"))
		check = append(check, "'"+date.Format("2006/01"))
	}
	rows := make([][]string, len(configs))
	for i, c := range configs {
		rows[i] = []string{c.Label}
		for _, day := range points {
			rows[i] = append(rows[i], stats.Summarize(stats.Frequency(c.Rows, key, day)).String())
		}
	}
	return writeTable(w, header, rows, check)
}

// writeTable ends every line with a separator, leaving an empty last
// column, and puts a blank line before the check row.
func writeTable(w io.Writer, header []string, rows [][]string, check []string) error {
	cw := csv.NewWriter(w)
	cw.Write(append(header, ""))
	for _, r := range rows {
		cw.Write(append(r, ""))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	cw.Write(append(check, ""))
	cw.Flush()
	return cw.Error()
}
