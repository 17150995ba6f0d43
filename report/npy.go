// report/npy.go
package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kshedden/gonpy"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteMatrix writes a rows x cols float64 .npy array. Every row must have
// the same length.
func WriteMatrix(w io.Writer, values [][]float64) error {
	rows, cols := len(values), 0
	if rows > 0 {
		cols = len(values[0])
	}
	flat := make([]float64, 0, rows*cols)
	for i, row := range values {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	if err := npw.WriteFloat64(flat); err != nil {
		return err
	}
	return bufw.Flush()
}

// WriteVector writes a one dimensional int64 .npy array, used for the
// replicate and day axes of a matrix.
func WriteVector(w io.Writer, values []int64) error {
	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = []int{len(values)}
	if err := npw.WriteInt64(values); err != nil {
		return err
	}
	return bufw.Flush()
}
