// dataset/files.go
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/store"
)

// ErrBadConfigurationName is returned for configuration filenames that do
// not follow the <name>.yml convention.
var ErrBadConfigurationName = errors.New("configuration filename must end in .yml")

// FileName maps a configuration filename to its dataset file name.
func FileName(configuration string, compress bool) (string, error) {
	base := filepath.Base(configuration)
	if !strings.HasSuffix(base, ".yml") || base == ".yml" {
		return "", fmt.Errorf("%q: %w", configuration, ErrBadConfigurationName)
	}
	name := strings.TrimSuffix(base, ".yml") + ".csv"
	if compress {
		name += ".gz"
	}
	return name, nil
}

// Name strips the directory and the .csv / .csv.gz extension from a dataset path.
func Name(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, ".csv")
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// ReadDataset loads every row of a configuration dataset.
func ReadDataset(path string, schema models.Schema) ([]models.ReplicateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 1<<20)
	if isCompressed(path) {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	rows, err := store.ReadRows(r, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return rows, nil
}

// writeDataset writes through fill, gzip-compressing when path ends in .gz.
func writeDataset(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return store.WriteFileAtomic(path, func(w io.Writer) error {
		bufw := bufio.NewWriterSize(w, 1<<20)
		if !isCompressed(path) {
			if err := fill(bufw); err != nil {
				return err
			}
			return bufw.Flush()
		}
		// zero ModTime in the header keeps output byte-identical across runs
		gz := pgzip.NewWriter(bufw)
		if err := fill(gz); err != nil {
			gz.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
		return bufw.Flush()
	})
}
