// store/replicate_store.go
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/masim/analysis/models"
)

// ErrNotCached is returned by Read for a replicate with no file yet.
var ErrNotCached = errors.New("replicate not cached")

// ReplicateStore caches raw replicate rows, one headerless CSV file per
// replicate id, under a single directory. It assumes one writer process.
type ReplicateStore struct {
	dir    string
	schema models.Schema
}

// NewReplicateStore returns a store rooted at dir. The directory is created
// on first write.
func NewReplicateStore(dir string, schema models.Schema) *ReplicateStore {
	return &ReplicateStore{dir: dir, schema: schema}
}

// Dir is the directory holding the replicate files.
func (s *ReplicateStore) Dir() string { return s.dir }

// Schema is the layout used for every file in the store.
func (s *ReplicateStore) Schema() models.Schema { return s.schema }

// Path returns the file name for a replicate id.
func (s *ReplicateStore) Path(replicateID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(replicateID, 10)+".csv")
}

// Exists reports whether the replicate has been cached.
func (s *ReplicateStore) Exists(replicateID int64) bool {
	_, err := os.Stat(s.Path(replicateID))
	return err == nil
}

// Read returns the cached rows of a replicate in file order.
func (s *ReplicateStore) Read(replicateID int64) ([]models.ReplicateRow, error) {
	f, err := os.Open(s.Path(replicateID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("replicate %d: %w", replicateID, ErrNotCached)
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadRows(f, s.schema)
	if err != nil {
		return nil, fmt.Errorf("replicate %d: %w", replicateID, err)
	}
	return rows, nil
}

// Write stores the rows of a replicate. The file appears under its final
// name only once completely written, so an interrupted run never leaves a
// partial file that later runs would treat as cached.
func (s *ReplicateStore) Write(replicateID int64, rows []models.ReplicateRow) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}
	return WriteFileAtomic(s.Path(replicateID), func(w io.Writer) error {
		return WriteRows(w, s.schema, rows)
	})
}

// ReadRows decodes headerless rows laid out by schema.
func ReadRows(r io.Reader, schema models.Schema) ([]models.ReplicateRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(schema.Fields())
	cr.ReuseRecord = true
	var rows []models.ReplicateRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, err
		}
		row, err := schema.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

// WriteRows encodes rows without a header.
func WriteRows(w io.Writer, schema models.Schema, rows []models.ReplicateRow) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		if err := cw.Write(schema.Encode(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFileAtomic writes through fill into a temporary file next to path and
// renames it into place.
func WriteFileAtomic(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
