// store/replicate_list.go
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/masim/analysis/models"
)

// WriteReplicateList saves the replicate list as headerless CSV in the
// column order of models.ReplicateListHeader.
func WriteReplicateList(path string, replicates []models.Replicate) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return WriteFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		enc := csvutil.NewEncoder(cw)
		enc.AutoHeader = false
		for _, r := range replicates {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadReplicateList loads a replicate list written by WriteReplicateList.
func ReadReplicateList(path string) ([]models.Replicate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replicate list: %w", err)
	}
	defer f.Close()
	return DecodeReplicateList(f)
}

// DecodeReplicateList parses headerless replicate list rows.
func DecodeReplicateList(r io.Reader) ([]models.Replicate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(models.ReplicateListHeader)
	dec, err := csvutil.NewDecoder(cr, models.ReplicateListHeader...)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create decoder for replicate list: %w", err)
	}
	var replicates []models.Replicate
	if err := dec.Decode(&replicates); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode replicate list: %w", err)
	}
	return replicates, nil
}
