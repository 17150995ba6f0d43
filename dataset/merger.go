// dataset/merger.go
package dataset

import (
	"fmt"
	"io"

	"github.com/masim/analysis/store"
	"github.com/masim/analysis/utils"
	log "github.com/sirupsen/logrus"
)

// Merger concatenates cached replicates into one configuration dataset.
type Merger struct {
	store *store.ReplicateStore
}

// NewMerger reads replicate files from s.
func NewMerger(s *store.ReplicateStore) *Merger {
	return &Merger{store: s}
}

// Merge writes the rows of every replicate, in the order given, to
// destination without a header. The first replicate seeds the file and the
// rest are appended; row order inside each replicate is preserved. The
// same ids and unchanged store contents give byte-identical output.
func (m *Merger) Merge(replicateIDs []int64, destination string, progress utils.Progress) error {
	if len(replicateIDs) == 0 {
		return fmt.Errorf("no replicates to merge into %s", destination)
	}
	schema := m.store.Schema()
	err := writeDataset(destination, func(w io.Writer) error {
		for i, id := range replicateIDs {
			rows, err := m.store.Read(id)
			if err != nil {
				return err
			}
			if err := store.WriteRows(w, schema, rows); err != nil {
				return err
			}
			progress.Update(i+1, len(replicateIDs))
		}
		return nil
	})
	progress.Done()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"replicates": len(replicateIDs), "dataset": destination}).Debug("Merge: dataset written")
	return nil
}
