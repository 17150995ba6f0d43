// refdata/parser.go
package refdata

import (
	"errors"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/masim/analysis/models"
)

// ErrDistrictNotFound is returned when a reference label has no simulation id.
var ErrDistrictNotFound = errors.New("district not found in mapping")

// ParseMutationPoints decodes a mutation reference file. Columns are matched
// by header name; columns this pipeline does not use are ignored.
func ParseMutationPoints(r io.Reader) ([]models.MutationPoint, error) {
	var points []models.MutationPoint
	if err := decodeAll(r, &points); err != nil {
		return nil, fmt.Errorf("failed to decode mutation reference: %w", err)
	}
	return points, nil
}

// ParseDistricts decodes a district mapping file into a lookup.
func ParseDistricts(r io.Reader) (*DistrictMap, error) {
	var districts []models.District
	if err := decodeAll(r, &districts); err != nil {
		return nil, fmt.Errorf("failed to decode district mapping: %w", err)
	}
	m := &DistrictMap{byLabel: make(map[string]int64, len(districts)), byID: make(map[int64]string, len(districts))}
	for _, d := range districts {
		m.byLabel[d.Label] = d.ID
		m.byID[d.ID] = d.Label
	}
	return m, nil
}

func decodeAll(r io.Reader, v any) error {
	dec, err := csvutil.NewDecoder(csvReader(r))
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("empty file")
	} else if err != nil {
		return err
	}
	return dec.Decode(v)
}

// DistrictMap resolves reference labels to simulation district ids.
type DistrictMap struct {
	byLabel map[string]int64
	byID    map[int64]string
}

func (m *DistrictMap) ID(label string) (int64, error) {
	id, ok := m.byLabel[label]
	if !ok {
		return 0, fmt.Errorf("%q: %w", label, ErrDistrictNotFound)
	}
	return id, nil
}

func (m *DistrictMap) Label(id int64) (string, bool) {
	label, ok := m.byID[id]
	return label, ok
}

func (m *DistrictMap) Len() int { return len(m.byLabel) }

// DistrictsOf lists the districts with reference points, in file order.
func DistrictsOf(points []models.MutationPoint) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range points {
		if !seen[p.District] {
			seen[p.District] = true
			out = append(out, p.District)
		}
	}
	return out
}

// PointsFor returns the reference points of one district.
func PointsFor(points []models.MutationPoint, district string) []models.MutationPoint {
	var out []models.MutationPoint
	for _, p := range points {
		if p.District == district {
			out = append(out, p)
		}
	}
	return out
}
