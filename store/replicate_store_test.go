package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/masim/analysis/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows(schema models.Schema, replicate int64) []models.ReplicateRow {
	var rows []models.ReplicateRow
	for day := int64(2950); day <= 2980; day += 30 {
		for district := int64(1); district <= 2; district++ {
			row := schema.NewRow()
			row.ConfigurationID = 3
			row.ReplicateID = replicate
			row.DaysElapsed = day
			row.District = district
			row.Infections = 100 * district
			row.Genotypes[0].Occurrences = district
			row.Genotypes[0].WeightedOccurrences = 0.5
			row.Treatments = 10
			row.Failures = 1
			rows = append(rows, row)
		}
	}
	return rows
}

func TestStoreRoundTrip(t *testing.T) {
	schema := models.NewSchema("469Y", "675V")
	s := NewReplicateStore(filepath.Join(t.TempDir(), "replicates"), schema)

	assert.False(t, s.Exists(101))
	_, err := s.Read(101)
	assert.True(t, errors.Is(err, ErrNotCached))

	rows := sampleRows(schema, 101)
	require.NoError(t, s.Write(101, rows))
	assert.True(t, s.Exists(101))
	assert.Equal(t, filepath.Join(s.Dir(), "101.csv"), s.Path(101))

	back, err := s.Read(101)
	require.NoError(t, err)
	assert.Equal(t, rows, back)

	raw, err := os.ReadFile(s.Path(101))
	require.NoError(t, err)
	// no header row
	assert.Regexp(t, `^3,101,2950,1,100,`, string(raw))
}

func TestStoreLeavesNoTemporaryFiles(t *testing.T) {
	schema := models.NewSchema("469Y")
	s := NewReplicateStore(t.TempDir(), schema)
	require.NoError(t, s.Write(5, sampleRows(schema, 5)))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "5.csv", entries[0].Name())
}

func TestStoreReadRejectsWrongLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewReplicateStore(dir, models.NewSchema("469Y"))
	require.NoError(t, os.WriteFile(s.Path(9), []byte("1,2,3\n"), 0644))
	_, err := s.Read(9)
	assert.ErrorContains(t, err, "replicate 9")
}

func TestReplicateListRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists", "replicates.csv")
	list := []models.Replicate{
		{ConfigurationID: 2, StudyID: 5, Filename: "uga-policy-sft-al.yml", ReplicateID: 20, StartTime: "2021-01-01 00:00:00", EndTime: "2021-01-03 00:00:00"},
		{ConfigurationID: 1, StudyID: 5, Filename: "uga-policy-status-quo.yml", ReplicateID: 11, StartTime: "2021-01-01", EndTime: "2021-01-02"},
	}
	require.NoError(t, WriteReplicateList(path, list))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2,5,uga-policy-sft-al.yml,20,2021-01-01 00:00:00,2021-01-03 00:00:00\n"+
		"1,5,uga-policy-status-quo.yml,11,2021-01-01,2021-01-02\n", string(raw))

	back, err := ReadReplicateList(path)
	require.NoError(t, err)
	assert.Equal(t, list, back)
}

func TestReplicateListEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replicates.csv")
	require.NoError(t, WriteReplicateList(path, nil))
	back, err := ReadReplicateList(path)
	require.NoError(t, err)
	assert.Empty(t, back)
}
