package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/masim/analysis/dataset"
	"github.com/masim/analysis/models"
	"github.com/masim/analysis/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeAllRecordsBadConfigurations(t *testing.T) {
	schema := models.NewSchema("469Y")
	dir := t.TempDir()
	st := store.NewReplicateStore(filepath.Join(dir, "replicates"), schema)
	for _, id := range []int64{1, 2, 3} {
		row := schema.NewRow()
		row.ReplicateID = id
		row.Infections = 10
		require.NoError(t, st.Write(id, []models.ReplicateRow{row}))
	}
	replicates := []models.Replicate{
		{Filename: "b.yml", ReplicateID: 2},
		{Filename: "bad.yaml", ReplicateID: 3},
		{Filename: "a.yml", ReplicateID: 1},
		{Filename: "b.yml", ReplicateID: 9},
		{Filename: "a.yml", ReplicateID: 3},
	}

	report := NewMergeService(st, filepath.Join(dir, "datasets"), true, nil, nil).MergeAll(context.Background(), replicates)

	require.Len(t, report.Items, 3)
	assert.Equal(t, "b.csv.gz", report.Items[0].Key)
	assert.Equal(t, models.StatusFailed, report.Items[0].Status, "replicate 9 is not cached")
	assert.ErrorIs(t, report.Items[0].Err, store.ErrNotCached)
	assert.Equal(t, "bad.yaml", report.Items[1].Key)
	assert.ErrorIs(t, report.Items[1].Err, dataset.ErrBadConfigurationName)
	assert.Equal(t, models.ItemResult{Key: "a.csv.gz", Configuration: "a.yml", Status: models.StatusDone}, report.Items[2])
	assert.Len(t, report.Failures(), 2)

	_, err := os.Stat(filepath.Join(dir, "datasets", "b.csv.gz"))
	assert.True(t, os.IsNotExist(err), "failed merge must not leave a dataset behind")

	rows, err := dataset.ReadDataset(filepath.Join(dir, "datasets", "a.csv.gz"), schema)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
