package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/masim/analysis/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig lays out a working directory for one command run and returns
// the config path and the directory.
func writeConfig(t *testing.T, dbPath string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	body := fmt.Sprintf(`database:
  driver: sqlite
  dbname: %q
  schema: main
study:
  id: 5
  warmup_years: 1
paths:
  replicate_dir: %[2]q
  dataset_dir: %[3]q
  cache_dir: %[4]q
  replicate_list: %[5]q
  output_dir: %[6]q
reference:
  districts_mapping: ""
metrics:
  textfile: %[7]q
logging:
  level: warn
`, dbPath,
		filepath.Join(dir, "replicates"),
		filepath.Join(dir, "datasets"),
		filepath.Join(dir, "cache"),
		filepath.Join(dir, "replicates.csv"),
		filepath.Join(dir, "out"),
		filepath.Join(dir, "masim.prom"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path, dir
}

// seedStudy writes eleven years of post warm-up months for replicate 11 of
// good.yml and replicate 22 of bad.yml. Replicate 22 has no infection
// counts, so reading its rows fails.
func seedStudy(t *testing.T, path string) {
	t.Helper()
	sim := dbtest.NewFile(t, path)
	sim.Configuration(1, 5, "good.yml")
	sim.Configuration(2, 5, "bad.yml")
	sim.Replicate(11, 1, "2021-01-01 00:00:00", "2021-01-02 00:00:00")
	sim.Replicate(22, 2, "2021-01-01 00:00:00", "2021-01-02 00:00:00")
	for _, replicate := range []int64{11, 22} {
		for m := int64(0); m < 132; m++ {
			sim.Month(replicate, 395+30*m,
				[]dbtest.Site{
					{District: 1, Infections: 100, Clinical: 10, Treatments: 20, Failures: 2 + m%3},
					{District: 2, Infections: 80, Clinical: 8, Treatments: 10, Failures: 1},
				},
				[]dbtest.Genome{
					{District: 1, Genotype: dbtest.Mutant469Y, Occurrences: m % 10, Clinical: 1, Weighted: 1},
					{District: 2, Genotype: dbtest.Mutant675V, Occurrences: 3, Clinical: 1, Weighted: 1.5},
				})
		}
	}
	_, err := sim.DB.Exec(`UPDATE monthlysitedata SET infectedindividuals = NULL
		WHERE monthlydataid IN (SELECT id FROM monthlydata WHERE replicateid = 22)`)
	require.NoError(t, err)
}

func TestRunReportsPastFailedReplicate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")
	seedStudy(t, dbPath)
	cfgPath, dir := writeConfig(t, dbPath)

	err := execute(context.Background(), []string{"run", "-c", cfgPath})

	// the failed replicate still fails the command
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load: 1 of 2 items failed")
	assert.Contains(t, err.Error(), "merge: 1 of 2 items failed")

	assert.FileExists(t, filepath.Join(dir, "replicates", "11.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "replicates", "22.csv"))
	assert.FileExists(t, filepath.Join(dir, "datasets", "good.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "datasets", "bad.csv"))
	assert.FileExists(t, filepath.Join(dir, "cache", "good.summary.csv"))

	out := filepath.Join(dir, "out")
	assert.FileExists(t, filepath.Join(out, "summary", "treatment_failures.csv"))
	assert.FileExists(t, filepath.Join(out, "summary", "469Y.csv"))
	assert.FileExists(t, filepath.Join(out, "median", "good-national-469Y.png"))
	assert.FileExists(t, filepath.Join(out, "index.html"))

	prom, err := os.ReadFile(filepath.Join(dir, "masim.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "item_failures_total")
}

func TestMetricsTextfileWrittenOnStageError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sim.db")
	dbtest.NewFile(t, dbPath)
	cfgPath, dir := writeConfig(t, dbPath)

	// nothing was loaded, so there is no replicate list to merge
	err := execute(context.Background(), []string{"merge", "-c", cfgPath})
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dir, "masim.prom"))
}

func TestExecuteConfigErrorSkipsTextfile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	err := execute(context.Background(), []string{"merge", "-c", filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
	assert.Nil(t, cfg)
}
