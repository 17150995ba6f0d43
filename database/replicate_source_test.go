package database

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/masim/analysis/config"
	"github.com/masim/analysis/database/dbtest"
	"github.com/masim/analysis/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Schema = "main"
	cfg.Study.WarmupYears = 1
	return cfg
}

func newSource(t *testing.T, sim *dbtest.SimDB) *ReplicateSource {
	cfg := testConfig()
	src, err := NewReplicateSource(sim.DB, cfg, models.NewSchema(cfg.MutationKeys()...))
	require.NoError(t, err)
	return src
}

func TestListReplicatesOnlyCompletedAndOrdered(t *testing.T) {
	sim := dbtest.New(t)
	sim.Configuration(1, 5, "b.yml")
	sim.Configuration(2, 5, "a.yml")
	sim.Configuration(3, 4, "other-study.yml")
	sim.Replicate(12, 1, "2021-01-01 00:00:00", "2021-01-02 00:00:00")
	sim.Replicate(11, 1, "2021-01-01 00:00:00", "2021-01-02 00:00:00")
	sim.Replicate(20, 2, "2021-01-01 00:00:00", "2021-01-03 00:00:00")
	sim.Replicate(21, 2, "2021-01-01 00:00:00", "") // still running
	sim.Replicate(30, 3, "2021-01-01 00:00:00", "2021-01-02 00:00:00")

	replicates, err := newSource(t, sim).ListReplicates(context.Background(), 5)
	require.NoError(t, err)

	var ids []int64
	for _, r := range replicates {
		ids = append(ids, r.ReplicateID)
	}
	// configuration id descending, then replicate id
	assert.Equal(t, []int64{20, 11, 12}, ids)
	assert.Equal(t, models.Replicate{
		ConfigurationID: 2, StudyID: 5, Filename: "a.yml", ReplicateID: 20,
		StartTime: "2021-01-01 00:00:00", EndTime: "2021-01-03 00:00:00",
	}, replicates[0])
}

func TestReplicateRowsCoalescesAndCutsWarmup(t *testing.T) {
	sim := dbtest.New(t)
	sim.Configuration(1, 5, "cfgA.yml")
	sim.Replicate(101, 1, "s", "e")

	// inside the warm-up period, must not be returned
	sim.Month(101, 300, []dbtest.Site{{District: 1, Infections: 9}}, nil)
	sim.Month(101, 400,
		[]dbtest.Site{
			{District: 2, Infections: 40, Clinical: 4, Treatments: 10, Failures: 1},
			{District: 1, Infections: 50, Clinical: 5, Treatments: 20, Failures: 3},
		},
		[]dbtest.Genome{
			{District: 1, Genotype: dbtest.Mutant469Y, Occurrences: 5, Clinical: 1, Weighted: 2.5},
			{District: 1, Genotype: dbtest.Double, Occurrences: 2, Clinical: 0, Weighted: 1},
			{District: 1, Genotype: dbtest.Mutant675V, Occurrences: 3, Clinical: 1, Weighted: 1.5},
			{District: 1, Genotype: dbtest.WildType, Occurrences: 40, Clinical: 3, Weighted: 20},
		})

	src := newSource(t, sim)
	rows, err := src.ReplicateRows(context.Background(), 101)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	d1, d2 := rows[0], rows[1]
	assert.Equal(t, int64(1), d1.District)
	assert.Equal(t, int64(2), d2.District)
	assert.Equal(t, int64(400), d1.DaysElapsed)
	assert.Equal(t, int64(1), d1.ConfigurationID)
	assert.Equal(t, int64(50), d1.Infections)
	assert.Equal(t, int64(20), d1.Treatments)
	assert.Equal(t, int64(3), d1.Failures)

	// 469Y: single + double mutants; 675V: single + double; either: each genotype once
	assert.Equal(t, models.GenotypeCounts{Occurrences: 7, ClinicalOccurrences: 1, WeightedOccurrences: 3.5}, d1.Genotypes[0])
	assert.Equal(t, models.GenotypeCounts{Occurrences: 5, ClinicalOccurrences: 1, WeightedOccurrences: 2.5}, d1.Genotypes[1])
	assert.Equal(t, models.GenotypeCounts{Occurrences: 10, ClinicalOccurrences: 2, WeightedOccurrences: 5}, d1.Genotypes[2])

	// no genome rows for district 2: zero, not null
	for _, g := range d2.Genotypes {
		assert.Equal(t, models.GenotypeCounts{}, g)
	}
}

func TestReplicateRowsIncompleteReplicateIsEmpty(t *testing.T) {
	sim := dbtest.New(t)
	sim.Configuration(1, 5, "cfgA.yml")
	sim.Replicate(7, 1, "s", "")
	sim.Month(7, 400, []dbtest.Site{{District: 1, Infections: 9}}, nil)

	rows, err := newSource(t, sim).ReplicateRows(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueryFailureSurfaces(t *testing.T) {
	sim := dbtest.New(t)
	cfg := testConfig()
	cfg.Database.Schema = "missing"
	src, err := NewReplicateSource(sim.DB, cfg, models.NewSchema(cfg.MutationKeys()...))
	require.NoError(t, err)

	_, err = src.ListReplicates(context.Background(), 5)
	assert.ErrorContains(t, err, "failed to query replicates for study 5")
}

func TestNewReplicateSourceValidates(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Schema = "sim; DROP TABLE x"
	_, err := NewReplicateSource(nil, cfg, models.NewSchema("469Y"))
	assert.Error(t, err)

	cfg = testConfig()
	_, err = NewReplicateSource(nil, cfg, models.NewSchema("580Y"))
	assert.ErrorContains(t, err, "580Y")
}

func TestRebindForPgx(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "pgx"
	src, err := NewReplicateSource(nil, cfg, models.NewSchema(cfg.MutationKeys()...))
	require.NoError(t, err)

	query, args := src.replicateQuery(5)
	bound := src.rebind(query)
	assert.NotContains(t, bound, "?")
	assert.Equal(t, len(args), strings.Count(query, "?"))
	assert.Contains(t, bound, "$"+strconv.Itoa(len(args)))
}
