// database/dbtest/simdb.go

// Package dbtest builds an in-memory copy of the simulation schema for
// tests of anything that reads replicates.
package dbtest

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Genotype names used by the fixtures. Position 6 carries 469Y, position 7 675V.
const (
	WildType   = "KNF--C1x"
	Mutant469Y = "KNF--Y1x"
	Mutant675V = "KNF--CVx"
	Double     = "KNF--YVx"
)

const ddl = `
CREATE TABLE configuration (id INTEGER PRIMARY KEY, studyid INTEGER, filename TEXT);
CREATE TABLE replicate (id INTEGER PRIMARY KEY, configurationid INTEGER, starttime TEXT, endtime TEXT);
CREATE TABLE monthlydata (id INTEGER PRIMARY KEY AUTOINCREMENT, replicateid INTEGER, dayselapsed INTEGER);
CREATE TABLE monthlysitedata (monthlydataid INTEGER, location INTEGER,
	infectedindividuals INTEGER, clinicalepisodes INTEGER, treatments INTEGER, treatmentfailures INTEGER);
CREATE TABLE genotype (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE monthlygenomedata (monthlydataid INTEGER, genomeid INTEGER, location INTEGER,
	occurrences INTEGER, clinicaloccurrences INTEGER, weightedoccurrences REAL);
`

// SimDB is a seeded simulation database. Tables live in the "main" schema.
type SimDB struct {
	DB *sql.DB
	t  testing.TB
}

// New opens an empty in-memory simulation database.
func New(t testing.TB) *SimDB {
	t.Helper()
	return open(t, ":memory:")
}

// NewFile creates the simulation database in a file so a separately
// opened connection, such as the one a command makes, sees the fixtures.
func NewFile(t testing.TB, path string) *SimDB {
	t.Helper()
	sim := open(t, path)
	_, err := sim.DB.Exec(`PRAGMA synchronous = OFF`)
	require.NoError(t, err)
	return sim
}

func open(t testing.TB, dsn string) *SimDB {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	// one connection, otherwise every connection sees its own empty database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(ddl)
	require.NoError(t, err)
	for id, name := range []string{WildType, Mutant469Y, Mutant675V, Double} {
		_, err = db.Exec(`INSERT INTO genotype (id, name) VALUES (?, ?)`, id+1, name)
		require.NoError(t, err)
	}
	return &SimDB{DB: db, t: t}
}

// GenotypeID returns the id assigned to a fixture genotype name.
func GenotypeID(name string) int64 {
	switch name {
	case Mutant469Y:
		return 2
	case Mutant675V:
		return 3
	case Double:
		return 4
	}
	return 1
}

// Configuration inserts a configuration row.
func (s *SimDB) Configuration(id, studyID int64, filename string) {
	_, err := s.DB.Exec(`INSERT INTO configuration (id, studyid, filename) VALUES (?, ?, ?)`, id, studyID, filename)
	require.NoError(s.t, err)
}

// Replicate inserts a replicate; an empty end time leaves it running.
func (s *SimDB) Replicate(id, configurationID int64, start, end string) {
	var endValue any
	if end != "" {
		endValue = end
	}
	_, err := s.DB.Exec(`INSERT INTO replicate (id, configurationid, starttime, endtime) VALUES (?, ?, ?, ?)`,
		id, configurationID, start, endValue)
	require.NoError(s.t, err)
}

// Site describes one district's monthly site data.
type Site struct {
	District, Infections, Clinical, Treatments, Failures int64
}

// Genome describes one district's genotype counts.
type Genome struct {
	District    int64
	Genotype    string
	Occurrences int64
	Clinical    int64
	Weighted    float64
}

// Month records one reporting day for a replicate.
func (s *SimDB) Month(replicateID, days int64, sites []Site, genomes []Genome) {
	res, err := s.DB.Exec(`INSERT INTO monthlydata (replicateid, dayselapsed) VALUES (?, ?)`, replicateID, days)
	require.NoError(s.t, err)
	id, err := res.LastInsertId()
	require.NoError(s.t, err)
	for _, site := range sites {
		_, err = s.DB.Exec(`INSERT INTO monthlysitedata VALUES (?, ?, ?, ?, ?, ?)`,
			id, site.District, site.Infections, site.Clinical, site.Treatments, site.Failures)
		require.NoError(s.t, err)
	}
	for _, g := range genomes {
		_, err = s.DB.Exec(`INSERT INTO monthlygenomedata VALUES (?, ?, ?, ?, ?, ?)`,
			id, GenotypeID(g.Genotype), g.District, g.Occurrences, g.Clinical, g.Weighted)
		require.NoError(s.t, err)
	}
}
