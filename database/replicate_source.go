// database/replicate_source.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/masim/analysis/config"
	"github.com/masim/analysis/models"
)

// Querier is the slice of *sql.DB the loader needs. Column order of the
// result is all that is relied on.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReplicateSource reads replicate lists and replicate rows from the
// simulation schema.
type ReplicateSource struct {
	db         Querier
	driver     string
	tables     string
	schema     models.Schema
	patterns   map[string]string
	warmupDays int64
}

// NewReplicateSource builds a source for the configured driver, table
// schema, tracked mutations and warm-up cutoff.
func NewReplicateSource(db Querier, cfg *config.Config, schema models.Schema) (*ReplicateSource, error) {
	if !identifier.MatchString(cfg.Database.Schema) {
		return nil, fmt.Errorf("invalid database schema name %q", cfg.Database.Schema)
	}
	patterns := make(map[string]string, len(cfg.Mutations))
	for _, m := range cfg.Mutations {
		patterns[m.Key] = m.Pattern
	}
	for _, k := range schema.Mutations() {
		if _, ok := patterns[k]; !ok {
			return nil, fmt.Errorf("no genotype pattern configured for mutation %s", k)
		}
	}
	return &ReplicateSource{
		db:         db,
		driver:     cfg.Database.Driver,
		tables:     cfg.Database.Schema,
		schema:     schema,
		patterns:   patterns,
		warmupDays: cfg.WarmupDays(),
	}, nil
}

// ListReplicates returns the completed replicates of a study ordered by
// configuration id descending, study, filename and replicate id.
func (s *ReplicateSource) ListReplicates(ctx context.Context, studyID int64) ([]models.Replicate, error) {
	query := s.rebind(fmt.Sprintf(`
		SELECT c.id AS configurationid,
			c.studyid,
			c.filename,
			r.id AS replicateid,
			r.starttime,
			r.endtime
		FROM %[1]s.replicate r
			INNER JOIN %[1]s.configuration c ON c.id = r.configurationid
		WHERE r.endtime IS NOT NULL
			AND c.studyid = ?
		ORDER BY c.id DESC, c.studyid, c.filename, r.id`, s.tables))

	rows, err := s.db.QueryContext(ctx, query, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query replicates for study %d: %w", studyID, err)
	}
	defer rows.Close()

	var replicates []models.Replicate
	for rows.Next() {
		var r models.Replicate
		var start, end sql.NullString
		if err := rows.Scan(&r.ConfigurationID, &r.StudyID, &r.Filename, &r.ReplicateID, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan replicate row: %w", err)
		}
		r.StartTime, r.EndTime = start.String, end.String
		replicates = append(replicates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replicate rows: %w", err)
	}
	return replicates, nil
}

// ReplicateRows returns the district level rows of one replicate beyond the
// warm-up cutoff, ordered by day then district. Missing genotype sums are
// zero, never null.
func (s *ReplicateSource) ReplicateRows(ctx context.Context, replicateID int64) ([]models.ReplicateRow, error) {
	query, args := s.replicateQuery(replicateID)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query replicate %d: %w", replicateID, err)
	}
	defer rows.Close()

	var out []models.ReplicateRow
	for rows.Next() {
		row := s.schema.NewRow()
		if err := rows.Scan(s.schema.ScanTargets(&row)...); err != nil {
			return nil, fmt.Errorf("failed to scan replicate %d row: %w", replicateID, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replicate %d rows: %w", replicateID, err)
	}
	return out, nil
}

// replicateQuery assembles one LEFT JOIN per schema key. Either matches a
// genotype carrying any tracked marker, so it counts each genotype once.
func (s *ReplicateSource) replicateQuery(replicateID int64) (string, []any) {
	var sel, joins strings.Builder
	args := []any{replicateID, s.warmupDays}

	for i, key := range s.schema.Keys() {
		alias := "g" + strconv.Itoa(i)
		suffix := strings.ToLower(key)
		for _, col := range []string{"occurrences", "clinicaloccurrences", "weightedoccurrences"} {
			fmt.Fprintf(&sel, "\n\t\t\tCASE WHEN %[1]s.%[2]s IS NULL THEN 0 ELSE %[1]s.%[2]s END AS %[2]s_%[3]s,", alias, col, suffix)
		}

		var patterns []string
		if key == models.Either {
			for _, k := range s.schema.Mutations() {
				patterns = append(patterns, s.patterns[k])
			}
		} else {
			patterns = []string{s.patterns[key]}
		}
		likes := make([]string, len(patterns))
		for j := range patterns {
			likes[j] = "g.name LIKE ?"
		}
		args = append(args, replicateID, s.warmupDays)
		for _, p := range patterns {
			args = append(args, p)
		}

		fmt.Fprintf(&joins, `
		LEFT JOIN (
			SELECT md.replicateid, md.dayselapsed, mgd.location AS district,
				SUM(mgd.occurrences) AS occurrences,
				SUM(mgd.clinicaloccurrences) AS clinicaloccurrences,
				SUM(mgd.weightedoccurrences) AS weightedoccurrences
			FROM %[1]s.monthlydata md
				INNER JOIN %[1]s.monthlygenomedata mgd ON mgd.monthlydataid = md.id
				INNER JOIN %[1]s.genotype g ON g.id = mgd.genomeid
			WHERE md.replicateid = ?
				AND md.dayselapsed > ?
				AND (%[2]s)
			GROUP BY md.replicateid, md.dayselapsed, mgd.location) %[3]s ON (%[3]s.replicateid = sd.replicateid
				AND %[3]s.dayselapsed = sd.dayselapsed
				AND %[3]s.district = sd.district)`, s.tables, strings.Join(likes, " OR "), alias)
	}
	args = append(args, replicateID)

	query := fmt.Sprintf(`
		SELECT c.id AS configurationid, sd.replicateid, sd.dayselapsed, sd.district,
			sd.infectedindividuals, sd.clinicalepisodes,%[2]s
			sd.treatments, sd.treatmentfailures
		FROM (
			SELECT md.replicateid, md.dayselapsed, msd.location AS district,
				SUM(msd.infectedindividuals) AS infectedindividuals,
				SUM(msd.clinicalepisodes) AS clinicalepisodes,
				SUM(msd.treatments) AS treatments,
				SUM(msd.treatmentfailures) AS treatmentfailures
			FROM %[1]s.monthlydata md
				INNER JOIN %[1]s.monthlysitedata msd ON msd.monthlydataid = md.id
			WHERE md.replicateid = ?
				AND md.dayselapsed > ?
			GROUP BY md.replicateid, md.dayselapsed, msd.location) sd%[3]s
			INNER JOIN %[1]s.replicate r ON r.id = sd.replicateid
			INNER JOIN %[1]s.configuration c ON c.id = r.configurationid
		WHERE r.endtime IS NOT NULL
			AND r.id = ?
		ORDER BY sd.replicateid, sd.dayselapsed, sd.district`, s.tables, sel.String(), joins.String())
	return query, args
}

// rebind turns ? placeholders into $n for the pgx driver.
func (s *ReplicateSource) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
