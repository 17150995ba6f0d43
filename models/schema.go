// models/schema.go
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Either is the combined key: a genotype carrying any tracked marker.
const Either = "either"

// Kind is the value type of a row file column.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
)

// Role is the meaning of a row file column, independent of its position.
type Role int

const (
	RoleConfiguration Role = iota
	RoleReplicate
	RoleDays
	RoleDistrict
	RoleInfections
	RoleClinicalEpisodes
	RoleOccurrences
	RoleClinicalOccurrences
	RoleWeightedOccurrences
	RoleTreatments
	RoleFailures
)

// Field is one column of the replicate row file.
type Field struct {
	Name     string
	Kind     Kind
	Role     Role
	Mutation string // only set for genotype roles
}

// Schema is the positional layout of replicate row files and configuration
// datasets. Every component reading or writing those files goes through it.
type Schema struct {
	mutations []string
	keys      []string
	keyIndex  map[string]int
	fields    []Field
}

// NewSchema builds the layout for the given tracked mutation keys. The
// combined Either key is always appended after them.
func NewSchema(mutations ...string) Schema {
	s := Schema{
		mutations: append([]string(nil), mutations...),
		keyIndex:  make(map[string]int),
	}
	s.keys = append(append([]string(nil), mutations...), Either)
	for i, k := range s.keys {
		s.keyIndex[k] = i
	}
	s.fields = []Field{
		{Name: "configurationid", Role: RoleConfiguration},
		{Name: "replicateid", Role: RoleReplicate},
		{Name: "dayselapsed", Role: RoleDays},
		{Name: "district", Role: RoleDistrict},
		{Name: "infectedindividuals", Role: RoleInfections},
		{Name: "clinicalepisodes", Role: RoleClinicalEpisodes},
	}
	for _, k := range s.keys {
		suffix := strings.ToLower(k)
		s.fields = append(s.fields,
			Field{Name: "occurrences_" + suffix, Role: RoleOccurrences, Mutation: k},
			Field{Name: "clinicaloccurrences_" + suffix, Role: RoleClinicalOccurrences, Mutation: k},
			Field{Name: "weightedoccurrences_" + suffix, Kind: KindFloat, Role: RoleWeightedOccurrences, Mutation: k},
		)
	}
	s.fields = append(s.fields,
		Field{Name: "treatments", Role: RoleTreatments},
		Field{Name: "treatmentfailures", Role: RoleFailures},
	)
	return s
}

// Mutations returns the tracked keys without Either.
func (s Schema) Mutations() []string { return s.mutations }

// Keys returns the tracked keys followed by Either.
func (s Schema) Keys() []string { return s.keys }

// Fields returns the ordered column descriptors.
func (s Schema) Fields() []Field { return s.fields }

// KeyIndex returns the position of key in ReplicateRow.Genotypes.
func (s Schema) KeyIndex(key string) (int, bool) {
	i, ok := s.keyIndex[key]
	return i, ok
}

// Names returns the column names in file order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// NewRow returns an empty row with Genotypes sized for this schema.
func (s Schema) NewRow() ReplicateRow {
	return ReplicateRow{Genotypes: make([]GenotypeCounts, len(s.keys))}
}

// Encode renders a row in column order.
func (s Schema) Encode(r ReplicateRow) []string {
	rec := make([]string, len(s.fields))
	for i, f := range s.fields {
		switch f.Role {
		case RoleConfiguration:
			rec[i] = strconv.FormatInt(r.ConfigurationID, 10)
		case RoleReplicate:
			rec[i] = strconv.FormatInt(r.ReplicateID, 10)
		case RoleDays:
			rec[i] = strconv.FormatInt(r.DaysElapsed, 10)
		case RoleDistrict:
			rec[i] = strconv.FormatInt(r.District, 10)
		case RoleInfections:
			rec[i] = strconv.FormatInt(r.Infections, 10)
		case RoleClinicalEpisodes:
			rec[i] = strconv.FormatInt(r.ClinicalEpisodes, 10)
		case RoleOccurrences:
			rec[i] = strconv.FormatInt(r.Genotypes[s.keyIndex[f.Mutation]].Occurrences, 10)
		case RoleClinicalOccurrences:
			rec[i] = strconv.FormatInt(r.Genotypes[s.keyIndex[f.Mutation]].ClinicalOccurrences, 10)
		case RoleWeightedOccurrences:
			rec[i] = strconv.FormatFloat(r.Genotypes[s.keyIndex[f.Mutation]].WeightedOccurrences, 'f', -1, 64)
		case RoleTreatments:
			rec[i] = strconv.FormatInt(r.Treatments, 10)
		case RoleFailures:
			rec[i] = strconv.FormatInt(r.Failures, 10)
		}
	}
	return rec
}

// Decode parses one record laid out by this schema.
func (s Schema) Decode(rec []string) (ReplicateRow, error) {
	if len(rec) != len(s.fields) {
		return ReplicateRow{}, fmt.Errorf("expected %d columns, got %d", len(s.fields), len(rec))
	}
	row := s.NewRow()
	for i, f := range s.fields {
		if f.Kind == KindFloat {
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return ReplicateRow{}, fmt.Errorf("column %s: %w", f.Name, err)
			}
			row.Genotypes[s.keyIndex[f.Mutation]].WeightedOccurrences = v
			continue
		}
		v, err := parseInteger(rec[i])
		if err != nil {
			return ReplicateRow{}, fmt.Errorf("column %s: %w", f.Name, err)
		}
		*s.intTarget(&row, f) = v
	}
	return row, nil
}

// ScanTargets returns pointers into row in column order, suitable for sql.Rows.Scan.
func (s Schema) ScanTargets(row *ReplicateRow) []any {
	targets := make([]any, len(s.fields))
	for i, f := range s.fields {
		if f.Kind == KindFloat {
			targets[i] = &row.Genotypes[s.keyIndex[f.Mutation]].WeightedOccurrences
			continue
		}
		targets[i] = s.intTarget(row, f)
	}
	return targets
}

func (s Schema) intTarget(row *ReplicateRow, f Field) *int64 {
	switch f.Role {
	case RoleConfiguration:
		return &row.ConfigurationID
	case RoleReplicate:
		return &row.ReplicateID
	case RoleDays:
		return &row.DaysElapsed
	case RoleDistrict:
		return &row.District
	case RoleInfections:
		return &row.Infections
	case RoleClinicalEpisodes:
		return &row.ClinicalEpisodes
	case RoleOccurrences:
		return &row.Genotypes[s.keyIndex[f.Mutation]].Occurrences
	case RoleClinicalOccurrences:
		return &row.Genotypes[s.keyIndex[f.Mutation]].ClinicalOccurrences
	case RoleTreatments:
		return &row.Treatments
	case RoleFailures:
		return &row.Failures
	}
	panic(fmt.Sprintf("field %s has no integer target", f.Name))
}

// parseInteger accepts "12" as well as "12.0", which pandas-era files contain.
func parseInteger(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}
