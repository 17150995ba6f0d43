// models/replicate.go
package models

// Replicate is one completed simulation run as listed by the simulation
// database. Only runs with a non-null end time are ever listed.
// The csv tags give the column names of the (headerless) replicate list file.
type Replicate struct {
	ConfigurationID int64  `csv:"configurationid"`
	StudyID         int64  `csv:"studyid"`
	Filename        string `csv:"filename"` // configuration's source yml
	ReplicateID     int64  `csv:"replicateid"`
	StartTime       string `csv:"starttime"`
	EndTime         string `csv:"endtime"`
}

// ReplicateListHeader is the positional column order of the replicate list file.
var ReplicateListHeader = []string{"configurationid", "studyid", "filename", "replicateid", "starttime", "endtime"}

// GenotypeCounts holds the summed genotype counters for one tracked mutation key.
type GenotypeCounts struct {
	Occurrences         int64
	ClinicalOccurrences int64
	WeightedOccurrences float64
}

// ReplicateRow is one (replicate, elapsed day, district) observation.
// Genotypes is aligned with Schema.Keys().
type ReplicateRow struct {
	ConfigurationID  int64
	ReplicateID      int64
	DaysElapsed      int64
	District         int64
	Infections       int64
	ClinicalEpisodes int64
	Genotypes        []GenotypeCounts
	Treatments       int64
	Failures         int64
}

// GroupByConfiguration splits the list by filename, keeping the first-seen
// order of configurations and the list order of replicates inside each.
func GroupByConfiguration(replicates []Replicate) (order []string, groups map[string][]int64) {
	groups = make(map[string][]int64)
	for _, r := range replicates {
		if _, ok := groups[r.Filename]; !ok {
			order = append(order, r.Filename)
		}
		groups[r.Filename] = append(groups[r.Filename], r.ReplicateID)
	}
	return order, groups
}
