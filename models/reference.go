// models/reference.go
package models

// MutationPoint is an observed (district, year, frequency) survey value
// published by the GIS data producers. Plotted as a ground-truth marker.
type MutationPoint struct {
	District  string  `csv:"District"`
	MisRegion string  `csv:"MisRegion,omitempty"`
	Year      int     `csv:"Year"`
	Frequency float64 `csv:"Frequency"`
}

// District maps a district label to the numeric id used by the simulation.
type District struct {
	ID    int64  `csv:"ID"`
	Label string `csv:"Label"`
}
