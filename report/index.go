// report/index.go
package report

import (
	"html/template"
	"io"
	"path"
	"slices"
	"strings"
	"time"
)

// Artifact is one file listed on the index page.
type Artifact struct {
	Key   string
	Kind  string
	Title string
}

// Index collects the artifacts of a run.
type Index struct {
	Title     string
	RunID     string
	Generated time.Time
	Artifacts []Artifact
}

func (ix *Index) Add(key, title string) {
	ix.Artifacts = append(ix.Artifacts, Artifact{Key: key, Kind: kindOf(key), Title: title})
}

func kindOf(key string) string {
	switch path.Ext(key) {
	case ".png":
		return "chart"
	case ".csv":
		return "table"
	case ".npy":
		return "matrix"
	}
	return "file"
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Run {{.RunID}}, generated {{.Generated.Format "2006-01-02 15:04 MST"}}</p>
{{range .Sections}}<h2>{{.Kind}}</h2>
<ul class="{{.Kind}}">
{{range .Artifacts}}<li><a href="{{.Key}}">{{.Title}}</a></li>
{{end}}</ul>
{{end}}</body>
</html>
`))

type section struct {
	Kind      string
	Artifacts []Artifact
}

// Write renders the page. Artifacts are grouped by kind and sorted by key.
func (ix *Index) Write(w io.Writer) error {
	byKind := make(map[string][]Artifact)
	for _, a := range ix.Artifacts {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}
	var sections []section
	for _, kind := range []string{"table", "chart", "matrix", "file"} {
		list := byKind[kind]
		if len(list) == 0 {
			continue
		}
		slices.SortFunc(list, func(a, b Artifact) int { return strings.Compare(a.Key, b.Key) })
		sections = append(sections, section{Kind: kind, Artifacts: list})
	}
	return indexTemplate.Execute(w, struct {
		*Index
		Sections []section
	}{ix, sections})
}
