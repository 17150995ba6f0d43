// report/emitter.go
package report

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/masim/analysis/blob"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
)

// Emitter renders artifacts into memory and hands them to a sink, keeping
// the index of what was written.
type Emitter struct {
	sink  blob.Sink
	index *Index
}

func NewEmitter(sink blob.Sink, title, runID string) *Emitter {
	return &Emitter{sink: sink, index: &Index{Title: title, RunID: runID, Generated: time.Now().UTC()}}
}

// Emit stores whatever fill writes under key.
func (e *Emitter) Emit(ctx context.Context, key, title string, fill func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fill(&buf); err != nil {
		return err
	}
	if err := e.sink.Put(ctx, key, bytes.NewReader(buf.Bytes()), blob.ContentType(key)); err != nil {
		return err
	}
	e.index.Add(key, title)
	log.WithField("location", e.sink.Location(key)).Info("Report: written")
	return nil
}

// EmitPlot renders p as a PNG.
func (e *Emitter) EmitPlot(ctx context.Context, key string, p *plot.Plot) error {
	return e.Emit(ctx, key, p.Title.Text, func(w io.Writer) error {
		return WritePNG(w, p)
	})
}

// Artifacts returns what has been emitted so far.
func (e *Emitter) Artifacts() []Artifact {
	return e.index.Artifacts
}

// Close writes index.html listing every artifact.
func (e *Emitter) Close(ctx context.Context) error {
	var buf bytes.Buffer
	if err := e.index.Write(&buf); err != nil {
		return err
	}
	return e.sink.Put(ctx, "index.html", &buf, "text/html; charset=utf-8")
}
