// utils/progress.go
package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

// Progress receives forward-motion updates from long running loops.
// done counts every item handled, cache hits included.
type Progress interface {
	Update(done, total int)
	Done()
}

// NewProgress returns a terminal bar when w is a TTY and a periodic log
// line otherwise.
func NewProgress(label string, w io.Writer) Progress {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return newBar(label, w, 40)
	}
	return &logProgress{label: label, step: 10}
}

// bar redraws one terminal line per update.
type bar struct {
	label string
	w     io.Writer
	model progress.Model
	total int
}

func newBar(label string, w io.Writer, width int) *bar {
	return &bar{label: label, w: w, model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width))}
}

func (b *bar) Update(done, total int) {
	b.total = total
	percent := 1.0
	if total > 0 {
		percent = float64(done) / float64(total)
	}
	fmt.Fprintf(b.w, "\r%s %s (%d of %d)", b.label, b.model.ViewAs(percent), done, total)
}

func (b *bar) Done() {
	b.Update(b.total, b.total)
	fmt.Fprintln(b.w)
}

// logProgress emits a line every step percent.
type logProgress struct {
	label string
	step  int
	last  int
	total int
}

func (p *logProgress) Update(done, total int) {
	p.total = total
	percent := 100
	if total > 0 {
		percent = 100 * done / total
	}
	if percent < p.last+p.step && done != total {
		return
	}
	p.last = percent - percent%p.step
	log.Infof("%s: %d of %d processed (%d%%)", p.label, done, total, percent)
}

func (p *logProgress) Done() {
	if p.last < 100 {
		p.last = 100
		log.Infof("%s: %d of %d processed (100%%)", p.label, p.total, p.total)
	}
}

// Recorder keeps every update; used by tests and by callers that report
// progress elsewhere.
type Recorder struct {
	Updates  [][2]int
	Finished bool
}

func (r *Recorder) Update(done, total int) { r.Updates = append(r.Updates, [2]int{done, total}) }
func (r *Recorder) Done()                  { r.Finished = true }

// Last returns the final (done, total) pair, or zeros.
func (r *Recorder) Last() (done, total int) {
	if len(r.Updates) == 0 {
		return 0, 0
	}
	u := r.Updates[len(r.Updates)-1]
	return u[0], u[1]
}

// ProgressFunc creates a Progress for a labeled loop.
type ProgressFunc func(label string) Progress

// LogProgress reports to stderr, as a bar when it is a terminal.
func LogProgress(label string) Progress {
	return NewProgress(label, os.Stderr)
}

// Quiet discards updates.
func Quiet(string) Progress {
	return &Recorder{}
}
