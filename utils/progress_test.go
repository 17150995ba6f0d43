package utils

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestNonTerminalProgressLogs(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	log.SetLevel(log.InfoLevel)

	p := NewProgress("Loading", &bytes.Buffer{})
	for i := 0; i <= 20; i++ {
		p.Update(i, 20)
	}
	p.Done()

	entries := hook.AllEntries()
	if assert.NotEmpty(t, entries) {
		assert.Equal(t, "Loading: 20 of 20 processed (100%)", entries[len(entries)-1].Message)
	}
	// one line per 10% step
	assert.Len(t, entries, 10)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Update(1, 3)
	r.Update(3, 3)
	r.Done()
	done, total := r.Last()
	assert.Equal(t, 3, done)
	assert.Equal(t, 3, total)
	assert.True(t, r.Finished)
}

func TestBarRendersCounts(t *testing.T) {
	var buf bytes.Buffer
	b := newBar("Merging", &buf, 10)
	b.Update(1, 2)
	assert.True(t, strings.HasPrefix(buf.String(), "\rMerging "))
	assert.Contains(t, buf.String(), "50%")
	assert.True(t, strings.HasSuffix(buf.String(), "(1 of 2)"))

	buf.Reset()
	b.Done()
	assert.Contains(t, buf.String(), "100%")
	assert.True(t, strings.HasSuffix(buf.String(), "(2 of 2)\n"))
}
