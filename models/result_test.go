package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportCollectsFailures(t *testing.T) {
	r := NewReport("merge")
	r.Add("cfgA.csv", "cfgA.yml", StatusDone)
	r.Fail("cfgB", "cfgB.yaml", errors.New("bad name"))
	r.Add("12", "cfgA.yml", StatusCached)

	assert.Equal(t, 1, r.Count(StatusDone))
	assert.Equal(t, 1, r.Count(StatusCached))
	failures := r.Failures()
	if assert.Len(t, failures, 1) {
		assert.Equal(t, "cfgB", failures[0].Key)
		assert.Equal(t, "cfgB.yaml", failures[0].Configuration)
	}
	assert.ErrorContains(t, r.Err(), "merge cfgB: bad name")
}

func TestReportErrNilWhenClean(t *testing.T) {
	r := NewReport("load")
	r.Add("1", "a.yml", StatusDone)
	assert.NoError(t, r.Err())
}
