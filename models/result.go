// models/result.go
package models

import (
	"errors"
	"fmt"
)

// Status is the outcome of processing one item of a pipeline loop.
type Status string

const (
	StatusDone    Status = "done"
	StatusCached  Status = "cached"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ItemResult records what happened to one replicate or configuration.
type ItemResult struct {
	Key           string // replicate id or output name
	Configuration string // configuration filename, when known
	Status        Status
	Err           error
}

func (r ItemResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s (configuration %s): %s: %v", r.Key, r.Configuration, r.Status, r.Err)
	}
	return fmt.Sprintf("%s (configuration %s): %s", r.Key, r.Configuration, r.Status)
}

// Report collects per-item results of one stage so callers can inspect
// failures instead of parsing log output.
type Report struct {
	Stage string
	Items []ItemResult
}

// NewReport starts an empty report for stage.
func NewReport(stage string) *Report {
	return &Report{Stage: stage}
}

// Add records an item outcome.
func (r *Report) Add(key, configuration string, status Status) {
	r.Items = append(r.Items, ItemResult{Key: key, Configuration: configuration, Status: status})
}

// Fail records a failed item.
func (r *Report) Fail(key, configuration string, err error) {
	r.Items = append(r.Items, ItemResult{Key: key, Configuration: configuration, Status: StatusFailed, Err: err})
}

// Count returns how many items ended with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the failed items in the order they occurred.
func (r *Report) Failures() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Status == StatusFailed {
			out = append(out, it)
		}
	}
	return out
}

// Err joins all item errors, or returns nil when nothing failed.
func (r *Report) Err() error {
	var errs []error
	for _, it := range r.Failures() {
		errs = append(errs, fmt.Errorf("%s %s: %w", r.Stage, it.Key, it.Err))
	}
	return errors.Join(errs...)
}
