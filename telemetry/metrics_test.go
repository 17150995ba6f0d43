package telemetry

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ReplicateFetched()
	m.ReplicateCached()
	m.ReplicateCached()
	m.ItemFailed("merge")
	m.CacheLookup("hit")
	m.StageDone("load", time.Now(), true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.replicatesFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.replicatesCached))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.itemFailures.WithLabelValues("merge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("load")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ReplicateFetched()
	m.ItemFailed("load")
	m.StageDone("load", time.Now(), true)
	assert.NoError(t, m.WriteTextfile("/nonexistent/file.prom"))
}

func TestWriteTextfileAndHandler(t *testing.T) {
	m := New()
	m.ReplicateFetched()

	path := filepath.Join(t.TempDir(), "masim.prom")
	require.NoError(t, m.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "masim_analysis_replicates_fetched_total 1")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "masim_analysis_replicates_fetched_total 1")
}
