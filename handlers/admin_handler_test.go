package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

// blockingLoader holds every run until release is closed.
type blockingLoader struct {
	started chan int64
	release chan struct{}
}

func (l *blockingLoader) Run(ctx context.Context, studyID int64) (*models.Report, error) {
	l.started <- studyID
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	rep := models.NewReport("load")
	rep.Add("1", "a.yml", models.StatusDone)
	rep.Add("2", "a.yml", models.StatusCached)
	rep.Add("3", "a.yml", models.StatusCached)
	return rep, nil
}

type fakeRefresher struct{ refreshed []string }

func (f *fakeRefresher) Refresh(name string) error {
	if name == "missing" {
		return errors.New("no dataset for missing")
	}
	f.refreshed = append(f.refreshed, name)
	return nil
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := do(t, NewAdminHandler(fakePinger{}, nil, nil, nil).Routes(), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["database"])

	rec, body = do(t, NewAdminHandler(fakePinger{err: errors.New("refused")}, nil, nil, nil).Routes(), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["error"], "refused")
}

func TestLoadRunsOneAtATime(t *testing.T) {
	loader := &blockingLoader{started: make(chan int64, 1), release: make(chan struct{})}
	h := NewAdminHandler(nil, loader, nil, nil)
	defer h.Shutdown()
	routes := h.Routes()

	rec, _ := do(t, routes, http.MethodPost, "/api/admin/load/5")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int64(5), <-loader.started)

	rec, _ = do(t, routes, http.MethodPost, "/api/admin/load/6")
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, body := do(t, routes, http.MethodGet, "/api/admin/status")
	assert.Equal(t, true, body["running"])

	close(loader.release)
	h.Wait()

	_, body = do(t, routes, http.MethodGet, "/api/admin/status")
	assert.Equal(t, false, body["running"])
	last := body["last"].(map[string]any)
	assert.Equal(t, 5.0, last["study"])
	assert.Equal(t, 1.0, last["fetched"])
	assert.Equal(t, 2.0, last["cached"])
	assert.NotEmpty(t, last["finished"])
}

func TestLoadCancelledOnShutdown(t *testing.T) {
	loader := &blockingLoader{started: make(chan int64, 1), release: make(chan struct{})}
	h := NewAdminHandler(nil, loader, nil, nil)
	routes := h.Routes()

	rec, _ := do(t, routes, http.MethodPost, "/api/admin/load/5")
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-loader.started
	h.Shutdown()

	_, body := do(t, routes, http.MethodGet, "/api/admin/status")
	last := body["last"].(map[string]any)
	assert.Equal(t, context.Canceled.Error(), last["error"])
}

func TestLoadRejectsBadStudy(t *testing.T) {
	h := NewAdminHandler(nil, &blockingLoader{}, nil, nil)
	rec, _ := do(t, h.Routes(), http.MethodPost, "/api/admin/load/five")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.Routes(), http.MethodGet, "/api/admin/load/5")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefreshCache(t *testing.T) {
	refresher := &fakeRefresher{}
	routes := NewAdminHandler(nil, nil, refresher, nil).Routes()

	rec, _ := do(t, routes, http.MethodPost, "/api/admin/refresh-cache/cfgA.yml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cfgA.yml"}, refresher.refreshed)

	rec, body := do(t, routes, http.MethodPost, "/api/admin/refresh-cache/missing")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "no dataset")
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := telemetry.New()
	metrics.CacheLookup("hit")
	rec, _ := do(t, NewAdminHandler(nil, nil, nil, metrics).Routes(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `masim_analysis_aggregate_cache_lookups_total{result="hit"} 1`)
}
