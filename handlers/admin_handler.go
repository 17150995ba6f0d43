// handlers/admin_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/masim/analysis/models"
	"github.com/masim/analysis/telemetry"
	log "github.com/sirupsen/logrus"
)

// Loader runs the replicate loader for a study.
type Loader interface {
	Run(ctx context.Context, studyID int64) (*models.Report, error)
}

// CacheRefresher rebuilds the aggregate summary of one dataset.
type CacheRefresher interface {
	Refresh(name string) error
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// LoadStatus describes the most recent loader run started over HTTP.
type LoadStatus struct {
	Study    int64      `json:"study"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
	Fetched  int        `json:"fetched"`
	Cached   int        `json:"cached"`
	Failed   int        `json:"failed"`
	Error    string     `json:"error,omitempty"`
}

// AdminHandler serves health, metrics and the admin endpoints. Only one
// loader run may be in flight at a time.
type AdminHandler struct {
	db      Pinger
	loader  Loader
	cache   CacheRefresher
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *LoadStatus
}

func NewAdminHandler(db Pinger, loader Loader, cache CacheRefresher, metrics *telemetry.Metrics) *AdminHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &AdminHandler{db: db, loader: loader, cache: cache, metrics: metrics, ctx: ctx, cancel: cancel}
}

// Routes registers every endpoint on a new mux.
func (h *AdminHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("POST /api/admin/load/{study}", h.StartLoad)
	mux.HandleFunc("GET /api/admin/status", h.Status)
	mux.HandleFunc("POST /api/admin/refresh-cache/{configuration}", h.RefreshCache)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
	return mux
}

// Shutdown cancels a running load and waits for it to stop.
func (h *AdminHandler) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

// Wait blocks until no load is running.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Error marshalling JSON response: %v", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	log.Warnf("API Error %d: %s", code, message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

// Health pings the simulation database.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, fmt.Sprintf("database connection error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// StartLoad starts a loader run for the study in the path and returns
// immediately. A second request while a run is in flight gets 409.
func (h *AdminHandler) StartLoad(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		respondWithError(w, http.StatusServiceUnavailable, "loader not configured")
		return
	}
	study, err := strconv.ParseInt(r.PathValue("study"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid study id '%s'", r.PathValue("study")))
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondWithError(w, http.StatusConflict, "a load is already running")
		return
	}
	h.running = true
	status := &LoadStatus{Study: study, Started: time.Now().UTC()}
	h.last = status
	h.wg.Add(1)
	h.mu.Unlock()

	go h.load(status)
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": fmt.Sprintf("Load of study %d started.", study)})
}

func (h *AdminHandler) load(status *LoadStatus) {
	defer h.wg.Done()
	report, err := h.loader.Run(h.ctx, status.Study)

	h.mu.Lock()
	defer h.mu.Unlock()
	finished := time.Now().UTC()
	status.Finished = &finished
	if report != nil {
		status.Fetched = report.Count(models.StatusDone)
		status.Cached = report.Count(models.StatusCached)
		status.Failed = report.Count(models.StatusFailed)
	}
	if err != nil {
		status.Error = err.Error()
		log.WithField("study", status.Study).Errorf("Admin: load aborted: %v", err)
	}
	h.running = false
}

// Status reports whether a load is running and how the last one went.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	payload := struct {
		Running bool        `json:"running"`
		Last    *LoadStatus `json:"last,omitempty"`
	}{Running: h.running}
	if h.last != nil {
		last := *h.last
		payload.Last = &last
	}
	h.mu.Unlock()
	respondWithJSON(w, http.StatusOK, payload)
}

// RefreshCache discards and rebuilds one configuration's aggregate summary.
func (h *AdminHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		respondWithError(w, http.StatusServiceUnavailable, "aggregate cache not configured")
		return
	}
	name := r.PathValue("configuration")
	if err := h.cache.Refresh(name); err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to refresh %s: %v", name, err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Aggregate summary of %s rebuilt.", name)})
}
