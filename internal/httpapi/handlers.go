// Package httpapi exposes JobManager's operations over HTTP: a thin
// adapter with no crawl logic of its own, routed with
// github.com/gorilla/mux.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/jobmanager"
	"github.com/VamsiGaletiInfinize/crawler/internal/models"
	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// Handler wires JobManager and Store into HTTP handlers.
type Handler struct {
	manager  *jobmanager.Manager
	store    store.Store
	logger   arbor.ILogger
	defaults models.JobConfig
}

// NewHandler constructs a Handler. An optional defaults JobConfig (the
// environment/config-driven baseline CreateJob applies to omitted fields)
// may be passed; it falls back to models.DefaultJobConfig() otherwise.
func NewHandler(manager *jobmanager.Manager, st store.Store, logger arbor.ILogger, defaults ...models.JobConfig) *Handler {
	d := models.DefaultJobConfig()
	if len(defaults) > 0 {
		d = defaults[0]
	}
	return &Handler{manager: manager, store: st, logger: logger, defaults: d}
}

// createJobRequest is the CreateJob request body; unset fields fall
// back to the Handler's defaults (see NewHandler).
type createJobRequest struct {
	SeedURL              string   `json:"seedUrl"`
	Domain               string   `json:"domain,omitempty"`
	MaxDepth             *int     `json:"maxDepth,omitempty"`
	MaxPages             *int     `json:"maxPages,omitempty"`
	MaxConcurrentWorkers *int     `json:"maxConcurrentWorkers,omitempty"`
	CrawlDelayMs         *int     `json:"crawlDelayMs,omitempty"`
	RespectRobotsTxt     *bool    `json:"respectRobotsTxt,omitempty"`
	IncludePatterns      []string `json:"includePatterns,omitempty"`
	ExcludePatterns      []string `json:"excludePatterns,omitempty"`
	MaxRetries           *int     `json:"maxRetries,omitempty"`
	RequestTimeoutMs     *int     `json:"requestTimeoutMs,omitempty"`
}

// CreateJob handles POST /jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg := h.defaults
	cfg.SeedURL = req.SeedURL
	cfg.Domain = req.Domain
	if req.MaxDepth != nil {
		cfg.MaxDepth = *req.MaxDepth
	}
	if req.MaxPages != nil {
		cfg.MaxPages = *req.MaxPages
	}
	if req.MaxConcurrentWorkers != nil {
		cfg.MaxConcurrentWorkers = *req.MaxConcurrentWorkers
	}
	if req.CrawlDelayMs != nil {
		cfg.CrawlDelayMs = *req.CrawlDelayMs
	}
	if req.RespectRobotsTxt != nil {
		cfg.RespectRobotsTxt = *req.RespectRobotsTxt
	}
	if req.IncludePatterns != nil {
		cfg.IncludePatterns = req.IncludePatterns
	}
	if req.ExcludePatterns != nil {
		cfg.ExcludePatterns = req.ExcludePatterns
	}
	if req.MaxRetries != nil {
		cfg.MaxRetries = *req.MaxRetries
	}
	if req.RequestTimeoutMs != nil {
		cfg.RequestTimeoutMs = *req.RequestTimeoutMs
	}

	job, err := h.manager.CreateJob(r.Context(), cfg)
	if verr, ok := err.(*models.ValidationError); ok {
		WriteError(w, http.StatusBadRequest, verr.Error())
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("create job failed")
		WriteError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles GET /jobs/{id}, returning the full projection: job +
// queue stats + computed ETA and crawlRate.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	proj, err := h.manager.GetJobProjection(r.Context(), id)
	if err == store.ErrNotFound {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("job", id).Msg("get job failed")
		WriteError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":          proj.Job,
		"queue":        proj.Queue,
		"etaSeconds":   proj.ETASeconds,
		"crawlRateSec": proj.CrawlRatePerSec,
	})
}

// ListJobs handles GET /jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 20, 100)
	status := models.JobStatus(r.URL.Query().Get("status"))

	jobs, total, err := h.store.ListJobs(r.Context(), status, limit, (page-1)*limit)
	if err != nil {
		h.logger.Warn().Err(err).Msg("list jobs failed")
		WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": jobs, "total": total, "page": page, "limit": limit,
	})
}

// ListPages handles GET /jobs/{id}/pages.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	page, limit := pageParams(r, 50, 1000)

	var statusFilter *models.PageStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := models.PageStatus(v)
		statusFilter = &s
	}

	pages, total, err := h.store.ListPages(r.Context(), id, statusFilter, limit, (page-1)*limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("job", id).Msg("list pages failed")
		WriteError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pages": pages, "total": total, "page": page, "limit": limit,
	})
}

// GetPage handles GET /jobs/{id}/pages/{pageId}, a direct indexed
// (jobId, pageId) lookup: a real index hit regardless of how many pages
// the job has accumulated, never a scan over the first page of results.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID, pageID := vars["id"], vars["pageId"]

	page, err := h.store.GetPage(r.Context(), jobID, pageID)
	if err == store.ErrNotFound {
		WriteError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("job", jobID).Str("page", pageID).Msg("get page failed")
		WriteError(w, http.StatusInternalServerError, "failed to load page")
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// ExportPages handles GET /jobs/{id}/export, streaming completed pages
// as json or csv directly off the Store cursor.
func (h *Handler) ExportPages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="pages.csv"`)
	default:
		WriteError(w, http.StatusBadRequest, "unsupported format: "+format)
		return
	}

	if err := h.store.StreamCompletedPages(r.Context(), id, w, format); err != nil {
		h.logger.Warn().Err(err).Str("job", id).Msg("export pages failed")
	}
}

// CancelJob handles POST /jobs/{id}/cancel.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.CancelJob(r.Context(), id); err != nil {
		h.writeLifecycleError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// PauseJob handles POST /jobs/{id}/pause.
func (h *Handler) PauseJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.PauseJob(r.Context(), id); err != nil {
		h.writeLifecycleError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeJob handles POST /jobs/{id}/resume.
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.ResumeJob(r.Context(), id); err != nil {
		h.writeLifecycleError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (h *Handler) writeLifecycleError(w http.ResponseWriter, id string, err error) {
	if err == store.ErrNotFound {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}
	WriteError(w, http.StatusBadRequest, err.Error())
}

// Health handles GET /health, reporting {database, queue-store: up|down}.
// This design has no separate ephemeral queue store (see DESIGN.md), so
// both components are backed by the same Store.Ping reachability check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "up"
	httpStatus := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "down"
		httpStatus = http.StatusServiceUnavailable
	}
	WriteJSON(w, httpStatus, map[string]string{
		"database":    status,
		"queue-store": status,
	})
}
