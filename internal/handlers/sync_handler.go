package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/prudhvinik1/fieldsync/internal/scheduler"
	"github.com/prudhvinik1/fieldsync/internal/services"
)

// JobStatusProvider reports the background job state.
type JobStatusProvider interface {
	Status(name string) (scheduler.JobStatus, bool)
}

type SyncHandler struct {
	engine SyncService
	jobs   JobStatusProvider
}

func NewSyncHandler(engine SyncService, jobs JobStatusProvider) *SyncHandler {
	return &SyncHandler{engine: engine, jobs: jobs}
}

type statusResponse struct {
	*services.SyncStatus
	Job *scheduler.JobStatus `json:"job,omitempty"`
}

type retryResponse struct {
	Records int64 `json:"records"`
	Entries int64 `json:"entries"`
}

// Reconcile runs one reconcile-all pass and reports its summary.
func (h *SyncHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) RetryExhausted(w http.ResponseWriter, r *http.Request) {
	records, entries, err := h.engine.RetryExhausted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, retryResponse{Records: records, Entries: entries})
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := statusResponse{SyncStatus: status}
	if h.jobs != nil {
		if job, ok := h.jobs.Status(scheduler.ReconcileJobName); ok {
			resp.Job = &job
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) Queue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.ListQueue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*models.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Remote returns the remote subtree under the wildcard path.
func (h *SyncHandler) Remote(w http.ResponseWriter, r *http.Request) {
	doc, err := h.engine.RemoteGet(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
