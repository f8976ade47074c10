package handlers

import (
	"errors"
	"net/http"

	"FrameForge/internal/job"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// JobsHandler handles job status requests
type JobsHandler struct {
	tracker *job.Tracker
	status  job.StatusStore
	logger  *zap.Logger
}

// statusRecord is served when only the status store knows the job
type statusRecord struct {
	ID string `json:"id"`
	job.StatusUpdate
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(tracker *job.Tracker, status job.StatusStore, logger *zap.Logger) *JobsHandler {
	if status == nil {
		status = job.NopStatusStore{}
	}
	return &JobsHandler{
		tracker: tracker,
		status:  status,
		logger:  logger,
	}
}

// GetJob returns the last known snapshot of a job handled by this instance,
// falling back to the persisted outcome for jobs run elsewhere.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if snapshot, ok := h.tracker.Get(id); ok {
		writeJSON(w, http.StatusOK, snapshot)
		h.logger.Debug("Job status retrieved",
			zap.String("job_id", id),
			zap.String("status", string(snapshot.Status)),
		)
		return
	}

	update, err := h.status.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrStatusNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error("Failed to read job status", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read job status")
		return
	}
	writeJSON(w, http.StatusOK, statusRecord{ID: id, StatusUpdate: *update})
}
