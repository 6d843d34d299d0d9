package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/captionsync/backend/internal/job"
)

type JobHandler struct {
	queue      *job.JobQueue
	targetLang string
}

func NewJobHandler(queue *job.JobQueue, targetLang string) *JobHandler {
	return &JobHandler{queue: queue, targetLang: targetLang}
}

// EnqueueTranslate queues a batch translation of captions
func (h *JobHandler) EnqueueTranslate(w http.ResponseWriter, r *http.Request) {
	var params job.TranslateParams
	if err := decodeJSON(r, &params); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(params.CaptionIDs) == 0 {
		jsonError(w, "caption_ids is required", http.StatusBadRequest)
		return
	}
	if params.TargetLang == "" {
		params.TargetLang = h.targetLang
	}

	subject := fmt.Sprintf("%d captions", len(params.CaptionIDs))
	j, err := h.queue.Enqueue(job.JobTranslateCaptions, subject, params)
	if err != nil {
		jsonError(w, "failed to enqueue job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, j, http.StatusAccepted)
}

// ListJobs returns all jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.queue.ListJobs()
	if err != nil {
		jsonError(w, "failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	jsonResponse(w, jobs, http.StatusOK)
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.queue.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, j, http.StatusOK)
}

// CancelJob cancels a pending or running job
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.CancelJob(chi.URLParam(r, "id")); err != nil {
		jsonError(w, "failed to cancel job: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryJob re-queues a failed or cancelled job
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.queue.RetryJob(chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, job.ErrNotRetryable) {
			status = http.StatusConflict
		} else if errors.Is(err, sql.ErrNoRows) {
			status = http.StatusNotFound
		}
		jsonError(w, "failed to retry job: "+err.Error(), status)
		return
	}
	jsonResponse(w, j, http.StatusOK)
}
