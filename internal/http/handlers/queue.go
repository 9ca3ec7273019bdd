package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"calmiverse/internal/queue"
)

// QueueSnapshot exposes the manager's view of the authenticated user's jobs.
// The optional status filter accepts pending or processing.
func (a *App) QueueSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var jobs []queue.Job
	switch r.URL.Query().Get("status") {
	case "pending":
		jobs = a.Queue.Pending()
	case "processing":
		jobs = a.Queue.Processing()
	case "":
		jobs = a.Queue.All()
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "status must be pending or processing")
		return
	}

	mine := make([]queue.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.OwnerID == userID {
			mine = append(mine, job)
		}
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": mine})
}

// RemoveJob drops a tracked job from the local queue. The story row is left
// untouched.
func (a *App) RemoveJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	id := chi.URLParam(r, "id")
	job, ok := a.Queue.Get(id)
	if !ok || job.OwnerID != userID {
		a.error(w, http.StatusNotFound, "not_found", "job not tracked")
		return
	}
	a.Queue.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
