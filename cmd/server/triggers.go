package main

import (
	"encoding/json"
	"net/http"

	"boardcast/internal/logging"
	"boardcast/pkg/domain"
	"boardcast/pkg/hub"

	"github.com/go-chi/chi/v5"
)

// newTriggerRoutes mounts the internal trigger endpoints the task mutation
// service calls after committing a write. Each endpoint fans the event out to
// every realtime connection on the board and answers 202; delivery is
// fire-and-forget, so the caller never blocks on slow members.
func newTriggerRoutes(notifier hub.Notifier, logger *logging.Logger) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/task-created", func(w http.ResponseWriter, req *http.Request) {
			boardID := chi.URLParam(req, "boardID")

			var task domain.Task
			if !decode(w, req, logger, &task) {
				return
			}

			notifier.BroadcastTaskCreated(req.Context(), boardID, task)
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/task-updated", func(w http.ResponseWriter, req *http.Request) {
			boardID := chi.URLParam(req, "boardID")

			var task domain.Task
			if !decode(w, req, logger, &task) {
				return
			}

			notifier.BroadcastTaskUpdated(req.Context(), boardID, task)
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/task-deleted", func(w http.ResponseWriter, req *http.Request) {
			boardID := chi.URLParam(req, "boardID")

			var body domain.TaskDeletedEvent
			if !decode(w, req, logger, &body) {
				return
			}

			notifier.BroadcastTaskDeleted(req.Context(), boardID, body.TaskID)
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/task-moved", func(w http.ResponseWriter, req *http.Request) {
			boardID := chi.URLParam(req, "boardID")

			var body domain.TaskMovedEvent
			if !decode(w, req, logger, &body) {
				return
			}

			notifier.BroadcastTaskMoved(req.Context(), boardID, body.TaskID, body.NewColumnID, body.NewOrder)
			w.WriteHeader(http.StatusAccepted)
		})

		r.Post("/columns-reordered", func(w http.ResponseWriter, req *http.Request) {
			boardID := chi.URLParam(req, "boardID")

			var body domain.ColumnsReorderedEvent
			if !decode(w, req, logger, &body) {
				return
			}

			notifier.BroadcastColumnsReordered(req.Context(), boardID, body.Columns)
			w.WriteHeader(http.StatusAccepted)
		})
	}
}

func decode(w http.ResponseWriter, req *http.Request, logger *logging.Logger, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		logger.Warn("malformed trigger payload", "path", req.URL.Path, "error", err)
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return false
	}
	return true
}
