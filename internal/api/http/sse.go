package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SSE event names.
const (
	eventUpdate = "update"
	eventDone   = "done"
)

// StreamEvents handles GET /tasks/{taskID}/events. The stream carries one event per
// observed change and ends after a terminal snapshot or when the client goes away.
func (h *TaskHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	handle, err := h.taskService.Watch(taskID)
	if err != nil {
		h.fail(w, "failed to watch task", taskID, err)
		return
	}
	defer h.taskService.Release(handle)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case obs, ok := <-handle.Updates():
			if !ok {
				return
			}

			data, err := json.Marshal(NewTaskView(obs))
			if err != nil {
				h.logger.Error("failed to encode event", "task_id", taskID, "error", err)
				return
			}

			event := eventUpdate
			if obs.Terminal() {
				event = eventDone
			}
			if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, obs.Seq, data); err != nil {
				return
			}
			flusher.Flush()

			if obs.Terminal() {
				return
			}

		case <-ctx.Done():
			h.logger.Debug("event stream closed by client", "task_id", taskID)
			return
		}
	}
}
