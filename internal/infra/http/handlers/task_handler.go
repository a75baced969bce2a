package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/usecase"
)

type TaskHandler struct {
	Tracker *usecase.TaskTracker
	Logger  *zap.Logger
}

func NewTaskHandler(tracker *usecase.TaskTracker, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{Tracker: tracker, Logger: logger}
}

// Get reports a queued scrape or import and, once it finished, its counts.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	rec, err := h.Tracker.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
