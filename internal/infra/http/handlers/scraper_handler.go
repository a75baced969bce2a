package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/usecase"
)

// ScraperHandler receives asynchronous scrape results. It sits behind the
// API key middleware, not user auth.
type ScraperHandler struct {
	Ingest *usecase.IngestUseCase
	Logger *zap.Logger
}

func NewScraperHandler(ingest *usecase.IngestUseCase, logger *zap.Logger) *ScraperHandler {
	return &ScraperHandler{Ingest: ingest, Logger: logger}
}

func (h *ScraperHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var input usecase.ScraperCallbackInput
	if !decodeJSON(w, r, &input) {
		return
	}
	result, err := h.Ingest.HandleCallback(r.Context(), input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Info("scraper callback ingested",
		zap.String("project_id", input.ProjectID), zap.Int("created", result.Created))
	writeJSON(w, http.StatusOK, result)
}
