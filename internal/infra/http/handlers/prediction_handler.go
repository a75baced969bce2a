package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/usecase"
)

type PredictionHandler struct {
	Enrich *usecase.EnrichLeadUseCase
	Logger *zap.Logger
}

func NewPredictionHandler(enrich *usecase.EnrichLeadUseCase, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{Enrich: enrich, Logger: logger}
}

func (h *PredictionHandler) PredictEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var in usecase.PredictEmailInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.Enrich.PredictEmail(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
