package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/usecase"
)

type AnalyticsHandler struct {
	Analytics *usecase.AnalyticsUseCase
	Logger    *zap.Logger
}

func NewAnalyticsHandler(analytics *usecase.AnalyticsUseCase, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{Analytics: analytics, Logger: logger}
}

func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	d, err := h.Analytics.Dashboard(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *AnalyticsHandler) LeadQuality(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	q, err := h.Analytics.LeadQuality(r.Context(), userID, r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *AnalyticsHandler) CampaignPerformance(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := h.Analytics.CampaignPerformance(r.Context(), userID, r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
