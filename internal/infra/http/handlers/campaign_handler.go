package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/usecase"
)

type CampaignHandler struct {
	Campaigns *usecase.CampaignUseCase
	Logger    *zap.Logger
}

func NewCampaignHandler(campaigns *usecase.CampaignUseCase, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{Campaigns: campaigns, Logger: logger}
}

type ScheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.CampaignInput
	if !decodeJSON(w, r, &input) {
		return
	}
	out, err := h.Campaigns.Create(r.Context(), userID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	campaigns, err := h.Campaigns.List(r.Context(), userID, r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	out, err := h.Campaigns.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.CampaignInput
	if !decodeJSON(w, r, &input) {
		return
	}
	out, err := h.Campaigns.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Campaigns.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Schedule takes an optional body; without scheduled_at the campaign only
// starts on an explicit start request.
func (h *CampaignHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req ScheduleRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.Campaigns.Schedule(r.Context(), userID, chi.URLParam(r, "id"), req.ScheduledAt)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CampaignHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusAccepted, h.Campaigns.Start)
}

func (h *CampaignHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.Campaigns.Pause)
}

func (h *CampaignHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusAccepted, h.Campaigns.Resume)
}

func (h *CampaignHandler) transition(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, creatorID, id string) (*usecase.CampaignOutput, error)) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	out, err := fn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, status, out)
}

func (h *CampaignHandler) Recipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	status := entity.RecipientStatus(r.URL.Query().Get("status"))
	recipients, err := h.Campaigns.Recipients(r.Context(), userID, chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if recipients == nil {
		recipients = []*entity.CampaignRecipient{}
	}
	writeJSON(w, http.StatusOK, recipients)
}
