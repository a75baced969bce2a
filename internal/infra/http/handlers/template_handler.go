package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/usecase"
)

type TemplateHandler struct {
	Templates *usecase.TemplateUseCase
	Logger    *zap.Logger
}

func NewTemplateHandler(templates *usecase.TemplateUseCase, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{Templates: templates, Logger: logger}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.TemplateInput
	if !decodeJSON(w, r, &input) {
		return
	}
	t, err := h.Templates.Create(r.Context(), userID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	templates, err := h.Templates.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	t, err := h.Templates.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.TemplateInput
	if !decodeJSON(w, r, &input) {
		return
	}
	t, err := h.Templates.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Templates.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.GenerateTemplateInput
	if !decodeJSON(w, r, &input) {
		return
	}
	t, err := h.Templates.Generate(r.Context(), userID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
