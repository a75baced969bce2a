package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/usecase"
)

type LeadHandler struct {
	Leads  *usecase.LeadUseCase
	Logger *zap.Logger
}

func NewLeadHandler(leads *usecase.LeadUseCase, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{Leads: leads, Logger: logger}
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.CreateLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	out, err := h.Leads.Create(r.Context(), userID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	out, err := h.Leads.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// List is the query-string flavour of Search.
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	filter, errs := filterFromQuery(r.URL.Query())
	if len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: usecase.CodeValidation, Message: "invalid query parameters", Fields: errs,
		})
		return
	}
	h.search(w, r, userID, filter)
}

func (h *LeadHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var filter entity.LeadFilter
	if !decodeJSON(w, r, &filter) {
		return
	}
	h.search(w, r, userID, filter)
}

func (h *LeadHandler) search(w http.ResponseWriter, r *http.Request, userID string, filter entity.LeadFilter) {
	leads, err := h.Leads.Search(r.Context(), userID, filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

func filterFromQuery(q url.Values) (entity.LeadFilter, []usecase.ValidationError) {
	f := entity.LeadFilter{
		ProjectID:   q.Get("project_id"),
		Industry:    q.Get("industry"),
		Title:       q.Get("title"),
		Location:    q.Get("location"),
		CompanySize: q.Get("company_size"),
		Keywords:    q.Get("keywords"),
		Status:      entity.LeadStatus(q.Get("status")),
		OrderBy:     q.Get("order_by"),
		OrderDir:    q.Get("order_dir"),
	}

	var errs []usecase.ValidationError
	intParam := func(name string, dst *int) bool {
		raw := q.Get(name)
		if raw == "" {
			return false
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, usecase.ValidationError{Field: name, Message: "must be an integer"})
			return false
		}
		*dst = n
		return true
	}

	var minScore int
	if intParam("min_score", &minScore) {
		f.MinScore = &minScore
	}
	intParam("limit", &f.Limit)
	intParam("offset", &f.Offset)
	return f, errs
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.UpdateLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	out, err := h.Leads.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Leads.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	handle, err := h.Leads.RequestEnrich(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

// BatchEnrich always answers 200; each item carries its own outcome.
func (h *LeadHandler) BatchEnrich(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.BatchEnrichInput
	if !decodeJSON(w, r, &input) {
		return
	}
	items, err := h.Leads.RequestBatchEnrich(r.Context(), userID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}
