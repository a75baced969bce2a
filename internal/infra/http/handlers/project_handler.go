package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/usecase"
)

// one byte over the import limit so the use case can reject oversize files
const maxImportBody = 5<<20 + 1

type ProjectHandler struct {
	Projects *usecase.ProjectUseCase
	Logger   *zap.Logger
}

func NewProjectHandler(projects *usecase.ProjectUseCase, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Logger: logger}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.ProjectInput
	if !decodeJSON(w, r, &input) {
		return
	}
	p, err := h.Projects.Create(r.Context(), userID, input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	projects, err := h.Projects.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	p, err := h.Projects.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var input usecase.ProjectInput
	if !decodeJSON(w, r, &input) {
		return
	}
	p, err := h.Projects.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.Projects.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	stats, err := h.Projects.Stats(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ProjectHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	handle, err := h.Projects.RequestScrape(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

// Import accepts the CSV either as the raw body (text/csv) or as the "file"
// part of a multipart form.
func (h *ProjectHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	data, err := readUpload(w, r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	handle, err := h.Projects.RequestImport(r.Context(), userID, chi.URLParam(r, "id"), data)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, maxImportBody+(64<<10))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(io.LimitReader(body, maxImportBody))
	}

	r.Body = body
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("multipart upload needs a \"file\" part")
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxImportBody))
}
