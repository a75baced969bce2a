package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/infra/http/middleware"
	"github.com/xavierca1/leadforge/internal/usecase"
)

const maxJSONBody = 1 << 20

type ErrorResponse struct {
	Error   string                    `json:"error"`
	Message string                    `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeError maps use case errors onto the HTTP error contract. Technical
// details are logged, never returned.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		writeJSON(w, domainStatus(de.Code), ErrorResponse{Error: de.Code, Message: de.Message, Fields: de.Fields})
		return
	}

	var te *usecase.TechnicalError
	if errors.As(err, &te) && te.Code == usecase.CodeUnavailable {
		log.Warn("dependency unavailable", zap.Error(err))
		writeErrorResponse(w, http.StatusServiceUnavailable, te.Code, te.Message)
		return
	}

	log.Error("request failed", zap.Error(err))
	writeErrorResponse(w, http.StatusInternalServerError, usecase.CodeInternal, "internal error")
}

func domainStatus(code string) int {
	switch code {
	case usecase.CodeValidation:
		return http.StatusUnprocessableEntity
	case usecase.CodeNotFound:
		return http.StatusNotFound
	case usecase.CodeForbidden:
		return http.StatusForbidden
	case usecase.CodeInvalidTransition, usecase.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// decodeJSON reads a bounded JSON body; unknown fields are rejected. A body
// that does not decode is a validation failure like any other bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorResponse(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body must not exceed 1MB")
			return false
		}
		writeInvalidJSON(w, err)
		return false
	}
	return true
}

func writeInvalidJSON(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   usecase.CodeValidation,
		Message: "invalid JSON: " + err.Error(),
		Fields:  []usecase.ValidationError{{Field: "body", Message: err.Error()}},
	})
}

// caller returns the authenticated user id or answers 401.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	}
	return id, ok
}
