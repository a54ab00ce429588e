// Package handlers provides HTTP handlers for the vaccination API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// domainError maps the error taxonomy onto HTTP responses.
func domainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidState):
		jsonError(w, "invalid state", http.StatusConflict)
	case errors.Is(err, domain.ErrInsufficientStock):
		jsonError(w, "insufficient stock", http.StatusConflict)
	case errors.Is(err, domain.ErrDuplicateEmail):
		jsonError(w, "email already registered", http.StatusConflict)
	case errors.Is(err, domain.ErrDuplicateName):
		jsonError(w, "name already registered", http.StatusConflict)
	case errors.Is(err, domain.ErrAlreadyManaged):
		jsonError(w, "center already managed", http.StatusConflict)
	case errors.Is(err, domain.ErrConflict):
		jsonError(w, "conflict", http.StatusConflict)
	default:
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
