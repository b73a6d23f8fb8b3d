package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *simpledocs.ValidationError
	if errors.As(err, &validationErr) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: validationErr.Reason, Field: validationErr.Field})
		return
	}

	var conflictErr *simpledocs.ConflictError
	if errors.As(err, &conflictErr) {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, ErrorResponse{Error: conflictErr.Error()})
		return
	}

	switch {
	case errors.Is(err, simpledocs.ErrDocumentNotFound),
		errors.Is(err, simpledocs.ErrTenantNotFound),
		errors.Is(err, simpledocs.ErrDocumentTypeNotFound),
		errors.Is(err, simpledocs.ErrExtensionNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
	case errors.Is(err, simpledocs.ErrVersionConflict):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
	}
}
