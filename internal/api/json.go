package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ariadna/internal/apperr"
	"github.com/starford/ariadna/internal/storage"
	"github.com/starford/ariadna/internal/thread"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// Field names the offending field of a validation error.
	Field string `json:"field,omitempty"`
	Path  string `json:"path,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged and reported as 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		pe *thread.ParseError
		ve *thread.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: ve.Error(), Field: ve.Field, Path: ve.Path})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusBadRequest, errorBody(pe.Error()))
	case errors.Is(err, storage.ErrOutsideWorkspace):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnsavedChanges),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrInvalidMove):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNoThread), errors.Is(err, apperr.ErrNoLocation):
		writeJSON(w, http.StatusPreconditionFailed, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// decodeBody reads a JSON request body into v. An empty body leaves v
// untouched. On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// intParam parses the named URL parameter. On failure it writes a 400 and
// returns false.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(name+" must be an integer"))
		return 0, false
	}
	return v, true
}
