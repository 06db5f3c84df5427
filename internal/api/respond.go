package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mwantia/promptgallery/pkg/catalog"
	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/mwantia/promptgallery/pkg/metadata"
	"github.com/mwantia/promptgallery/pkg/uploads"
)

// errBadRequest marks malformed requests that never reached a service.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error    string `json:"error"`
	Entries  *int64 `json:"entries,omitempty"`
	Children *int64 `json:"children,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps service errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var notEmpty *category.NotEmptyError

	switch {
	case errors.As(err, &notEmpty):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:    err.Error(),
			Entries:  &notEmpty.Entries,
			Children: &notEmpty.Children,
		})
	case errors.Is(err, category.ErrCycle):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, errBadRequest),
		errors.Is(err, catalog.ErrValidation),
		errors.Is(err, category.ErrInvalidCategory),
		errors.Is(err, uploads.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, metadata.ErrMissingMetadata),
		errors.Is(err, metadata.ErrMalformedMetadata):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		s.Log.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id '%s'", errBadRequest, raw)
	}
	return uint(id), nil
}

// optionalID parses an optional positive id; empty input yields nil.
func optionalID(raw string) (*uint, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("%w: invalid id '%s'", errBadRequest, raw)
	}
	v := uint(id)
	return &v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s '%s'", errBadRequest, name, raw)
	}
	return n, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
