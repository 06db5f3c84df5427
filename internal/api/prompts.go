package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/mwantia/promptgallery/pkg/catalog"
)

const defaultMultipartMemory = 32 << 20

type promptRequest struct {
	Title      string `json:"title"`
	PromptText string `json:"prompt_text"`
	Tags       string `json:"tags"`
	CategoryID *uint  `json:"category_id"`
}

func listQuery(r *http.Request) (catalog.ListQuery, error) {
	query := catalog.ListQuery{
		Tag:   r.URL.Query().Get("tag"),
		Query: r.URL.Query().Get("q"),
	}

	var err error
	if query.CategoryID, err = optionalID(r.URL.Query().Get("category_id")); err != nil {
		return query, err
	}
	if query.Page, err = queryInt(r, "page"); err != nil {
		return query, err
	}
	if query.PerPage, err = queryInt(r, "per_page"); err != nil {
		return query, err
	}
	return query, nil
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.catalog.List(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	req, image, err := s.readPromptRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt, err := s.catalog.Add(r.Context(), catalog.AddInput{
		Title:      req.Title,
		PromptText: req.PromptText,
		Tags:       req.Tags,
		CategoryID: req.CategoryID,
		Image:      image,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req, image, err := s.readPromptRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt, err := s.catalog.Edit(r.Context(), id, catalog.EditInput{
		Title:      req.Title,
		Tags:       req.Tags,
		CategoryID: req.CategoryID,
		Image:      image,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReextractPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompt, err := s.catalog.Reextract(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.catalog.Tags(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport streams the filtered catalog as parquet or yaml. The file is
// built in memory so a failed export still yields an error response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	query, err := listQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "parquet"
	}
	contentType, ok := exportTypes[format]
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: unsupported export format '%s'", errBadRequest, format))
		return
	}

	var buf bytes.Buffer
	if _, err := s.catalog.Export(r.Context(), &buf, format, query); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"prompts.%s\"", format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

var exportTypes = map[string]string{
	"parquet": "application/vnd.apache.parquet",
	"yaml":    "application/yaml",
	"yml":     "application/yaml",
}

// readPromptRequest accepts either a multipart form with an optional
// "image" file or a JSON body without an image.
func (s *Server) readPromptRequest(r *http.Request) (promptRequest, *catalog.Image, error) {
	var req promptRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := decodeJSON(r, &req)
		return req, nil, err
	}

	maxMemory := s.cfg.MaxUploadSize
	if maxMemory <= 0 {
		maxMemory = defaultMultipartMemory
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return req, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	req.Title = r.FormValue("title")
	req.PromptText = r.FormValue("prompt_text")
	req.Tags = r.FormValue("tags")

	categoryID, err := optionalID(r.FormValue("category_id"))
	if err != nil {
		return req, nil, err
	}
	req.CategoryID = categoryID

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, nil
	}
	if err != nil {
		return req, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}
	return req, &catalog.Image{Filename: header.Filename, Data: data}, nil
}
