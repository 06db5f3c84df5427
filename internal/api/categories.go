package api

import (
	"net/http"

	"github.com/mwantia/promptgallery/pkg/db/models"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

type moveRequest struct {
	ParentID *uint `json:"parent_id"`
}

type categoryDetail struct {
	*models.Category
	Path     []string          `json:"path"`
	Children []models.Category `json:"children"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.tree.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	category, err := s.tree.Create(r.Context(), req.Name, req.Description, req.ParentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleCategoryTree(w http.ResponseWriter, r *http.Request) {
	forest, err := s.tree.Build(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forest)
}

func (s *Server) handleCategoryOptions(w http.ResponseWriter, r *http.Request) {
	exclude, err := optionalID(r.URL.Query().Get("exclude"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	options, err := s.tree.Options(r.Context(), exclude)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	category, err := s.tree.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	path, err := s.tree.Path(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	children, err := s.tree.Children(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, categoryDetail{
		Category: category,
		Path:     path,
		Children: children,
	})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	category, err := s.tree.Update(r.Context(), id, req.Name, req.Description, req.ParentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.tree.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.tree.Move(r.Context(), id, req.ParentID); err != nil {
		s.writeError(w, r, err)
		return
	}

	category, err := s.tree.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleCategoryPath(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	categories, err := s.tree.PathCategories(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
