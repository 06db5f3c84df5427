package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		Database:  "ok",
		Timestamp: time.Now().UTC(),
	}

	status := http.StatusOK
	if s.health != nil {
		if err := s.health.Health(ctx); err != nil {
			s.Log.Warn("Health check failed: %v", err)
			resp.Status = "down"
			resp.Database = "down"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	file, err := s.sink.Open(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
