package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs method, path, status and duration of every request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		requestID := middleware.GetReqID(r.Context())
		if status >= http.StatusInternalServerError {
			s.Log.Error("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, status, time.Since(start), requestID)
			return
		}
		s.Log.Debug("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, status, time.Since(start), requestID)
	})
}
