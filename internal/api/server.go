package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	config "github.com/mwantia/promptgallery/internal/config/server"
	"github.com/mwantia/promptgallery/pkg/catalog"
	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/mwantia/promptgallery/pkg/log"
	"github.com/mwantia/promptgallery/pkg/uploads"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// Server exposes the catalog and the category tree as a JSON API.
type Server struct {
	Log log.LoggerService `fabric:"logger:http"`

	cfg     config.HTTPServerConfig
	router  *chi.Mux
	server  *http.Server
	catalog *catalog.Service
	tree    *category.Tree
	sink    *uploads.Sink
	health  Pinger
	version string
}

type Options struct {
	Config  config.HTTPServerConfig
	Catalog *catalog.Service
	Tree    *category.Tree
	Sink    *uploads.Sink
	Health  Pinger
	Version string
	Logger  log.LoggerService
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Server{
		Log:     logger,
		cfg:     opts.Config,
		catalog: opts.Catalog,
		tree:    opts.Tree,
		sink:    opts.Sink,
		health:  opts.Health,
		version: opts.Version,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(opts.Config.RequestDuration()))
	if opts.Config.MaxUploadSize > 0 {
		router.Use(middleware.RequestSize(opts.Config.MaxUploadSize))
	}

	s.router = router
	s.server = &http.Server{
		Addr:    opts.Config.Address,
		Handler: router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", s.handleListPrompts)
			r.Post("/", s.handleCreatePrompt)
			r.Get("/{id}", s.handleGetPrompt)
			r.Put("/{id}", s.handleUpdatePrompt)
			r.Delete("/{id}", s.handleDeletePrompt)
			r.Post("/{id}/reextract", s.handleReextractPrompt)
		})

		r.Get("/tags", s.handleTags)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Get("/tree", s.handleCategoryTree)
			r.Get("/options", s.handleCategoryOptions)
			r.Get("/{id}", s.handleGetCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Post("/{id}/move", s.handleMoveCategory)
			r.Get("/{id}/path", s.handleCategoryPath)
		})
	})

	s.router.Get("/uploads/{name}", s.handleUpload)
}

// Handler returns the router with all routes and middleware attached.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.Log.Info("HTTP server listening on %s", l.Addr())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Listen opens the configured address.
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on '%s': %w", s.cfg.Address, err)
	}
	return l, nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
