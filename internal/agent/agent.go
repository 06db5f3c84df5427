package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/promptgallery/internal/api"
	config "github.com/mwantia/promptgallery/internal/config/server"
	"github.com/mwantia/promptgallery/pkg/catalog"
	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/mwantia/promptgallery/pkg/log"
	"github.com/mwantia/promptgallery/pkg/uploads"
)

// GalleryAgent wires configuration, store, upload sink and services
// together and owns their lifecycle.
type GalleryAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg     *config.BaseServerConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	tags    *log.LoggerTagProcessor
	version string
	opened  bool

	Store   *store.SQLiteStore
	Sink    *uploads.Sink
	Tree    *category.Tree
	Catalog *catalog.Service
}

func NewAgent(cfg *config.BaseServerConfig, version string) *GalleryAgent {
	return &GalleryAgent{
		cfg:     cfg,
		sc:      container.NewServiceContainer(),
		log:     log.NewLoggerService(cfg.Log.Name, cfg.Log),
		tags:    log.NewLoggerTagProcessor(),
		version: version,
	}
}

// NewAgentWithLogger is NewAgent with an externally created base logger.
func NewAgentWithLogger(cfg *config.BaseServerConfig, version string, logger log.LoggerService) *GalleryAgent {
	gsa := NewAgent(cfg, version)
	gsa.log = logger
	return gsa
}

// Open connects and migrates the store and builds all services.
// A failed Open releases whatever was already opened.
func (gsa *GalleryAgent) Open(ctx context.Context) error {
	gsa.mutex.Lock()
	err := gsa.setupServices(ctx)
	gsa.mutex.Unlock()

	if err != nil {
		return errors.Join(err, gsa.Close(ctx))
	}
	return nil
}

func (gsa *GalleryAgent) setupServices(ctx context.Context) error {
	if gsa.opened {
		return nil
	}

	errs := container.Errors{}

	gsa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](gsa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(gsa.log)))

	st, err := gsa.openStore(ctx)
	if err != nil {
		return err
	}
	gsa.Store = st

	gsa.log.Debug("Registering 'CatalogStore'...")
	errs.Add(container.Register[store.SQLiteStore](gsa.sc,
		container.With[store.CatalogStore](),
		container.WithInstance(st)))

	if err := errs.Errors(); err != nil {
		return err
	}

	gsa.Sink = uploads.NewOsSink(gsa.cfg.Storage.UploadDir, gsa.cfg.Storage.AllowedExtensions)
	if err := gsa.Sink.Init(); err != nil {
		return err
	}

	gsa.Tree = category.NewTree(st)
	gsa.Catalog = catalog.NewService(st, gsa.Tree, gsa.Sink, gsa.cfg.HTTP.PageSize)

	if err := gsa.inject(ctx, gsa.Tree, gsa.Catalog); err != nil {
		return err
	}

	gsa.opened = true
	return nil
}

func (gsa *GalleryAgent) openStore(ctx context.Context) (*store.SQLiteStore, error) {
	path := gsa.cfg.Database.SQLite.Path
	gsa.log.Debug("Opening sqlite store at '%s'...", path)

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:     path,
		LogLevel: store.ParseLogLevel(gsa.cfg.Database.LogLevel),
	})
	if err != nil {
		return nil, err
	}
	if err := st.Connect(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return st, nil
}

// inject assigns named loggers to every fabric tagged logger field.
func (gsa *GalleryAgent) inject(ctx context.Context, targets ...any) error {
	for _, target := range targets {
		if err := gsa.tags.Inject(ctx, gsa.sc, target); err != nil {
			return fmt.Errorf("failed to inject logger into %T: %w", target, err)
		}
	}
	return nil
}

// Logger returns the base logger of the agent.
func (gsa *GalleryAgent) Logger() log.LoggerService {
	return gsa.log
}

// Close releases the store and the log file.
func (gsa *GalleryAgent) Close(ctx context.Context) error {
	gsa.mutex.Lock()
	defer gsa.mutex.Unlock()

	var errs []error
	if err := gsa.sc.Cleanup(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	if gsa.Store != nil {
		if err := gsa.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
		gsa.Store = nil
	}
	if closer, ok := gsa.log.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	gsa.opened = false

	return errors.Join(errs...)
}

// Serve runs the HTTP API until ctx is cancelled or an interrupt arrives,
// then shuts down within the configured timeout.
func (gsa *GalleryAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gsa.mutex.Lock()

	if err := gsa.setupServices(ctx); err != nil {
		gsa.mutex.Unlock()
		return errors.Join(err, gsa.Close(context.Background()))
	}

	server := api.NewServer(api.Options{
		Config:  gsa.cfg.HTTP,
		Catalog: gsa.Catalog,
		Tree:    gsa.Tree,
		Sink:    gsa.Sink,
		Health:  gsa.Store,
		Version: gsa.version,
		Logger:  gsa.log,
	})
	var listener net.Listener
	err := gsa.inject(ctx, server)
	if err == nil {
		listener, err = server.Listen()
	}
	if err != nil {
		gsa.mutex.Unlock()
		return errors.Join(err, gsa.Close(context.Background()))
	}

	serveErr := make(chan error, 1)
	gsa.wait.Add(1)
	go func() {
		defer gsa.wait.Done()
		if err := server.Serve(listener); err != nil {
			serveErr <- err
			cancel()
		}
	}()

	gsa.mutex.Unlock()
	<-ctx.Done()

	gsa.log.Info("Shutting down...")

	shutdown, cancelShutdown := context.WithTimeout(context.Background(), gsa.cfg.ShutdownDuration())
	defer cancelShutdown()

	var errs []error
	if err := server.Stop(shutdown); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
	}
	gsa.wait.Wait()

	select {
	case err := <-serveErr:
		errs = append(errs, err)
	default:
	}

	if err := gsa.Close(shutdown); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
