// package server contains middleware & handlers for the image dataset web service
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coocood/freecache"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
	"github.com/desertthunder/imgset/internal/storage"
	"github.com/desertthunder/imgset/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the dataset service.
// Implementations handle one resource (labels, csvfiles, datasets, images).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server wires repositories, blob storage and the upload pipeline behind the HTTP API.
type Server struct {
	config  *shared.Config
	logger  *log.Logger
	handler http.Handler

	users    *repositories.UserRepository
	labels   *repositories.LabelRepository
	csvfiles *repositories.CsvfileRepository
	datasets *repositories.DatasetRepository
	images   *repositories.ImageRepository
	store    *storage.Store
	resolver *tasks.LabelResolver
	uploader *tasks.SourceUploader
	schemas  *schemas
}

// New builds a [Server] over an already migrated db and an open store.
func New(config *shared.Config, db *sql.DB, store *storage.Store, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if config.Auth.Secret == "" {
		return nil, fmt.Errorf("%w: auth secret is required", shared.ErrInvalidConfig)
	}

	compiled, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	var cache *freecache.Cache
	if config.Cache.LabelCacheBytes > 0 {
		cache = freecache.NewCache(config.Cache.LabelCacheBytes)
	}

	labels := repositories.NewLabelRepository(db)
	images := repositories.NewImageRepository(db)
	resolver := tasks.NewLabelResolver(labels, cache, config.Cache.LabelTTLSeconds)
	upserter := tasks.NewImageUpserter(db, images, store, logger)

	csvfiles := repositories.NewCsvfileRepository(db)
	engine := tasks.NewUploadEngine(resolver, upserter, logger)

	s := &Server{
		config:   config,
		logger:   logger,
		users:    repositories.NewUserRepository(db),
		labels:   labels,
		csvfiles: csvfiles,
		datasets: repositories.NewDatasetRepository(db),
		images:   images,
		store:    store,
		resolver: resolver,
		uploader: tasks.NewSourceUploader(store, csvfiles, engine, logger),
		schemas:  compiled,
	}
	s.handler = s.routes()
	return s, nil
}

// routes assembles the router. CORS and compression wrap the whole mux so preflight
// requests never reach method matching.
func (s *Server) routes() http.Handler {
	router := NewBasicRouter()
	router.Use(
		Logging(s.logger),
		Recover(s.logger),
		RateLimit(s.config.Server.RateLimit, s.config.Server.RateBurst),
		Authenticate(s.config.Auth.Secret, s.users, "/health"),
	)

	router.Handle(http.MethodGet, "/health", http.HandlerFunc(s.health))
	router.Handler(&LabelHandler{s: s})
	router.Handler(&CsvfileHandler{s: s})
	router.Handler(&DatasetHandler{s: s})
	router.Handler(&ImageHandler{s: s})

	return CORS(s.config.Server.CORSOrigins)(Compress()(router))
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
