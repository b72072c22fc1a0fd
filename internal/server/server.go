// Package server exposes mappings, the paste distributor and templated queries over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/kyleking/ae-columns/internal/analytics"
	"github.com/kyleking/ae-columns/internal/logging"
	"github.com/kyleking/ae-columns/internal/mapping"
	"github.com/kyleking/ae-columns/internal/schema"
	"github.com/kyleking/ae-columns/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Options wires the server's collaborators
type Options struct {
	Repository  storage.Repository
	Provider    schema.Provider
	Executor    analytics.Executor
	Credentials analytics.Credentials
	Clipboard   mapping.ClipboardReader

	CORSAllowedOrigins []string
	RateLimit          RateLimitConfig
}

// Server serves the HTTP API
type Server struct {
	repo        storage.Repository
	provider    schema.Provider
	executor    analytics.Executor
	creds       analytics.Credentials
	distributor *mapping.Distributor
	limiter     *rateLimiter
	router      chi.Router

	mu     sync.Mutex
	stores map[string]*mapping.Store
}

// New builds the router and handlers
func New(opts Options) *Server {
	s := &Server{
		repo:        opts.Repository,
		provider:    opts.Provider,
		executor:    opts.Executor,
		creds:       opts.Credentials,
		distributor: mapping.NewDistributor(opts.Provider, opts.Clipboard),
		limiter:     newRateLimiter(opts.RateLimit),
		stores:      make(map[string]*mapping.Store),
	}

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", analytics.HeaderAccountID, headerRequestID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/schema", s.handleSchema)
		r.Get("/datasets", s.handleListDatasets)

		r.Route("/datasets/{dataset}/mappings", func(r chi.Router) {
			r.Get("/", s.handleListMappings)
			r.Delete("/", s.handleClearMappings)
			r.Post("/paste", s.handlePaste)
			r.Put("/{column}", s.handleSetMapping)
			r.Delete("/{column}", s.handleRemoveMapping)
		})

		r.With(s.limiter.middleware).Post("/query", s.handleQuery)
	})

	s.router = r

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.limiter.sweep(ctx)
		return nil
	})

	g.Go(func() error {
		logging.Infof("HTTP API listening on %s", addr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorWithErr("HTTP API stopped", err)
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logging.Info("shutting down HTTP API")

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// store returns the shared store for dataset, loading it on first use
func (s *Server) store(ctx context.Context, dataset string) (*mapping.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[dataset]; ok {
		return st, nil
	}

	st, err := storage.OpenStore(ctx, s.repo, dataset)
	if err != nil {
		return nil, err
	}

	s.stores[dataset] = st

	return st, nil
}
