// Package server serves compiled documents over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docfold/internal/contentid"
	"git.home.luguber.info/inful/docfold/internal/docstore"
	"git.home.luguber.info/inful/docfold/internal/foundation/errors"
	"git.home.luguber.info/inful/docfold/internal/metrics"
	"git.home.luguber.info/inful/docfold/internal/render"
	"git.home.luguber.info/inful/docfold/internal/storage"
)

// DocumentReader is the read side of the document store.
type DocumentReader interface {
	Get(ctx context.Context, slug string) (*docstore.Record, error)
	List(ctx context.Context) ([]docstore.Summary, error)
}

const defaultCacheSize = 4096

// Server routes document, object and metrics requests.
type Server struct {
	docs      DocumentReader
	resolver  *storage.Resolver
	renderer  *render.HTMLRenderer
	gatherer  prom.Gatherer
	cacheSize int
	cache     atomic.Pointer[contentid.LRU]
	adapter   *errors.HTTPErrorAdapter
	logger    *slog.Logger
	router    *chi.Mux
}

// Option customizes a Server.
type Option func(*Server)

// WithGatherer exposes the registry's metrics on /metrics.
func WithGatherer(g prom.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithCacheSize bounds the rendered-node cache. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(s *Server) { s.cacheSize = n }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server. resolver maps image pointers to URLs and serves the
// blobs behind them.
func New(docs DocumentReader, resolver *storage.Resolver, opts ...Option) *Server {
	s := &Server{
		docs:      docs,
		resolver:  resolver,
		cacheSize: defaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.renderer = &render.HTMLRenderer{PointerURL: resolver.URL, CopyButton: true}
	s.adapter = errors.NewHTTPErrorAdapter(s.logger)
	s.Invalidate()
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverPanics)

	r.Get("/healthz", s.handleHealth)
	r.Get("/docs", s.handleList)
	r.Get("/docs/*", s.handleDocument)
	r.Get("/objects/{hash}", s.handleObject)
	r.Get("/assets/*", s.handleAsset)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(s.gatherer))
	}
	s.router = r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Invalidate drops every cached rendering. Call it after a rebuild.
func (s *Server) Invalidate() {
	if s.cacheSize <= 0 {
		s.cache.Store(nil)
		return
	}
	s.cache.Store(contentid.NewLRU(s.cacheSize))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.WrapError(err, errors.CategoryNetwork, "http server").
				WithRetry(errors.RetryNever).
				WithContext("addr", addr).
				Build()
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "http server shutdown").Build()
		}
		return nil
	}
}
