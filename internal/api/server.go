// Package api serves the read-side HTTP surface over the painting archive.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"moodcanvas/internal/archive"
	"moodcanvas/internal/cache"
)

// ArchiveLister is the query engine surface the API depends on.
type ArchiveLister interface {
	ListImages(ctx context.Context, opts archive.ListOptions) (archive.Page, error)
}

// PageCache memoizes listing pages. Optional.
type PageCache interface {
	GetPage(ctx context.Context, key string) (archive.Page, bool, error)
	SetPage(ctx context.Context, key string, page archive.Page) error
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// Server is the archive HTTP server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	lister     ArchiveLister
	pages      PageCache
	cfg        ServerConfig
	logger     zerolog.Logger
}

// NewServer builds the server and its route table. pages may be nil.
func NewServer(cfg ServerConfig, lister ArchiveLister, pages PageCache, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		lister: lister,
		pages:  pages,
		cfg:    cfg,
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRouter() {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimitRPS), s.cfg.RateLimitBurst)

	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(rateLimitMiddleware(limiter))

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/images", s.handleListImages).Methods(http.MethodGet)
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

var _ PageCache = (*cache.Cache)(nil)
