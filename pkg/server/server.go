// Package server exposes the control operations and translation entry point over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/control"
	"github.com/lingoroute/lingoroute/pkg/logging"
)

// Options configures the HTTP surface.
type Options struct {
	Listen string
	// AdminToken, when set, is required as a bearer token on /v1 routes.
	AdminToken string
	// MaxBatch caps the number of requests in one batch call.
	MaxBatch int
}

// Server is the lingoroute HTTP server.
type Server struct {
	svc    *control.Service
	opts   Options
	logger *zap.Logger
	router chi.Router
}

// New creates a Server. gatherer may be nil to disable /metrics.
func New(svc *control.Service, gatherer prometheus.Gatherer, opts Options, logger *zap.Logger) *Server {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 100
	}
	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logging.OrNop(logger),
		router: chi.NewRouter(),
	}

	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/status", s.handleStatus)
		r.Patch("/providers/{name}", s.handleUpdateProvider)
		r.Post("/translate", s.handleTranslate)
		r.Post("/translate/batch", s.handleTranslateBatch)
		r.Post("/stats/reset", s.handleResetStats)
		r.Get("/cache/stats", s.handleCacheStats)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("lingoroute listening", zap.String("addr", s.opts.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
