// Package api exposes jsonlbuf over HTTP: records posted to the API are
// buffered into one segment per request and staged for download.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssargent/jsonlbuf/pkg/buffer"
	"github.com/ssargent/jsonlbuf/pkg/codec"
	"github.com/ssargent/jsonlbuf/pkg/logging"
)

// Server holds the API server state
type Server struct {
	store    SegmentStore
	create   buffer.CreateFunc
	json     codec.JSON
	config   ServerConfig
	metrics  *Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// ServerOption customizes a Server
type ServerOption func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithJSON sets the JSON capability used to decode ingested messages
func WithJSON(j codec.JSON) ServerOption {
	return func(s *Server) { s.json = j }
}

// WithGatherer sets the registry served on /metrics
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a new API server
func NewServer(store SegmentStore, create buffer.CreateFunc, config ServerConfig, metrics *Metrics, opts ...ServerOption) *Server {
	s := &Server{
		store:    store,
		create:   create,
		json:     codec.StdJSON{},
		config:   config,
		metrics:  metrics,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.MaxBodyBytes <= 0 {
		s.config.MaxBodyBytes = 64 << 20
	}
	return s
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		r.Post("/segments", s.metrics.InstrumentHandler("POST", "/api/v1/segments", s.handleCreateSegment))
		r.Get("/segments", s.metrics.InstrumentHandler("GET", "/api/v1/segments", s.handleListSegments))
		r.Get("/segments/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/segments/{id}", s.handleGetSegment))
		r.Delete("/segments/{id}", s.metrics.InstrumentHandler("DELETE", "/api/v1/segments/{id}", s.handleDeleteSegment))
	})

	return r
}

// Start serves the API until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Bind, strconv.Itoa(s.config.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting jsonlbuf REST API server", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down REST API server")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
