// Package api provides the admin HTTP surface for ingestion: provider
// state inspection, manual run triggers, and alert history. Handlers
// are thin pass-throughs into the core; state reads always answer with
// a best-effort snapshot.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/florasync/florasync/internal/alerts"
	"github.com/florasync/florasync/internal/checkpoint"
	"github.com/florasync/florasync/internal/provider"
	"github.com/florasync/florasync/internal/sync"
	"github.com/florasync/florasync/internal/telemetry"
)

// Server holds the dependencies of the admin API handlers
type Server struct {
	clients     map[string]*provider.Client
	runner      *sync.Runner
	checkpoints checkpoint.Store
	history     *alerts.History

	syncMetrics     *telemetry.SyncMetrics
	providerMetrics *telemetry.ProviderMetrics
	metricsHandler  http.Handler

	log *zap.SugaredLogger
}

// ServerOption configures the admin API server
type ServerOption func(*Server)

// WithSyncMetrics attaches sync run instrumentation
func WithSyncMetrics(m *telemetry.SyncMetrics) ServerOption {
	return func(s *Server) {
		s.syncMetrics = m
	}
}

// WithProviderMetrics attaches provider state instrumentation
func WithProviderMetrics(m *telemetry.ProviderMetrics) ServerOption {
	return func(s *Server) {
		s.providerMetrics = m
	}
}

// WithMetricsHandler mounts a scrape endpoint at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// NewServer creates the admin API server
func NewServer(
	clients map[string]*provider.Client,
	runner *sync.Runner,
	checkpoints checkpoint.Store,
	history *alerts.History,
	log *zap.SugaredLogger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		clients:     clients,
		runner:      runner,
		checkpoints: checkpoints,
		history:     history,
		log:         log.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP router for the admin surface
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", s.handleListProviders)
		r.Get("/alerts", s.handleAlerts)

		r.Route("/providers/{name}", func(r chi.Router) {
			r.Use(s.requireProvider)
			r.Get("/stats", s.handleStats)
			r.Get("/health", s.handleHealth)
			r.Get("/circuit", s.handleCircuit)
			r.Get("/checkpoint", s.handleCheckpoint)
			r.Post("/import", s.handleImport)
			r.Post("/enrich", s.handleEnrich)
			r.Post("/reset", s.handleReset)
		})
	})

	return r
}

// loggingMiddleware logs every request with its status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}
