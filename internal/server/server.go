// Package server provides the HTTP server for the formcoach service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/server/api"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Sessions  *session.Manager
	// Exercise is the default configuration profiles are validated against.
	Exercise exercise.Config
	// Metrics instruments requests. Gatherer, when set, is exposed on /metrics.
	Metrics  *metrics.Manager
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP server for the formcoach service.
type Server struct {
	config     Config
	router     *mux.Router
	start      time.Time
	httpServer *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: mux.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	if s.config.Metrics != nil {
		s.router.Use(s.config.Metrics.Middleware)
	}

	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.NewExerciseHandler(s.config.Exercise).SetupRoutes(apiRouter)

	if s.config.Store != nil {
		api.NewProfileHandler(s.config.Store, s.config.Exercise).SetupRoutes(apiRouter)
	}

	if s.config.Sessions != nil {
		api.NewSessionHandler(s.config.Sessions).SetupRoutes(apiRouter)
		apiRouter.Handle("/sessions/{id}/stream", NewStreamHandler(s.config.Sessions)).Methods(http.MethodGet)
	}

	if s.config.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Sessions != nil {
		response["sessions"] = s.config.Sessions.Len()
	}
	if s.config.Store != nil {
		if err := s.config.Store.Ping(); err != nil {
			log.Errorf("health: store ping: %s", err)
			response["status"] = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Serve starts listening on addr in the background.
func (s *Server) Serve(addr string) {
	s.httpServer = &http.Server{
		Handler:           s,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", addr)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %s", err)
		}
	}()
}

// GracefulShutdown stops accepting connections and waits up to maxWait for
// in-flight requests.
func (s *Server) GracefulShutdown(maxWait time.Duration) {
	if s.httpServer == nil {
		return
	}
	log.Debug("graceful shutdown initiated ...")

	ctx, cancel := context.WithTimeout(context.Background(), maxWait)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Errorf("failed to gracefully shutdown http server: %s", err)
	}
	log.Warnln("server shut down")
}
