// Package api exposes the scheduling services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/internal/config"
	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// Pinger is implemented by stores that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies shared by every handler
type Server struct {
	store  db.Database
	people services.IdentityDirectory
	cfg    *config.Config
	terms  *config.TemplateConfig
	logger *zap.Logger
}

// NewServer creates a Server. terms may be nil, in which case the default labels are served.
func NewServer(store db.Database, people services.IdentityDirectory, cfg *config.Config, terms *config.TemplateConfig, logger *zap.Logger) *Server {
	if terms == nil {
		terms = config.DefaultTemplateConfig()
	}
	return &Server{
		store:  store,
		people: people,
		cfg:    cfg,
		terms:  terms,
		logger: logger,
	}
}

// Handler builds the routed handler with middleware and CORS applied
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.recoverMiddleware, s.accessLogMiddleware, metricsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/shift-templates", s.handleListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/shift-templates", s.handleCreateTemplate).Methods(http.MethodPost)
	api.HandleFunc("/terminology", s.handleTerminology).Methods(http.MethodGet)

	event := api.PathPrefix("/events/{eventID}").Subrouter()
	s.registerPositionRoutes(event)
	s.registerAssignmentRoutes(event)
	s.registerCountRoutes(event)
	event.HandleFunc("/export/positions.xlsx", s.handleExportPositions).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", callerIDHeader, callerRoleHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTerminology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.terms)
}
