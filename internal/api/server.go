// SPDX-License-Identifier: MIT

// Package api exposes the conversation engine over HTTP: the greeting and
// chat endpoints, the flow-audit export and the operational surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stitech/convogate/internal/api/middleware"
	"github.com/stitech/convogate/internal/audit"
	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/engine"
)

// Server is the HTTP front of the daemon.
type Server struct {
	cfg    config.AppConfig
	engine *engine.Engine
	stream *audit.Stream
	logger zerolog.Logger
	http   *http.Server
}

// NewServer wires the router and the underlying http.Server.
func NewServer(cfg config.AppConfig, eng *engine.Engine, stream *audit.Stream, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		stream: stream,
		logger: logger,
	}
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Routes assembles the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))
	r.Use(middleware.Metrics())
	r.Use(middleware.AccessLog(s.logger))
	if s.cfg.TracingEnabled {
		r.Use(middleware.OTelHTTP(s.cfg.ServiceName))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimitRPM > 0 {
			r.Use(middleware.RateLimit(s.cfg.RateLimitRPM, time.Minute))
		}
		r.Get("/greeting", s.handleGreeting)
		r.Post("/chat", s.handleChat)
		r.Get("/flow-audit.csv", s.handleAuditExport)
		r.Get("/sessions/{sessionID}/audit", s.handleSessionAudit)
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Listen).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
