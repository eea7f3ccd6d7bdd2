// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package api exposes the session pipeline over HTTP: the full session list,
// the lightweight progress payload, single-session lookup, aggregate status,
// and the usual health/metrics surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchdeck/watchdeck/internal/config"
	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/models"
	"github.com/watchdeck/watchdeck/internal/session"
)

// Server hosts the HTTP API. It implements suture.Service.
type Server struct {
	fetcher *session.Fetcher
	auth    Authenticator
	cfg     config.ServerConfig
	apiCfg  config.APIConfig

	httpServer *http.Server
}

// NewServer creates the API server.
func NewServer(fetcher *session.Fetcher, auth Authenticator, cfg config.ServerConfig, apiCfg config.APIConfig) *Server {
	return &Server{
		fetcher: fetcher,
		auth:    auth,
		cfg:     cfg,
		apiCfg:  apiCfg,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.apiCfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Watchdeck-Token", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.apiCfg.RateLimitReqs, s.apiCfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/progress", s.handleProgress)
		r.Get("/sessions/{id}", s.handleSessionByID)
		r.Get("/status", s.handleStatus)
	})

	return r
}

// Serve runs the HTTP server until ctx is canceled. Implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Timeout,
		WriteTimeout:      s.cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown failed")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) String() string { return "api-server" }

// privilege resolves the caller's level, writing the 401 envelope itself on
// invalid credentials. The second return reports whether to proceed.
func (s *Server) privilege(w http.ResponseWriter, r *http.Request) (int, bool) {
	level, err := s.auth.Privilege(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid access token", nil)
		return 0, false
	}
	return level, true
}

// handleSessions serves the full sorted session list. Upstream failure
// degrades to an empty, well-formed list rather than an error payload.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	level, ok := s.privilege(w, r)
	if !ok {
		return
	}

	views, err := s.fetcher.Snapshot(r.Context(), level)
	if err != nil {
		logging.Warn().Err(err).Msg("snapshot degraded to empty")
		views = []*models.SessionView{}
	}
	respondSuccess(w, views, len(views))
}

// handleProgress serves the lightweight progress payload the client polls.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.privilege(w, r); !ok {
		return
	}

	updates, err := s.fetcher.Progress(r.Context())
	if err != nil {
		logging.Warn().Err(err).Msg("progress snapshot degraded to empty")
		updates = []models.ProgressUpdate{}
	}
	respondSuccess(w, updates, len(updates))
}

// handleSessionByID serves one session by its identity.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	level, ok := s.privilege(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "missing session id", nil)
		return
	}

	views, err := s.fetcher.Snapshot(r.Context(), level)
	if err != nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "session not found", err)
		return
	}
	for _, v := range views {
		if v.ID == id {
			respondSuccess(w, v, 1)
			return
		}
	}
	respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "session not found", nil)
}

// handleStatus serves unprivileged aggregate counts.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.fetcher.Status(r.Context())
	if err != nil {
		logging.Warn().Err(err).Msg("status degraded to zero counts")
		counts = models.StatusCounts{}
	}
	respondSuccess(w, counts, counts.Total)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
