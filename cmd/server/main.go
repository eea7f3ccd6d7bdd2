// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package main is the entry point for the Watchdeck server.
//
// Watchdeck fronts a Plex media server and serves a display-ready view of its
// active playback sessions: classified by media kind, enriched with catalog
// hyperlinks and artwork accent colors, gated by caller privilege, and sorted
// by remaining playtime.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, environment (Koanf v2)
//  2. Store: BadgerDB-backed link and artwork color caches
//  3. Upstream: Plex HTTP client
//  4. TV lookup: optional external episode catalog with circuit breaker
//  5. Session pipeline: classifier, enricher, aggregator, fetcher
//  6. HTTP API: chi router with token authentication and rate limiting
//
// The store GC loop and the HTTP server run under a suture supervisor tree
// and are restarted with backoff on failure.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//   - Environment variables (UPSTREAM_URL, UPSTREAM_TOKEN, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the listener stops
// accepting connections, in-flight requests get 10s to complete, and the
// store is closed last.
//
// # Example Usage
//
//	export UPSTREAM_URL=http://localhost:32400
//	export UPSTREAM_TOKEN=your-plex-token
//	export STORE_PATH=/data/watchdeck
//	./watchdeck
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/watchdeck/watchdeck/internal/api"
	"github.com/watchdeck/watchdeck/internal/artwork"
	"github.com/watchdeck/watchdeck/internal/config"
	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/plex"
	"github.com/watchdeck/watchdeck/internal/session"
	"github.com/watchdeck/watchdeck/internal/store"
	"github.com/watchdeck/watchdeck/internal/supervisor"
	"github.com/watchdeck/watchdeck/internal/tvdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors are logged with the default logger; the configured
		// one does not exist yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})

	logging.Info().
		Str("upstream_url", cfg.Upstream.URL).
		Str("store_path", cfg.Store.Path).
		Bool("tvlookup_enabled", cfg.TVLookup.Enabled).
		Msg("Configuration loaded")

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	linkCache := store.NewLinkCache(db)
	colorCache := store.NewColorCache(db)

	upstream := plex.NewClient(cfg.Upstream.URL, cfg.Upstream.Token, cfg.Upstream.Timeout)

	// The lookup interface stays nil when disabled; enrichment then fails
	// closed for TV links instead of calling out.
	var lookup session.TVLookup
	if cfg.TVLookup.Enabled {
		lookup = tvdb.NewClient(cfg.TVLookup.URL, cfg.TVLookup.APIKey, cfg.TVLookup.Timeout, cfg.TVLookup.RatePerSecond)
		logging.Info().
			Str("url", cfg.TVLookup.URL).
			Float64("rate_per_second", cfg.TVLookup.RatePerSecond).
			Msg("TV episode lookup enabled")
	} else {
		logging.Info().Msg("TV episode lookup disabled - TV hyperlinks will not resolve")
	}

	colorizer := artwork.NewColorizer(colorCache, cfg.Images.CacheDir)
	enricher := session.NewEnricher(upstream, lookup, linkCache)
	aggregator := session.NewAggregator(enricher, colorizer)
	fetcher := session.NewFetcher(upstream, aggregator)

	authenticator := api.NewTokenAuthenticator(cfg.Auth.Tokens)
	if len(cfg.Auth.Tokens) == 0 {
		logging.Warn().Msg("No access tokens configured - all callers are anonymous (privilege 0)")
	}
	server := api.NewServer(fetcher, authenticator, cfg.Server, cfg.API)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddDataService(store.NewGCService(db, cfg.Store.GCInterval))
	tree.AddAPIService(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Watchdeck stopped gracefully")
}
