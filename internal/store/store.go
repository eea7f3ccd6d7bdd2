// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package store provides the persistent caches backing session enrichment:
// the cross-reference link cache and the artwork color cache. Both are
// natural-key lookups over BadgerDB with JSON-encoded values.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/watchdeck/watchdeck/internal/logging"
)

// Open opens the BadgerDB store at path, creating it if needed.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is noisy; we log GC outcomes ourselves

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	return db, nil
}

// GCService runs periodic value-log garbage collection on the store.
// It implements suture.Service.
type GCService struct {
	db       *badger.DB
	interval time.Duration
}

// NewGCService creates a GC service for db. Interval must be positive.
func NewGCService(db *badger.DB, interval time.Duration) *GCService {
	return &GCService{db: db, interval: interval}
}

// Serve runs the GC loop until ctx is canceled.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing
			// to collect; that is the common case, not a failure.
			err := s.db.RunValueLogGC(0.5)
			switch err {
			case nil:
				logging.Debug().Msg("store value log GC rewrote a file")
			case badger.ErrNoRewrite:
			default:
				logging.Warn().Err(err).Msg("store value log GC failed")
			}
		}
	}
}

func (s *GCService) String() string { return "store-gc" }
