// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package client

import (
	"context"
	"errors"
	"time"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/metrics"
)

// Poller drives the fixed-cadence progress polling loop. It implements
// suture.Service.
//
// The interval does not wait for the previous request: a slow response and
// the next tick's request may be in flight together, and their responses may
// arrive out of order. The engine tolerates that by matching on identity.
type Poller struct {
	api      SnapshotAPI
	engine   *Engine
	interval time.Duration
}

// NewPoller creates a poller. interval is typically 10s.
func NewPoller(api SnapshotAPI, engine *Engine, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{api: api, engine: engine, interval: interval}
}

// Serve runs the polling loop until ctx is canceled or authorization is
// lost.
func (p *Poller) Serve(ctx context.Context) error {
	if err := p.engine.Start(ctx); err != nil {
		if errors.Is(err, ErrAuthorizationLost) {
			return err
		}
		logging.Warn().Err(err).Msg("initial snapshot failed, continuing with polls")
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.engine.Stop()
			return ctx.Err()
		case <-ticker.C:
			if p.engine.Halted() {
				metrics.ClientPolls.WithLabelValues("skipped").Inc()
				return ErrAuthorizationLost
			}
			// Fire and forget: the tick never waits on the request.
			go p.poll(ctx)
		}
	}
}

func (p *Poller) String() string { return "progress-poller" }

func (p *Poller) poll(ctx context.Context) {
	updates, err := p.api.Progress(ctx)
	switch {
	case errors.Is(err, ErrAuthorizationLost):
		metrics.ClientPolls.WithLabelValues("unauthorized").Inc()
		p.engine.HaltForReauth()
	case err != nil:
		metrics.ClientPolls.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Msg("progress poll failed")
	default:
		metrics.ClientPolls.WithLabelValues("ok").Inc()
		p.engine.ApplyProgress(ctx, updates)
	}
}
