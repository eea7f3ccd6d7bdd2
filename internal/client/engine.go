// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/metrics"
	"github.com/watchdeck/watchdeck/internal/models"
	"github.com/watchdeck/watchdeck/internal/session"
)

// tickInterval is the cadence of local progress interpolation.
const tickInterval = time.Second

// Engine reconciles incoming snapshots against the displayed state. All
// matching is by session identity, never by position, so responses arriving
// out of order are safe. State mutation is serialized on mu.
type Engine struct {
	api     SnapshotAPI
	display Display

	mu       sync.Mutex
	sessions map[string]*sessionState
	order    []string // current display order, front first
	halted   bool

	// pending tracks in-flight out-of-band fetches so Stop and tests can
	// wait for them.
	pending sync.WaitGroup
}

// NewEngine creates a reconciliation engine.
func NewEngine(api SnapshotAPI, display Display) *Engine {
	return &Engine{
		api:      api,
		display:  display,
		sessions: make(map[string]*sessionState),
	}
}

// Start loads the initial full snapshot and displays it.
func (e *Engine) Start(ctx context.Context) error {
	views, err := e.api.FullSnapshot(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthorizationLost) {
			e.haltForReauth()
		}
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	session.Sort(views)
	for _, v := range views {
		e.insertLocked(v)
	}
	e.display.SetActiveCount(len(e.order))
	return nil
}

// ApplyProgress reconciles one progress poll response against the display.
func (e *Engine) ApplyProgress(ctx context.Context, updates []models.ProgressUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted {
		return
	}

	incoming := make(map[string]models.ProgressUpdate, len(updates))
	for _, u := range updates {
		incoming[u.ID] = u
	}

	// Old-only identities: remove, dismissing any overlay first.
	for _, id := range append([]string(nil), e.order...) {
		if _, ok := incoming[id]; ok {
			continue
		}
		e.removeLocked(id)
		metrics.ClientReconcileOps.WithLabelValues("remove").Inc()
	}

	// Intersection: patch in place. New-only: fetch out of band.
	for _, u := range updates {
		if st, ok := e.sessions[u.ID]; ok {
			e.patchLocked(st, u)
			metrics.ClientReconcileOps.WithLabelValues("patch").Inc()
			continue
		}
		e.pending.Add(1)
		go e.fetchAndInsert(ctx, u.ID)
	}

	e.reorderLocked(desiredOrder(updates))
	e.display.SetActiveCount(len(e.order))
}

// HaltForReauth stops all interpolation and polling effects and prompts the
// user to re-authenticate. Called when a poll signals authorization loss.
func (e *Engine) HaltForReauth() {
	e.haltForReauth()
}

// Stop tears down all interpolation ticks and waits for in-flight fetches.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, st := range e.sessions {
		e.stopTickLocked(st)
	}
	e.halted = true
	e.mu.Unlock()
	e.pending.Wait()
}

// Halted reports whether the engine has stopped accepting updates.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

func (e *Engine) haltForReauth() {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return
	}
	for _, st := range e.sessions {
		e.stopTickLocked(st)
	}
	e.halted = true
	e.mu.Unlock()

	logging.Warn().Msg("authorization lost, polling halted")
	e.display.PromptReauth()
}

// patchLocked applies a progress update to a displayed session in place.
func (e *Engine) patchLocked(st *sessionState, u models.ProgressUpdate) {
	wasPaused := st.view.State == models.PlayStatePaused

	st.view.State = u.State
	st.view.ViewOffsetMS = u.ViewOffsetMS
	if u.DurationMS > 0 {
		st.view.DurationMS = u.DurationMS
	}
	st.view.Transcoding = u.Transcoding
	st.view.TranscodeProgress = u.TranscodeProgress

	e.display.Patch(st.view.ID, st.patch())

	// Pause cancels interpolation immediately; resume restarts it.
	if u.State == models.PlayStatePaused {
		e.stopTickLocked(st)
	} else if wasPaused || !st.ticking() {
		e.startTickLocked(st)
	}
}

// insertLocked places a new session at the position the shared comparator
// assigns among the currently displayed siblings. Position is computed at
// insertion time, so fetch completion order does not matter.
func (e *Engine) insertLocked(v *models.SessionView) {
	if _, exists := e.sessions[v.ID]; exists {
		return
	}

	pos := len(e.order)
	for i, id := range e.order {
		if session.Less(v, &e.sessions[id].view) {
			pos = i
			break
		}
	}

	st := &sessionState{view: *v}
	e.sessions[v.ID] = st
	e.order = append(e.order[:pos], append([]string{v.ID}, e.order[pos:]...)...)
	e.display.Insert(v, pos)

	if st.view.State != models.PlayStatePaused {
		e.startTickLocked(st)
	}
}

// removeLocked deletes a session, dismissing its overlay first. Overlays are
// not bound to the element's lifecycle.
func (e *Engine) removeLocked(id string) {
	st, ok := e.sessions[id]
	if !ok {
		return
	}
	e.stopTickLocked(st)
	e.display.DismissOverlay(id)
	e.display.Remove(id)
	delete(e.sessions, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// fetchAndInsert resolves a newly observed identity out of band and inserts
// it at the position current at arrival time.
func (e *Engine) fetchAndInsert(ctx context.Context, id string) {
	defer e.pending.Done()

	view, err := e.api.Session(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAuthorizationLost) {
			e.haltForReauth()
			return
		}
		// Gone again before we fetched it; the next poll settles it.
		logging.Debug().Err(err).Str("session", id).Msg("out-of-band session fetch failed")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.halted {
		return
	}
	e.insertLocked(view)
	metrics.ClientReconcileOps.WithLabelValues("insert").Inc()
	e.display.SetActiveCount(len(e.order))
}

// desiredOrder sorts the incoming updates with the shared comparator and
// returns the target identity order.
func desiredOrder(updates []models.ProgressUpdate) []string {
	views := make([]*models.SessionView, len(updates))
	for i, u := range updates {
		views[i] = &models.SessionView{
			ID:           u.ID,
			State:        u.State,
			ViewOffsetMS: u.ViewOffsetMS,
			DurationMS:   u.DurationMS,
		}
	}
	session.Sort(views)

	order := make([]string, len(views))
	for i, v := range views {
		order[i] = v.ID
	}
	return order
}

// reorderLocked brings the display order in line with the desired order by
// iterating the target in reverse and re-inserting at the front. Skipped
// entirely when the orders already agree; identities still being fetched are
// ignored.
func (e *Engine) reorderLocked(desired []string) {
	displayed := make([]string, 0, len(desired))
	for _, id := range desired {
		if _, ok := e.sessions[id]; ok {
			displayed = append(displayed, id)
		}
	}

	if equalOrder(e.order, displayed) {
		return
	}

	for i := len(displayed) - 1; i >= 0; i-- {
		e.display.MoveToFront(displayed[i])
		metrics.ClientReconcileOps.WithLabelValues("reorder").Inc()
	}
	e.order = displayed
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// startTickLocked spawns the per-second interpolation goroutine for a
// playing session.
func (e *Engine) startTickLocked(st *sessionState) {
	if st.ticking() {
		return
	}
	stop := make(chan struct{})
	st.stopTick = stop
	id := st.view.ID

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.interpolate(id, stop)
			}
		}
	}()
}

// stopTickLocked cancels a session's interpolation goroutine.
func (e *Engine) stopTickLocked(st *sessionState) {
	if st.stopTick != nil {
		close(st.stopTick)
		st.stopTick = nil
	}
}

// interpolate advances a session's displayed progress by one tick interval,
// capped at its duration, and republishes the derived buffer band.
func (e *Engine) interpolate(id string, stop chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sessions[id]
	// The tick may race its own teardown; only the current generation of
	// the session's ticker may mutate.
	if !ok || st.stopTick != stop || e.halted {
		return
	}

	st.view.ViewOffsetMS += tickInterval.Milliseconds()
	if st.view.DurationMS > 0 && st.view.ViewOffsetMS > st.view.DurationMS {
		st.view.ViewOffsetMS = st.view.DurationMS
	}
	e.display.Patch(id, st.patch())
}
