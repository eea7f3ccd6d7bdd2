// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package client keeps a remote display synchronized with the server's
// session state: an initial full snapshot, lightweight progress polls on a
// fixed cadence, per-second local interpolation, and identity-keyed
// diff reconciliation against an abstract Display.
package client

import "github.com/watchdeck/watchdeck/internal/models"

// Patch is the in-place update applied to an already-displayed session. The
// visual node is mutated, never replaced.
type Patch struct {
	State             models.PlayState
	ViewOffsetMS      int64
	DurationMS        int64
	Transcoding       bool
	TranscodeProgress float64

	// BufferMS is the derived band between transcoded material and the
	// play position, recomputed on every patch and interpolation tick.
	BufferMS int64
}

// Display is the rendering port the reconciliation engine drives. Positions
// are indexes into the display's current order at call time.
type Display interface {
	// Insert places a new session at the given position.
	Insert(view *models.SessionView, position int)

	// Patch mutates a displayed session in place.
	Patch(id string, p Patch)

	// Remove deletes a session from the view.
	Remove(id string)

	// DismissOverlay closes any tooltip or hover overlay owned by the
	// session. Overlays are not bound to the element's lifecycle, so the
	// engine dismisses them explicitly before removal.
	DismissOverlay(id string)

	// MoveToFront re-inserts a displayed session at the front of the order.
	MoveToFront(id string)

	// SetActiveCount updates the view's aggregate session counter.
	SetActiveCount(n int)

	// PromptReauth presents a blocking re-authentication prompt after the
	// server signals authorization loss.
	PromptReauth()
}
