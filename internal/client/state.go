// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package client

import (
	"github.com/watchdeck/watchdeck/internal/models"
)

// sessionState is the engine's long-lived, mutable copy of one displayed
// session. It is owned exclusively by the ReconciliationEngine and destroyed
// when the identity disappears from a snapshot.
type sessionState struct {
	view models.SessionView

	// stopTick cancels the per-second interpolation goroutine. Nil while
	// the session is paused or not yet ticking.
	stopTick chan struct{}
}

// ticking reports whether an interpolation goroutine is running.
func (s *sessionState) ticking() bool { return s.stopTick != nil }

// patch derives the in-place display update from the current view state.
func (s *sessionState) patch() Patch {
	return Patch{
		State:             s.view.State,
		ViewOffsetMS:      s.view.ViewOffsetMS,
		DurationMS:        s.view.DurationMS,
		Transcoding:       s.view.Transcoding,
		TranscodeProgress: s.view.TranscodeProgress,
		BufferMS:          bufferMS(&s.view),
	}
}

// bufferMS computes the band between transcoded material and the play
// position. Zero for direct play or when transcoding trails playback.
func bufferMS(v *models.SessionView) int64 {
	if !v.Transcoding {
		return 0
	}
	transcoded := int64(v.TranscodeProgress * float64(v.DurationMS))
	if band := transcoded - v.ViewOffsetMS; band > 0 {
		return band
	}
	return 0
}
