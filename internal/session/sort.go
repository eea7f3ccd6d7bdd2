// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"sort"

	"github.com/watchdeck/watchdeck/internal/models"
)

// Less is the shared ordering policy: every playing session precedes every
// paused one; within equal play-state, ascending remaining time (soonest to
// finish first). The polling client applies the identical comparator before
// diffing — reorder minimality depends on both sides agreeing.
func Less(a, b *models.SessionView) bool {
	aPlaying := a.State != models.PlayStatePaused
	bPlaying := b.State != models.PlayStatePaused
	if aPlaying != bPlaying {
		return aPlaying
	}
	return a.RemainingMS() < b.RemainingMS()
}

// Sort orders views in place with the shared comparator. The sort is stable
// so equal sessions keep their snapshot order across polls.
func Sort(views []*models.SessionView) {
	sort.SliceStable(views, func(i, j int) bool {
		return Less(views[i], views[j])
	})
}
