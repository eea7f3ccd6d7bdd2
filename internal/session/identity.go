// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package session implements the live session pipeline: classification,
// enrichment, aggregation into display-ready views, and the shared ordering
// policy. One poll cycle flows raw upstream records through this package and
// out as a sorted snapshot.
package session

import (
	"strings"

	"github.com/watchdeck/watchdeck/internal/models"
)

// Identity derives the stable per-playback-session key: the sanitized title
// joined with the upstream session key. It is unique within a snapshot,
// stable across polls for one continuous playback, and safe as a map key.
func Identity(rec *models.Session) string {
	return sanitizeTitle(rec.Title) + "-" + rec.SessionKey
}

// sanitizeTitle strips everything but ASCII letters and digits.
func sanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
