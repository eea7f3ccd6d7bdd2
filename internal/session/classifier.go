// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"regexp"
	"strings"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/metrics"
	"github.com/watchdeck/watchdeck/internal/models"
)

// Library describes one library section for classification purposes.
type Library struct {
	Kind string // upstream section type: "movie", "show", "artist", "photo"
	Name string
}

// audiobookLibrary matches library names like "Audiobooks" or "Audio Books",
// which upstream still files under the generic "artist" section kind.
var audiobookLibrary = regexp.MustCompile(`(?i)\baudio\s*book`)

// Classify maps a raw session record to its MediaKind.
//
// Precedence: the library section's kind when the section is known (artist
// sections split into audiobook vs music by library name), then record
// attributes for sessions from deleted or unknown sections, else Unknown.
// Unknown is not an error; the session still renders generically.
func Classify(rec *models.Session, libraries map[string]Library) models.MediaKind {
	if lib, ok := libraries[rec.LibrarySectionID]; ok {
		switch lib.Kind {
		case "movie":
			return models.MediaKindMovie
		case "show":
			return models.MediaKindTV
		case "photo":
			return models.MediaKindPhoto
		case "artist":
			if audiobookLibrary.MatchString(lib.Name) {
				return models.MediaKindAudiobook
			}
			return models.MediaKindMusic
		}
	}

	// Section unknown (deleted library, server-owned content): fall back to
	// record attributes.
	switch {
	case rec.Subtype == "trailer":
		return models.MediaKindTrailer
	case rec.Subtype != "":
		return models.MediaKindFeaturette
	case strings.Contains(rec.GUID, "prerolls"):
		return models.MediaKindPreroll
	}

	metrics.ClassifierUnknownKind.Inc()
	logging.Warn().
		Str("session", rec.SessionKey).
		Str("section", rec.LibrarySectionID).
		Str("type", rec.Type).
		Str("guid", rec.GUID).
		Msg("session kind could not be classified")
	return models.MediaKindUnknown
}
