// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"testing"

	"github.com/watchdeck/watchdeck/internal/models"
)

func testLibraries() map[string]Library {
	return map[string]Library{
		"1": {Kind: "movie", Name: "Movies"},
		"2": {Kind: "show", Name: "TV Shows"},
		"3": {Kind: "artist", Name: "Music"},
		"4": {Kind: "artist", Name: "Audiobooks"},
		"5": {Kind: "artist", Name: "Audio Books"},
		"6": {Kind: "photo", Name: "Photos"},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rec  models.Session
		want models.MediaKind
	}{
		{
			name: "movie section",
			rec:  models.Session{LibrarySectionID: "1", Type: "movie"},
			want: models.MediaKindMovie,
		},
		{
			name: "show section",
			rec:  models.Session{LibrarySectionID: "2", Type: "episode"},
			want: models.MediaKindTV,
		},
		{
			name: "artist section with plain music name",
			rec:  models.Session{LibrarySectionID: "3", Type: "track"},
			want: models.MediaKindMusic,
		},
		{
			name: "artist section named Audiobooks",
			rec:  models.Session{LibrarySectionID: "4", Type: "track"},
			want: models.MediaKindAudiobook,
		},
		{
			name: "artist section named Audio Books with space",
			rec:  models.Session{LibrarySectionID: "5", Type: "track"},
			want: models.MediaKindAudiobook,
		},
		{
			name: "photo section",
			rec:  models.Session{LibrarySectionID: "6", Type: "photo"},
			want: models.MediaKindPhoto,
		},
		{
			name: "unknown section with trailer subtype",
			rec:  models.Session{LibrarySectionID: "99", Subtype: "trailer"},
			want: models.MediaKindTrailer,
		},
		{
			name: "unknown section with other subtype",
			rec:  models.Session{LibrarySectionID: "99", Subtype: "behindTheScenes"},
			want: models.MediaKindFeaturette,
		},
		{
			name: "unknown section with preroll guid",
			rec:  models.Session{LibrarySectionID: "", GUID: "file:///prerolls/intro.mp4"},
			want: models.MediaKindPreroll,
		},
		{
			name: "deleted section with no attributes",
			rec:  models.Session{LibrarySectionID: "42", Type: "movie"},
			want: models.MediaKindUnknown,
		},
	}

	libs := testLibraries()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(&tt.rec, libs); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudiobookRegexIsCaseInsensitive(t *testing.T) {
	libs := map[string]Library{
		"1": {Kind: "artist", Name: "My AUDIOBOOK shelf"},
		"2": {Kind: "artist", Name: "audio book collection"},
		"3": {Kind: "artist", Name: "Audioplays"},
	}

	rec := models.Session{LibrarySectionID: "1"}
	if got := Classify(&rec, libs); got != models.MediaKindAudiobook {
		t.Errorf("uppercase name: got %v, want Audiobook", got)
	}
	rec.LibrarySectionID = "2"
	if got := Classify(&rec, libs); got != models.MediaKindAudiobook {
		t.Errorf("spaced name: got %v, want Audiobook", got)
	}
	// "Audioplays" has no word-boundary "book": stays music.
	rec.LibrarySectionID = "3"
	if got := Classify(&rec, libs); got != models.MediaKindMusic {
		t.Errorf("non-matching name: got %v, want Music", got)
	}
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		name string
		rec  models.Session
		want string
	}{
		{
			name: "plain title",
			rec:  models.Session{Title: "Heat", SessionKey: "17"},
			want: "Heat-17",
		},
		{
			name: "punctuation stripped",
			rec:  models.Session{Title: "M*A*S*H: The Movie (1970)", SessionKey: "3"},
			want: "MASHTheMovie1970-3",
		},
		{
			name: "spaces stripped",
			rec:  models.Session{Title: "The Long Dark", SessionKey: "22"},
			want: "TheLongDark-22",
		},
		{
			name: "empty title keeps session key",
			rec:  models.Session{Title: "", SessionKey: "9"},
			want: "-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identity(&tt.rec); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityUniquePerSessionKey(t *testing.T) {
	// Two streams of the same title must not collide.
	a := models.Session{Title: "Heat", SessionKey: "1"}
	b := models.Session{Title: "Heat", SessionKey: "2"}
	if Identity(&a) == Identity(&b) {
		t.Error("identities collide for distinct session keys")
	}
}
