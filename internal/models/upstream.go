// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package models

// Upstream media server REST API models.
// These structures represent responses from the media server's session,
// library, and metadata endpoints. Records are ephemeral: they live for one
// poll cycle and are never persisted.

// SessionsResponse is the top-level response from GET /status/sessions.
type SessionsResponse struct {
	MediaContainer SessionsContainer `json:"MediaContainer"`
}

// SessionsContainer wraps the active sessions array.
type SessionsContainer struct {
	Size     int       `json:"size"`
	Metadata []Session `json:"Metadata"`
}

// Session is a single active playback session as reported by the upstream
// server. Optional fields use zero values for "absent"; aggregation code must
// not assume any nested record exists.
type Session struct {
	// Session identification
	SessionKey string `json:"sessionKey"`
	Key        string `json:"key"`
	GUID       string `json:"guid,omitempty"`

	// Content identification
	RatingKey            string `json:"ratingKey"`
	ParentRatingKey      string `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey string `json:"grandparentRatingKey,omitempty"`
	ParentKey            string `json:"parentKey,omitempty"`
	LibrarySectionID     string `json:"librarySectionID,omitempty"`
	Type                 string `json:"type"`              // "movie", "episode", "track", "clip"
	Subtype              string `json:"subtype,omitempty"` // "trailer", "behindTheScenes", ...

	// Titles
	Title            string `json:"title"`
	ParentTitle      string `json:"parentTitle,omitempty"`      // Season / album / book
	GrandparentTitle string `json:"grandparentTitle,omitempty"` // Show / artist / author

	// Episode numbering
	Index       int `json:"index,omitempty"`       // Episode number
	ParentIndex int `json:"parentIndex,omitempty"` // Season number

	// Artwork
	Art              string `json:"art,omitempty"`
	Thumb            string `json:"thumb,omitempty"`
	ParentThumb      string `json:"parentThumb,omitempty"`
	GrandparentThumb string `json:"grandparentThumb,omitempty"`
	GrandparentArt   string `json:"grandparentArt,omitempty"`

	// Playback state
	ViewOffset            int64  `json:"viewOffset"`
	Duration              int64  `json:"duration"`
	OriginallyAvailableAt string `json:"originallyAvailableAt,omitempty"`
	ParentYear            int    `json:"parentYear,omitempty"` // Album / book release year

	// Nested records
	User             *SessionUser      `json:"User,omitempty"`
	Player           *SessionPlayer    `json:"Player,omitempty"`
	TranscodeSession *TranscodeSession `json:"TranscodeSession,omitempty"`
	Media            []Media           `json:"Media,omitempty"`
}

// SessionUser identifies the account streaming this session.
type SessionUser struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Thumb string `json:"thumb,omitempty"`
}

// SessionPlayer describes the playback device.
type SessionPlayer struct {
	Product             string `json:"product"`
	Title               string `json:"title"`
	Vendor              string `json:"vendor,omitempty"`
	Platform            string `json:"platform,omitempty"`
	State               string `json:"state"` // "playing", "paused", "buffering"
	Address             string `json:"address,omitempty"`
	RemotePublicAddress string `json:"remotePublicAddress,omitempty"`
	Local               bool   `json:"local,omitempty"`
}

// TranscodeSession carries active transcode details. Progress is the raw
// upstream percentage; offset-based progress is derived during aggregation.
type TranscodeSession struct {
	Key                string  `json:"key"`
	Throttled          bool    `json:"throttled"`
	Complete           bool    `json:"complete"`
	Progress           float64 `json:"progress"` // 0-100
	Speed              float64 `json:"speed"`
	Duration           int64   `json:"duration"` // ms
	MaxOffsetAvailable float64 `json:"maxOffsetAvailable"`
	MinOffsetAvailable float64 `json:"minOffsetAvailable"`
	VideoDecision      string  `json:"videoDecision"`
	AudioDecision      string  `json:"audioDecision"`
	VideoCodec         string  `json:"videoCodec,omitempty"`
	AudioCodec         string  `json:"audioCodec,omitempty"`
}

// Media is one playable version of the session's content.
type Media struct {
	ID              string `json:"id"`
	Duration        int64  `json:"duration,omitempty"`
	Bitrate         int    `json:"bitrate,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	AudioChannels   int    `json:"audioChannels,omitempty"`
	AudioCodec      string `json:"audioCodec,omitempty"`
	VideoCodec      string `json:"videoCodec,omitempty"`
	VideoResolution string `json:"videoResolution,omitempty"`
	Container       string `json:"container,omitempty"`
	Selected        bool   `json:"selected,omitempty"`
	Part            []Part `json:"Part,omitempty"`
}

// Part is a single file of a Media version. Decision is set when the server
// has recorded a transcode/direct-play decision for this part.
type Part struct {
	ID       string   `json:"id"`
	Duration int64    `json:"duration,omitempty"`
	Bitrate  int      `json:"bitrate,omitempty"`
	Decision string   `json:"decision,omitempty"`
	Selected bool     `json:"selected,omitempty"`
	Stream   []Stream `json:"Stream,omitempty"`
}

// Stream type discriminators used by the upstream server.
const (
	StreamTypeVideo    = 1
	StreamTypeAudio    = 2
	StreamTypeSubtitle = 3
)

// Stream is a single elementary stream within a Part.
type Stream struct {
	ID           string  `json:"id"`
	StreamType   int     `json:"streamType"`
	Codec        string  `json:"codec,omitempty"`
	Bitrate      int     `json:"bitrate,omitempty"`
	Channels     int     `json:"channels,omitempty"` // Audio streams always carry this
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	FrameRate    float64 `json:"frameRate,omitempty"`
	DisplayTitle string  `json:"displayTitle,omitempty"`
	Language     string  `json:"language,omitempty"`
	Decision     string  `json:"decision,omitempty"` // "transcode", "copy", "directplay"
	Selected     bool    `json:"selected,omitempty"`
}

// SectionsResponse is the top-level response from GET /library/sections.
type SectionsResponse struct {
	MediaContainer SectionsContainer `json:"MediaContainer"`
}

// SectionsContainer wraps the list of library sections.
type SectionsContainer struct {
	Size      int       `json:"size"`
	Directory []Section `json:"Directory,omitempty"`
}

// Section is a single library section (Movies, TV Shows, Music, ...).
type Section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"` // "movie", "show", "artist", "photo"
}

// MetadataResponse is the top-level response from GET /library/metadata/{key}.
type MetadataResponse struct {
	MediaContainer MetadataContainer `json:"MediaContainer"`
}

// MetadataContainer wraps one or more metadata items.
type MetadataContainer struct {
	Size     int            `json:"size"`
	Metadata []MetadataItem `json:"Metadata,omitempty"`
}

// MetadataItem is a library item's metadata document. For new-agent items the
// Guid list carries external-id annotations such as "imdb://tt0903747" and
// "tvdb://349232".
type MetadataItem struct {
	RatingKey             string           `json:"ratingKey"`
	Key                   string           `json:"key"`
	GUID                  string           `json:"guid,omitempty"`
	Type                  string           `json:"type"`
	Title                 string           `json:"title"`
	Thumb                 string           `json:"thumb,omitempty"`
	Art                   string           `json:"art,omitempty"`
	Index                 int              `json:"index,omitempty"`
	ParentIndex           int              `json:"parentIndex,omitempty"`
	OriginallyAvailableAt string           `json:"originallyAvailableAt,omitempty"`
	Guids                 []GuidAnnotation `json:"Guid,omitempty"`
}

// GuidAnnotation is one external-id annotation on a metadata item.
type GuidAnnotation struct {
	ID string `json:"id"` // e.g. "imdb://tt0903747"
}
