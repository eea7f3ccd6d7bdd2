// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package models

// MediaKind classifies a session's content for downstream formatting and
// link resolution.
type MediaKind int

const (
	// MediaKindUnknown marks sessions whose library section kind could not
	// be determined. They still render, with generic formatting.
	MediaKindUnknown MediaKind = iota
	MediaKindMovie
	MediaKindTV
	MediaKindAudiobook
	MediaKindMusic
	MediaKindFeaturette
	MediaKindTrailer
	MediaKindPreroll
	MediaKindPhoto
)

// String returns the lowercase wire name of the kind.
func (k MediaKind) String() string {
	switch k {
	case MediaKindMovie:
		return "movie"
	case MediaKindTV:
		return "tv"
	case MediaKindAudiobook:
		return "audiobook"
	case MediaKindMusic:
		return "music"
	case MediaKindFeaturette:
		return "featurette"
	case MediaKindTrailer:
		return "trailer"
	case MediaKindPreroll:
		return "preroll"
	case MediaKindPhoto:
		return "photo"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k MediaKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// PlayState is the normalized playback state of a session.
type PlayState string

const (
	PlayStatePlaying   PlayState = "playing"
	PlayStatePaused    PlayState = "paused"
	PlayStateBuffering PlayState = "buffering"
)

// ArtColor is an averaged RGB color derived from a session's artwork.
// The zero value (black) doubles as "no color available".
type ArtColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// IsZero reports whether no color was derived.
func (c ArtColor) IsZero() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

// SessionView is the aggregated, display-ready representation of one active
// playback session. It is what the API serves and what the client renders.
//
// Privilege-gated fields (User, IPAddress, PlaybackDevice) are populated by
// the aggregator only when the requester's privilege clears the relevant
// threshold; lower-privileged requesters receive zero values, not redactions
// the client must interpret.
type SessionView struct {
	// ID is the stable identity of this session across polls:
	// sanitized title joined with the upstream session key.
	ID string `json:"id"`

	Kind  MediaKind `json:"kind"`
	State PlayState `json:"state"`

	// Title is the composed display title (kind-specific formatting applied).
	Title string `json:"title"`
	// Hyperlink is the external cross-reference link, empty when enrichment
	// produced none.
	Hyperlink string `json:"hyperlink,omitempty"`

	// Show/season/episode context for TV, artist/album for music, author for
	// audiobooks. Empty for movies.
	ParentTitle      string `json:"parent_title,omitempty"`
	GrandparentTitle string `json:"grandparent_title,omitempty"`
	SeasonNumber     int    `json:"season_number,omitempty"`
	EpisodeNumber    int    `json:"episode_number,omitempty"`

	ReleaseDate string `json:"release_date,omitempty"`
	Album       string `json:"album,omitempty"`

	// Progress
	ViewOffsetMS int64 `json:"view_offset_ms"`
	DurationMS   int64 `json:"duration_ms"`

	// Transcoding. TranscodeProgress is the derived ratio of transcoded
	// material to total duration (0-1), the signal interpolation trusts.
	// TranscodeProgressRaw is the upstream-reported percentage (0-100),
	// surfaced for display only.
	Transcoding          bool    `json:"transcoding"`
	TranscodeProgress    float64 `json:"transcode_progress"`
	TranscodeProgressRaw float64 `json:"transcode_progress_raw,omitempty"`
	TranscodeSpeed       float64 `json:"transcode_speed,omitempty"`

	// Stream details from the selected media/part
	BitrateKbps        int    `json:"bitrate_kbps,omitempty"`
	Resolution         string `json:"resolution,omitempty"`
	AudioChannels      string `json:"audio_channels,omitempty"`
	VideoStreamInfo    string `json:"video_stream,omitempty"`
	AudioStreamInfo    string `json:"audio_stream,omitempty"`
	SubtitleStreamInfo string `json:"subtitle_stream,omitempty"`

	// Artwork
	ArtPath   string   `json:"art_path,omitempty"`
	ThumbPath string   `json:"thumb_path,omitempty"`
	ArtColor  ArtColor `json:"art_color"`

	// Privilege-gated fields
	User           string `json:"user,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
	PlaybackDevice string `json:"playback_device,omitempty"`
}

// RemainingMS returns the remaining playback time in milliseconds, never
// negative.
func (v *SessionView) RemainingMS() int64 {
	if r := v.DurationMS - v.ViewOffsetMS; r > 0 {
		return r
	}
	return 0
}

// ProgressUpdate is the lightweight per-session payload served by the
// progress endpoint between full snapshot fetches.
type ProgressUpdate struct {
	ID                string    `json:"id"`
	State             PlayState `json:"state"`
	ViewOffsetMS      int64     `json:"view_offset_ms"`
	DurationMS        int64     `json:"duration_ms"`
	Transcoding       bool      `json:"transcoding"`
	TranscodeProgress float64   `json:"transcode_progress"`
}

// StatusCounts summarizes the active session population.
type StatusCounts struct {
	Total       int `json:"total"`
	Playing     int `json:"playing"`
	Paused      int `json:"paused"`
	Transcoding int `json:"transcoding"`
}
