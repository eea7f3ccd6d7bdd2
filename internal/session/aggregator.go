// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/models"
)

// Privilege thresholds gating sensitive SessionView fields.
const (
	PrivilegeModerator = 80  // unlocks user identity and device
	PrivilegeAdmin     = 100 // additionally unlocks the client IP address
)

// Colorizer resolves an accent color for an artwork file.
type Colorizer interface {
	ColorFor(filename string) models.ArtColor
}

// Aggregator combines classification, enrichment, and stream selection into
// display-ready SessionViews.
type Aggregator struct {
	enricher *Enricher
	colors   Colorizer
}

// NewAggregator creates an aggregator.
func NewAggregator(enricher *Enricher, colors Colorizer) *Aggregator {
	return &Aggregator{enricher: enricher, colors: colors}
}

// Build assembles one SessionView from a raw record. privilege is the
// requester's level, passed explicitly; it gates the user, device, and IP
// fields. Malformed records (no media, no audio stream) produce best-effort
// partial views, never errors.
func (a *Aggregator) Build(ctx context.Context, rec *models.Session, kind models.MediaKind, privilege int) *models.SessionView {
	view := &models.SessionView{
		ID:               Identity(rec),
		Kind:             kind,
		State:            playState(rec),
		Title:            composeTitle(rec, kind),
		ParentTitle:      rec.ParentTitle,
		GrandparentTitle: rec.GrandparentTitle,
		ReleaseDate:      rec.OriginallyAvailableAt,
		ViewOffsetMS:     rec.ViewOffset,
	}
	switch kind {
	case models.MediaKindTV:
		view.SeasonNumber = rec.ParentIndex
		view.EpisodeNumber = rec.Index
	case models.MediaKindMusic, models.MediaKindAudiobook:
		view.Album = rec.ParentTitle
		// Tracks rarely carry their own date; the album/book year stands in.
		if view.ReleaseDate == "" && rec.ParentYear > 0 {
			view.ReleaseDate = strconv.Itoa(rec.ParentYear)
		}
	}

	media := selectMedia(rec.Media)
	part := selectPart(media)

	view.DurationMS = durationBasis(rec, media)
	a.fillStreams(view, media, part)
	a.fillTranscode(view, rec)
	a.fillArt(view, rec, kind)

	view.Hyperlink = a.enricher.ResolveLink(ctx, rec, kind)

	if privilege >= PrivilegeModerator {
		if rec.User != nil {
			view.User = rec.User.Title
		}
		if rec.Player != nil {
			view.PlaybackDevice = deviceName(rec.Player)
		}
	}
	if privilege >= PrivilegeAdmin && rec.Player != nil {
		view.IPAddress = rec.Player.Address
	}

	return view
}

// playState normalizes the player state, defaulting to playing when the
// player record is absent.
func playState(rec *models.Session) models.PlayState {
	if rec.Player == nil {
		return models.PlayStatePlaying
	}
	switch rec.Player.State {
	case "paused":
		return models.PlayStatePaused
	case "buffering":
		return models.PlayStateBuffering
	default:
		return models.PlayStatePlaying
	}
}

// selectMedia picks the media version explicitly flagged selected, else the
// first. Returns nil when the record carries no media at all.
func selectMedia(media []models.Media) *models.Media {
	for i := range media {
		if media[i].Selected {
			return &media[i]
		}
	}
	if len(media) > 0 {
		return &media[0]
	}
	return nil
}

// selectPart picks the part carrying a recorded playback decision, else the
// first part of the media.
func selectPart(media *models.Media) *models.Part {
	if media == nil {
		return nil
	}
	for i := range media.Part {
		if media.Part[i].Decision != "" {
			return &media.Part[i]
		}
	}
	if len(media.Part) > 0 {
		return &media.Part[0]
	}
	return nil
}

// selectStream picks the stream of streamType carrying a decision, else the
// first stream of that type.
func selectStream(part *models.Part, streamType int) *models.Stream {
	if part == nil {
		return nil
	}
	var first *models.Stream
	for i := range part.Stream {
		s := &part.Stream[i]
		if s.StreamType != streamType {
			continue
		}
		if s.Decision != "" {
			return s
		}
		if first == nil {
			first = s
		}
	}
	return first
}

// durationBasis prefers the selected media's duration over the session's
// top-level duration, which matters for multi-cut libraries.
func durationBasis(rec *models.Session, media *models.Media) int64 {
	if media != nil && media.Duration > 0 {
		return media.Duration
	}
	return rec.Duration
}

// fillStreams populates bitrate, resolution, and stream summaries from the
// selected part. A missing audio stream is a malformed record: log the
// anomaly and keep the partial view.
func (a *Aggregator) fillStreams(view *models.SessionView, media *models.Media, part *models.Part) {
	audio := selectStream(part, models.StreamTypeAudio)
	video := selectStream(part, models.StreamTypeVideo)
	subtitle := selectStream(part, models.StreamTypeSubtitle)

	if audio != nil {
		view.AudioChannels = channelName(audio.Channels)
		view.AudioStreamInfo = streamSummary(audio)
	} else {
		logging.Warn().Str("session", view.ID).Msg("record has no audio stream")
	}
	if video != nil {
		view.VideoStreamInfo = streamSummary(video)
		if video.Width > 0 && video.Height > 0 {
			view.Resolution = fmt.Sprintf("%dx%d", video.Width, video.Height)
		}
	}
	if subtitle != nil {
		view.SubtitleStreamInfo = streamSummary(subtitle)
	}

	// Bitrate: stream level, else part, else the containing media.
	switch {
	case video != nil && video.Bitrate > 0:
		view.BitrateKbps = video.Bitrate
	case part != nil && part.Bitrate > 0:
		view.BitrateKbps = part.Bitrate
	case media != nil && media.Bitrate > 0:
		view.BitrateKbps = media.Bitrate
	}
}

// fillTranscode populates both transcode signals. The offset/duration ratio
// is primary; the raw upstream percentage is informational.
func (a *Aggregator) fillTranscode(view *models.SessionView, rec *models.Session) {
	ts := rec.TranscodeSession
	if ts == nil {
		return
	}
	view.Transcoding = true
	view.TranscodeProgressRaw = ts.Progress
	view.TranscodeSpeed = ts.Speed

	if view.DurationMS > 0 {
		// MaxOffsetAvailable is in seconds.
		ratio := ts.MaxOffsetAvailable * 1000 / float64(view.DurationMS)
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
		view.TranscodeProgress = ratio
	}
}

// Default placeholder artwork, served from the static asset bundle.
const (
	defaultArtAudio = "/static/img/art-audio.svg"
	defaultArtTV    = "/static/img/art-tv.svg"
	defaultArtMovie = "/static/img/art-movie.svg"

	defaultThumbAudio = "/static/img/thumb-audio.svg"
	defaultThumbTV    = "/static/img/thumb-tv.svg"
	defaultThumbMovie = "/static/img/thumb-movie.svg"
)

// fillArt resolves the art and thumbnail paths through the kind-specific
// fallback chains and attaches the averaged accent color. The chain order
// decides which default placeholder renders, so it must not be reordered.
func (a *Aggregator) fillArt(view *models.SessionView, rec *models.Session, kind models.MediaKind) {
	var artChain, thumbChain []string
	switch kind {
	case models.MediaKindAudiobook, models.MediaKindMusic:
		artChain = []string{rec.Art, rec.GrandparentArt, rec.ParentThumb, defaultArtAudio}
		thumbChain = []string{rec.Thumb, rec.ParentThumb, defaultThumbAudio}
	case models.MediaKindTV:
		artChain = []string{rec.Art, rec.GrandparentArt, rec.GrandparentThumb, rec.ParentThumb, defaultArtTV}
		thumbChain = []string{rec.Thumb, rec.ParentThumb, rec.GrandparentThumb, defaultThumbTV}
	default:
		artChain = []string{rec.Art, rec.Thumb, defaultArtMovie}
		thumbChain = []string{rec.Thumb, defaultThumbMovie}
	}
	view.ArtPath = firstNonEmpty(artChain)
	view.ThumbPath = firstNonEmpty(thumbChain)

	if a.colors != nil && !strings.HasPrefix(view.ArtPath, "/static/") {
		view.ArtColor = a.colors.ColorFor(artFilename(view.ArtPath))
	}
}

func firstNonEmpty(chain []string) string {
	for _, p := range chain {
		if p != "" {
			return p
		}
	}
	return ""
}

// artFilename derives the image cache filename for an upstream art path:
// "/library/metadata/42/art/1700000000" -> "42-art-1700000000".
func artFilename(artPath string) string {
	trimmed := strings.TrimPrefix(artPath, "/library/metadata/")
	if trimmed == artPath {
		return path.Base(artPath)
	}
	return strings.ReplaceAll(trimmed, "/", "-")
}

// composeTitle builds the friendly display title per kind.
func composeTitle(rec *models.Session, kind models.MediaKind) string {
	switch kind {
	case models.MediaKindTV:
		if rec.GrandparentTitle != "" {
			return fmt.Sprintf("%s: %s (S%02dE%02d)", rec.GrandparentTitle, rec.Title, rec.ParentIndex, rec.Index)
		}
	case models.MediaKindAudiobook:
		if rec.ParentTitle != "" && rec.GrandparentTitle != "" {
			return fmt.Sprintf("%s by %s: %s", rec.ParentTitle, rec.GrandparentTitle, rec.Title)
		}
	case models.MediaKindMusic:
		if rec.GrandparentTitle != "" {
			return rec.Title + " - " + rec.GrandparentTitle
		}
	case models.MediaKindTrailer:
		return "Trailer - " + rec.Title
	case models.MediaKindPreroll:
		return "Preroll - " + rec.Title
	}
	return rec.Title
}

// channelName maps an audio channel count to its conventional name.
func channelName(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// streamSummary prefers upstream's display title, falling back to the codec.
func streamSummary(s *models.Stream) string {
	if s.DisplayTitle != "" {
		return s.DisplayTitle
	}
	return strings.ToUpper(s.Codec)
}

// deviceName composes the playback device label. Browser players report a
// generic product name, so the player title carries the useful detail.
func deviceName(p *models.SessionPlayer) string {
	switch {
	case p.Title == "":
		return p.Product
	case strings.Contains(p.Product, "Web"):
		return p.Title + " (Web)"
	case p.Product != "" && p.Product != p.Title:
		return p.Product + " - " + p.Title
	default:
		return p.Title
	}
}
