// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/models"
	"github.com/watchdeck/watchdeck/internal/tvdb"
)

// External link bases.
const (
	imdbTitleBase        = "https://www.imdb.com/title/"
	audiobookCatalogBase = "https://www.audible.com/pd/"
)

// newAgentPrefix marks guids from the modern metadata agent, whose external
// ids live in the item's metadata document rather than the guid itself.
const newAgentPrefix = "plex://"

// MetadataSource fetches item metadata documents from the upstream server.
type MetadataSource interface {
	GetMetadata(ctx context.Context, ratingKey string) (*models.MetadataItem, error)
}

// TVLookup resolves TV episode and series records from the external catalog.
type TVLookup interface {
	GetEpisode(ctx context.Context, seriesID string, season, episode int) (*tvdb.Episode, error)
	GetEpisodeByID(ctx context.Context, episodeID string) (*tvdb.Episode, error)
	GetSeries(ctx context.Context, seriesID string) (*tvdb.Series, error)
}

// LinkStore is the persistent link cache port.
type LinkStore interface {
	GetTriple(seriesID string, season, episode int) (string, bool, error)
	PutTriple(seriesID string, season, episode int, link string) error
	GetEpisode(episodeID string) (string, bool, error)
	PutEpisode(episodeID, link string) error
}

// Enricher resolves zero-or-one outbound hyperlink per session while
// minimizing external calls. Every failure path degrades to "no hyperlink";
// enrichment never blocks the rest of a view's fields.
type Enricher struct {
	meta   MetadataSource
	lookup TVLookup
	links  LinkStore
}

// NewEnricher creates an enricher. lookup may be nil when the external
// catalog is disabled; TV links then resolve only through the cache and
// direct guid annotations.
func NewEnricher(meta MetadataSource, lookup TVLookup, links LinkStore) *Enricher {
	return &Enricher{meta: meta, lookup: lookup, links: links}
}

// ResolveLink produces the session's outbound hyperlink, or "" when none can
// be resolved.
func (e *Enricher) ResolveLink(ctx context.Context, rec *models.Session, kind models.MediaKind) string {
	guid := rec.GUID

	if !strings.HasPrefix(guid, newAgentPrefix) {
		return e.resolveLegacyGUID(ctx, guid, kind)
	}

	// New-agent guid: external ids live on the metadata document.
	item, err := e.meta.GetMetadata(ctx, rec.RatingKey)
	if err != nil {
		logging.Debug().Err(err).Str("ratingKey", rec.RatingKey).Msg("metadata fetch failed during enrichment")
		return ""
	}

	var tvdbEpisodeID string
	for _, g := range item.Guids {
		switch {
		case strings.HasPrefix(g.ID, "imdb://"):
			// Direct hit. Not cached: it cost one metadata call we had to
			// make regardless.
			return imdbTitleBase + strings.TrimPrefix(g.ID, "imdb://")
		case strings.HasPrefix(g.ID, "tvdb://"):
			tvdbEpisodeID = strings.TrimPrefix(g.ID, "tvdb://")
		}
	}

	if tvdbEpisodeID == "" || kind != models.MediaKindTV {
		return ""
	}
	return e.resolveByEpisodeID(ctx, tvdbEpisodeID)
}

// resolveLegacyGUID handles old-agent guids, where the external id is
// embedded in the guid itself. No network or cache access except for the
// legacy TV agent, whose triple joins the normal lookup path.
func (e *Enricher) resolveLegacyGUID(ctx context.Context, guid string, kind models.MediaKind) string {
	id := externalID(guid)
	if id == "" {
		return ""
	}

	switch kind {
	case models.MediaKindMovie:
		if strings.Contains(guid, "agents.imdb") {
			return imdbTitleBase + id
		}
	case models.MediaKindAudiobook:
		return audiobookCatalogBase + id
	case models.MediaKindTV:
		if seriesID, season, episode, ok := parseTVDBTriple(id); ok {
			return e.resolveTriple(ctx, seriesID, season, episode)
		}
	}
	return ""
}

// externalID extracts the protocol-suffixed id from a legacy guid:
// "com.plexapp.agents.imdb://tt0120737?lang=en" -> "tt0120737".
func externalID(guid string) string {
	_, after, found := strings.Cut(guid, "://")
	if !found {
		return ""
	}
	if i := strings.IndexByte(after, '?'); i >= 0 {
		after = after[:i]
	}
	return after
}

// parseTVDBTriple splits "349232/2/5" into its series/season/episode parts.
func parseTVDBTriple(id string) (seriesID string, season, episode int, ok bool) {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false
	}
	episode, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], season, episode, true
}

// resolveByEpisodeID resolves a link from a bare catalog episode id: cache
// first, then the external lookup. A successful lookup teaches the cache both
// the episode-id key and the (series, season, episode) triple learned from
// the response.
func (e *Enricher) resolveByEpisodeID(ctx context.Context, episodeID string) string {
	if link, ok, err := e.links.GetEpisode(episodeID); err == nil && ok {
		return link
	} else if err != nil {
		logging.Warn().Err(err).Str("episode", episodeID).Msg("link cache read failed")
	}

	if e.lookup == nil {
		return ""
	}

	ep, err := e.lookup.GetEpisodeByID(ctx, episodeID)
	if err != nil || ep.IMDBID == "" {
		logging.Debug().Err(err).Str("episode", episodeID).Msg("episode lookup by id produced no link")
		return ""
	}

	link := imdbTitleBase + ep.IMDBID
	e.cacheLink(strconv.Itoa(ep.SeriesID), ep.AiredSeason, ep.AiredEpisodeNumber, episodeID, link)
	return link
}

// resolveTriple resolves a link from a (series, season, episode) triple:
// cache first, then episode lookup, then the series-level fallback. Series
// fallback links are approximations and are never cached.
func (e *Enricher) resolveTriple(ctx context.Context, seriesID string, season, episode int) string {
	if link, ok, err := e.links.GetTriple(seriesID, season, episode); err == nil && ok {
		return link
	} else if err != nil {
		logging.Warn().Err(err).Str("series", seriesID).Msg("link cache read failed")
	}

	if e.lookup == nil {
		return ""
	}

	ep, err := e.lookup.GetEpisode(ctx, seriesID, season, episode)
	if err == nil && ep.IMDBID != "" {
		link := imdbTitleBase + ep.IMDBID
		e.cacheLink(seriesID, season, episode, strconv.Itoa(ep.ID), link)
		return link
	}
	logging.Debug().Err(err).
		Str("series", seriesID).Int("season", season).Int("episode", episode).
		Msg("episode lookup failed, retrying at series granularity")

	series, err := e.lookup.GetSeries(ctx, seriesID)
	if err != nil || series.IMDBID == "" {
		logging.Debug().Err(err).Str("series", seriesID).Msg("series fallback produced no link")
		return ""
	}
	// Deliberately uncached: the series link stands in for the episode and
	// must be re-resolved once the catalog learns the episode.
	return imdbTitleBase + series.IMDBID
}

// cacheLink writes a resolved link under both natural keys, best-effort.
func (e *Enricher) cacheLink(seriesID string, season, episode int, episodeID, link string) {
	if err := e.links.PutTriple(seriesID, season, episode, link); err != nil {
		logging.Warn().Err(err).Msg("link cache triple write failed")
	}
	if err := e.links.PutEpisode(episodeID, link); err != nil {
		logging.Warn().Err(err).Msg("link cache episode write failed")
	}
}
