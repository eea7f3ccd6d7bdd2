// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/watchdeck/watchdeck/internal/models"
	"github.com/watchdeck/watchdeck/internal/tvdb"
)

// fakeLinkStore is an in-memory LinkStore with call accounting.
type fakeLinkStore struct {
	triples  map[string]string
	episodes map[string]string
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{triples: map[string]string{}, episodes: map[string]string{}}
}

func tripleID(seriesID string, season, episode int) string {
	return fmt.Sprintf("%s/%d/%d", seriesID, season, episode)
}

func (s *fakeLinkStore) GetTriple(seriesID string, season, episode int) (string, bool, error) {
	link, ok := s.triples[tripleID(seriesID, season, episode)]
	return link, ok, nil
}

func (s *fakeLinkStore) PutTriple(seriesID string, season, episode int, link string) error {
	s.triples[tripleID(seriesID, season, episode)] = link
	return nil
}

func (s *fakeLinkStore) GetEpisode(episodeID string) (string, bool, error) {
	link, ok := s.episodes[episodeID]
	return link, ok, nil
}

func (s *fakeLinkStore) PutEpisode(episodeID, link string) error {
	s.episodes[episodeID] = link
	return nil
}

// fakeLookup is a canned TVLookup with call counters.
type fakeLookup struct {
	episode      *tvdb.Episode
	episodeErr   error
	series       *tvdb.Series
	seriesErr    error
	episodeCalls int
	byIDCalls    int
	seriesCalls  int
}

func (f *fakeLookup) GetEpisode(ctx context.Context, seriesID string, season, episode int) (*tvdb.Episode, error) {
	f.episodeCalls++
	return f.episode, f.episodeErr
}

func (f *fakeLookup) GetEpisodeByID(ctx context.Context, episodeID string) (*tvdb.Episode, error) {
	f.byIDCalls++
	return f.episode, f.episodeErr
}

func (f *fakeLookup) GetSeries(ctx context.Context, seriesID string) (*tvdb.Series, error) {
	f.seriesCalls++
	return f.series, f.seriesErr
}

// fakeMeta serves one canned metadata item.
type fakeMeta struct {
	item  *models.MetadataItem
	err   error
	calls int
}

func (f *fakeMeta) GetMetadata(ctx context.Context, ratingKey string) (*models.MetadataItem, error) {
	f.calls++
	return f.item, f.err
}

func TestResolveLinkLegacyIMDBGuid(t *testing.T) {
	e := NewEnricher(&fakeMeta{}, &fakeLookup{}, newFakeLinkStore())

	rec := models.Session{GUID: "com.plexapp.agents.imdb://tt0120737?lang=en"}
	got := e.ResolveLink(context.Background(), &rec, models.MediaKindMovie)
	if want := "https://www.imdb.com/title/tt0120737"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveLinkAudiobookGuid(t *testing.T) {
	e := NewEnricher(&fakeMeta{}, &fakeLookup{}, newFakeLinkStore())

	rec := models.Session{GUID: "com.plexapp.agents.audnexus://B08G9PRS1K?lang=en"}
	got := e.ResolveLink(context.Background(), &rec, models.MediaKindAudiobook)
	if want := "https://www.audible.com/pd/B08G9PRS1K"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveLinkMusicProducesNone(t *testing.T) {
	meta := &fakeMeta{}
	e := NewEnricher(meta, &fakeLookup{}, newFakeLinkStore())

	rec := models.Session{GUID: "com.plexapp.agents.lastfm://some-track?lang=en"}
	if got := e.ResolveLink(context.Background(), &rec, models.MediaKindMusic); got != "" {
		t.Errorf("got %q, want no link", got)
	}
	if meta.calls != 0 {
		t.Errorf("legacy guid triggered %d metadata calls, want 0", meta.calls)
	}
}

func TestResolveLinkLegacyTVDBTripleCaching(t *testing.T) {
	store := newFakeLinkStore()
	lookup := &fakeLookup{
		episode: &tvdb.Episode{ID: 99, SeriesID: 349232, AiredSeason: 2, AiredEpisodeNumber: 5, IMDBID: "tt1234567"},
	}
	e := NewEnricher(&fakeMeta{}, lookup, store)

	rec := models.Session{GUID: "com.plexapp.agents.thetvdb://349232/2/5?lang=en"}
	ctx := context.Background()

	want := "https://www.imdb.com/title/tt1234567"
	if got := e.ResolveLink(ctx, &rec, models.MediaKindTV); got != want {
		t.Fatalf("first resolve: got %q, want %q", got, want)
	}
	if lookup.episodeCalls != 1 {
		t.Fatalf("episode lookups after first resolve = %d, want 1", lookup.episodeCalls)
	}

	// Both natural keys learned from the one lookup.
	if _, ok := store.triples[tripleID("349232", 2, 5)]; !ok {
		t.Error("triple key not cached")
	}
	if _, ok := store.episodes["99"]; !ok {
		t.Error("episode-id key not cached")
	}

	// Second resolve inside the staleness window: zero external calls,
	// identical link.
	if got := e.ResolveLink(ctx, &rec, models.MediaKindTV); got != want {
		t.Errorf("second resolve: got %q, want %q", got, want)
	}
	if lookup.episodeCalls != 1 {
		t.Errorf("episode lookups after cached resolve = %d, want 1", lookup.episodeCalls)
	}
}

func TestResolveLinkSeriesFallbackNotCached(t *testing.T) {
	store := newFakeLinkStore()
	lookup := &fakeLookup{
		episodeErr: errors.New("episode not in catalog"),
		series:     &tvdb.Series{ID: 349232, IMDBID: "tt0099999"},
	}
	e := NewEnricher(&fakeMeta{}, lookup, store)

	rec := models.Session{GUID: "com.plexapp.agents.thetvdb://349232/2/5"}
	ctx := context.Background()

	want := "https://www.imdb.com/title/tt0099999"
	if got := e.ResolveLink(ctx, &rec, models.MediaKindTV); got != want {
		t.Fatalf("got %q, want series link %q", got, want)
	}

	// The approximation must not be cached anywhere.
	if len(store.triples) != 0 || len(store.episodes) != 0 {
		t.Errorf("series fallback was cached: triples=%v episodes=%v", store.triples, store.episodes)
	}

	// And it re-resolves every time until the episode appears.
	_ = e.ResolveLink(ctx, &rec, models.MediaKindTV)
	if lookup.seriesCalls != 2 {
		t.Errorf("series calls = %d, want 2 (fallback never cached)", lookup.seriesCalls)
	}
}

func TestResolveLinkBothLookupsFail(t *testing.T) {
	lookup := &fakeLookup{
		episodeErr: errors.New("down"),
		seriesErr:  errors.New("down"),
	}
	e := NewEnricher(&fakeMeta{}, lookup, newFakeLinkStore())

	rec := models.Session{GUID: "com.plexapp.agents.thetvdb://349232/2/5"}
	if got := e.ResolveLink(context.Background(), &rec, models.MediaKindTV); got != "" {
		t.Errorf("got %q, want no link", got)
	}
}

func TestResolveLinkNewAgentIMDBAnnotation(t *testing.T) {
	meta := &fakeMeta{item: &models.MetadataItem{
		RatingKey: "4242",
		Guids: []models.GuidAnnotation{
			{ID: "imdb://tt7654321"},
			{ID: "tvdb://99"},
		},
	}}
	lookup := &fakeLookup{}
	e := NewEnricher(meta, lookup, newFakeLinkStore())

	rec := models.Session{GUID: "plex://episode/5d9c0a", RatingKey: "4242"}
	got := e.ResolveLink(context.Background(), &rec, models.MediaKindTV)
	if want := "https://www.imdb.com/title/tt7654321"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if lookup.byIDCalls != 0 {
		t.Errorf("imdb annotation present but %d lookup calls issued", lookup.byIDCalls)
	}
}

func TestResolveLinkNewAgentTVDBAnnotation(t *testing.T) {
	meta := &fakeMeta{item: &models.MetadataItem{
		RatingKey: "4242",
		Guids:     []models.GuidAnnotation{{ID: "tvdb://99"}},
	}}
	store := newFakeLinkStore()
	lookup := &fakeLookup{
		episode: &tvdb.Episode{ID: 99, SeriesID: 349232, AiredSeason: 2, AiredEpisodeNumber: 5, IMDBID: "tt1234567"},
	}
	e := NewEnricher(meta, lookup, store)

	rec := models.Session{GUID: "plex://episode/5d9c0a", RatingKey: "4242"}
	ctx := context.Background()

	want := "https://www.imdb.com/title/tt1234567"
	if got := e.ResolveLink(ctx, &rec, models.MediaKindTV); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if lookup.byIDCalls != 1 {
		t.Errorf("byID calls = %d, want 1", lookup.byIDCalls)
	}

	// Triple learned from the response, keyed for future legacy-guid hits.
	if _, ok := store.triples[tripleID("349232", 2, 5)]; !ok {
		t.Error("triple not learned from id lookup response")
	}

	// Cached by episode id: second resolve issues no lookup.
	if got := e.ResolveLink(ctx, &rec, models.MediaKindTV); got != want {
		t.Errorf("cached resolve: got %q, want %q", got, want)
	}
	if lookup.byIDCalls != 1 {
		t.Errorf("byID calls after cache hit = %d, want 1", lookup.byIDCalls)
	}
}

func TestResolveLinkMetadataFetchFailure(t *testing.T) {
	meta := &fakeMeta{err: errors.New("upstream 500")}
	e := NewEnricher(meta, &fakeLookup{}, newFakeLinkStore())

	rec := models.Session{GUID: "plex://movie/abc", RatingKey: "7"}
	if got := e.ResolveLink(context.Background(), &rec, models.MediaKindMovie); got != "" {
		t.Errorf("got %q, want no link on metadata failure", got)
	}
}

func TestResolveLinkNilLookupFailsClosed(t *testing.T) {
	// Catalog disabled or handshake failed: cache misses produce no link and
	// no panic.
	e := NewEnricher(&fakeMeta{}, nil, newFakeLinkStore())

	rec := models.Session{GUID: "com.plexapp.agents.thetvdb://349232/2/5"}
	if got := e.ResolveLink(context.Background(), &rec, models.MediaKindTV); got != "" {
		t.Errorf("got %q, want no link with nil lookup", got)
	}
}
