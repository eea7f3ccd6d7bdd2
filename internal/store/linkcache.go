// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/watchdeck/watchdeck/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	linkTripleKeyPrefix  = "link:triple:"
	linkEpisodeKeyPrefix = "link:episode:"
)

// LinkStaleness is how long a cached cross-reference link stays usable.
// An entry older than this is treated as a miss on read and re-resolved.
const LinkStaleness = 30 * 24 * time.Hour

const linkCacheName = "link"

// linkEntry is the stored value for one resolved link.
type linkEntry struct {
	IMDBID     string    `json:"imdb_id"`
	InsertedAt time.Time `json:"inserted_at"`
}

// LinkCache persists resolved external cross-reference ids keyed by either a
// (series, season, episode) triple or a bare episode id. Entries age out via
// LinkStaleness; stale entries are reported as misses and overwritten by the
// next Put.
type LinkCache struct {
	db *badger.DB

	// now is swappable for staleness tests.
	now func() time.Time
}

// NewLinkCache creates a link cache over db.
func NewLinkCache(db *badger.DB) *LinkCache {
	return &LinkCache{db: db, now: time.Now}
}

// tripleKey builds the storage key for a (series, season, episode) triple.
func tripleKey(seriesID string, season, episode int) []byte {
	return []byte(linkTripleKeyPrefix + seriesID + ":" + strconv.Itoa(season) + ":" + strconv.Itoa(episode))
}

// episodeKey builds the storage key for a bare episode id.
func episodeKey(episodeID string) []byte {
	return []byte(linkEpisodeKeyPrefix + episodeID)
}

// GetTriple looks up the IMDb id cached for a (series, season, episode)
// triple. The second return is false on miss, including stale entries.
func (c *LinkCache) GetTriple(seriesID string, season, episode int) (string, bool, error) {
	return c.get(tripleKey(seriesID, season, episode))
}

// PutTriple stores the IMDb id for a (series, season, episode) triple.
func (c *LinkCache) PutTriple(seriesID string, season, episode int, imdbID string) error {
	return c.put(tripleKey(seriesID, season, episode), imdbID)
}

// GetEpisode looks up the IMDb id cached for a bare episode id.
func (c *LinkCache) GetEpisode(episodeID string) (string, bool, error) {
	return c.get(episodeKey(episodeID))
}

// PutEpisode stores the IMDb id for a bare episode id.
func (c *LinkCache) PutEpisode(episodeID, imdbID string) error {
	return c.put(episodeKey(episodeID), imdbID)
}

func (c *LinkCache) get(key []byte) (string, bool, error) {
	var entry linkEntry

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordCacheRead(linkCacheName, false, false)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("link cache get: %w", err)
	}

	if c.now().Sub(entry.InsertedAt) > LinkStaleness {
		metrics.RecordCacheRead(linkCacheName, false, true)
		return "", false, nil
	}

	metrics.RecordCacheRead(linkCacheName, true, false)
	return entry.IMDBID, true, nil
}

func (c *LinkCache) put(key []byte, imdbID string) error {
	data, err := json.Marshal(linkEntry{IMDBID: imdbID, InsertedAt: c.now()})
	if err != nil {
		return fmt.Errorf("marshal link entry: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("link cache put: %w", err)
	}
	return nil
}
