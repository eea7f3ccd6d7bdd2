// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/watchdeck/watchdeck/internal/metrics"
	"github.com/watchdeck/watchdeck/internal/models"
)

const colorKeyPrefix = "color:"

const colorCacheName = "color"

// ColorCache persists averaged artwork colors keyed by cached image filename.
// Artwork files are content-addressed, so entries never go stale and carry no
// timestamp.
type ColorCache struct {
	db *badger.DB
}

// NewColorCache creates a color cache over db.
func NewColorCache(db *badger.DB) *ColorCache {
	return &ColorCache{db: db}
}

// Get looks up the averaged color for an image filename.
func (c *ColorCache) Get(filename string) (models.ArtColor, bool, error) {
	var color models.ArtColor

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(colorKeyPrefix + filename))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &color)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordCacheRead(colorCacheName, false, false)
		return models.ArtColor{}, false, nil
	}
	if err != nil {
		return models.ArtColor{}, false, fmt.Errorf("color cache get: %w", err)
	}

	metrics.RecordCacheRead(colorCacheName, true, false)
	return color, true, nil
}

// Put stores the averaged color for an image filename.
func (c *ColorCache) Put(filename string, color models.ArtColor) error {
	data, err := json.Marshal(color)
	if err != nil {
		return fmt.Errorf("marshal color entry: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(colorKeyPrefix+filename), data)
	})
	if err != nil {
		return fmt.Errorf("color cache put: %w", err)
	}
	return nil
}
