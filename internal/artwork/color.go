// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

// Package artwork derives display colors from session artwork images.
//
// Posters and art tiles get an averaged RGB accent color. The average is
// computed by sampling every fifth pixel in both axes, which is visually
// indistinguishable from a full scan on poster-sized images at a fraction of
// the cost.
package artwork

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	// Register decoders for the formats artwork arrives in.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/watchdeck/watchdeck/internal/logging"
	"github.com/watchdeck/watchdeck/internal/models"
)

// sampleStride is the pixel sampling interval in both axes.
const sampleStride = 5

// AverageColor computes the averaged RGB color of the image read from r.
func AverageColor(r io.Reader) (models.ArtColor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return models.ArtColor{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	var sumR, sumG, sumB, count uint64

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStride {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			sumR += uint64(r16 >> 8)
			sumG += uint64(g16 >> 8)
			sumB += uint64(b16 >> 8)
			count++
		}
	}

	if count == 0 {
		return models.ArtColor{}, nil
	}

	return models.ArtColor{
		R: uint8(sumR / count),
		G: uint8(sumG / count),
		B: uint8(sumB / count),
	}, nil
}

// ColorCache is the persistence port the colorizer reads through.
type ColorCache interface {
	Get(filename string) (models.ArtColor, bool, error)
	Put(filename string, color models.ArtColor) error
}

// Colorizer resolves accent colors for cached artwork files, consulting the
// persistent color cache before touching the filesystem.
type Colorizer struct {
	cache    ColorCache
	cacheDir string
}

// NewColorizer creates a colorizer reading image files from cacheDir.
func NewColorizer(cache ColorCache, cacheDir string) *Colorizer {
	return &Colorizer{cache: cache, cacheDir: cacheDir}
}

// ColorFor returns the accent color for the named artwork file. Failures
// (missing file, undecodable image, cache errors) degrade to the zero color;
// artwork color is cosmetic and must never fail a session snapshot.
func (c *Colorizer) ColorFor(filename string) models.ArtColor {
	if filename == "" {
		return models.ArtColor{}
	}

	if color, ok, err := c.cache.Get(filename); err == nil && ok {
		return color
	} else if err != nil {
		logging.Warn().Err(err).Str("file", filename).Msg("color cache read failed")
	}

	// filepath.Base guards against traversal in upstream-supplied names.
	f, err := os.Open(filepath.Join(c.cacheDir, filepath.Base(filename)))
	if err != nil {
		logging.Debug().Err(err).Str("file", filename).Msg("artwork file unavailable")
		return models.ArtColor{}
	}
	defer f.Close()

	color, err := AverageColor(f)
	if err != nil {
		logging.Warn().Err(err).Str("file", filename).Msg("artwork decode failed")
		return models.ArtColor{}
	}

	if err := c.cache.Put(filename, color); err != nil {
		logging.Warn().Err(err).Str("file", filename).Msg("color cache write failed")
	}
	return color
}
