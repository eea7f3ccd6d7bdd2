// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/watchdeck/watchdeck/internal/metrics"
	"github.com/watchdeck/watchdeck/internal/models"
)

// Upstream is the media server port the fetcher polls.
type Upstream interface {
	GetSessions(ctx context.Context) ([]models.Session, error)
	GetSections(ctx context.Context) ([]models.Section, error)
	GetMetadata(ctx context.Context, ratingKey string) (*models.MetadataItem, error)
}

// Fetcher orchestrates one poll cycle: fetch raw records and the library map
// in parallel, classify, drop photos, aggregate each surviving record, and
// sort with the shared comparator.
type Fetcher struct {
	upstream   Upstream
	aggregator *Aggregator
}

// NewFetcher creates a fetcher.
func NewFetcher(upstream Upstream, aggregator *Aggregator) *Fetcher {
	return &Fetcher{upstream: upstream, aggregator: aggregator}
}

// Snapshot assembles the full sorted session list for a requester at the
// given privilege level. The error is non-nil only when the upstream itself
// is unavailable; per-session enrichment and aggregation failures degrade
// inside their views.
func (f *Fetcher) Snapshot(ctx context.Context, privilege int) ([]*models.SessionView, error) {
	start := time.Now()

	var (
		records  []models.Session
		sections []models.Section
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = f.upstream.GetSessions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sections, err = f.upstream.GetSections(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.RecordSnapshot(0, err, "fetch")
		return nil, fmt.Errorf("fetch upstream state: %w", err)
	}

	libraries := make(map[string]Library, len(sections))
	for _, s := range sections {
		libraries[s.Key] = Library{Kind: s.Type, Name: s.Title}
	}

	// Classify first so photo sessions never reach aggregation.
	type classified struct {
		rec  *models.Session
		kind models.MediaKind
	}
	kept := make([]classified, 0, len(records))
	for i := range records {
		kind := Classify(&records[i], libraries)
		if kind == models.MediaKindPhoto {
			continue
		}
		kept = append(kept, classified{rec: &records[i], kind: kind})
	}

	// Aggregation fans out: each view may need its own metadata and lookup
	// calls, independent of its siblings. Index-stable writes keep snapshot
	// order deterministic before the final sort.
	views := make([]*models.SessionView, len(kept))
	ag, agctx := errgroup.WithContext(ctx)
	ag.SetLimit(8)
	for i, c := range kept {
		ag.Go(func() error {
			views[i] = f.aggregator.Build(agctx, c.rec, c.kind, privilege)
			return nil
		})
	}
	_ = ag.Wait() // workers never return errors; aggregation degrades per-view

	Sort(views)

	metrics.RecordSnapshot(time.Since(start), nil, "")
	metrics.SetActiveSessions(countStates(views))
	return views, nil
}

// Progress assembles the lightweight progress payload: the field subset the
// client interpolates between full snapshots. No privilege-gated fields are
// involved, so no privilege input.
func (f *Fetcher) Progress(ctx context.Context) ([]models.ProgressUpdate, error) {
	views, err := f.Snapshot(ctx, 0)
	if err != nil {
		return nil, err
	}

	updates := make([]models.ProgressUpdate, len(views))
	for i, v := range views {
		updates[i] = models.ProgressUpdate{
			ID:                v.ID,
			State:             v.State,
			ViewOffsetMS:      v.ViewOffsetMS,
			DurationMS:        v.DurationMS,
			Transcoding:       v.Transcoding,
			TranscodeProgress: v.TranscodeProgress,
		}
	}
	return updates, nil
}

// Status summarizes the session population without privileged detail.
func (f *Fetcher) Status(ctx context.Context) (models.StatusCounts, error) {
	views, err := f.Snapshot(ctx, 0)
	if err != nil {
		return models.StatusCounts{}, err
	}

	counts := models.StatusCounts{Total: len(views)}
	for _, v := range views {
		switch v.State {
		case models.PlayStatePaused:
			counts.Paused++
		default:
			counts.Playing++
		}
		if v.Transcoding {
			counts.Transcoding++
		}
	}
	return counts, nil
}

func countStates(views []*models.SessionView) map[string]int {
	counts := make(map[string]int, 3)
	for _, v := range views {
		counts[string(v.State)]++
	}
	return counts
}
