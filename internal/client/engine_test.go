// Watchdeck - Media Server Companion Portal
// Copyright 2026 Watchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchdeck/watchdeck

package client

import (
	"context"
	"sync"
	"testing"

	"github.com/watchdeck/watchdeck/internal/models"
)

// fakeDisplay records every mutation the engine applies.
type fakeDisplay struct {
	mu         sync.Mutex
	inserts    []string
	patches    map[string][]Patch
	removes    []string
	dismissed  []string
	moves      []string
	count      int
	reprompted bool
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{patches: map[string][]Patch{}}
}

func (d *fakeDisplay) Insert(v *models.SessionView, pos int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pos > len(d.inserts) {
		pos = len(d.inserts)
	}
	d.inserts = append(d.inserts[:pos], append([]string{v.ID}, d.inserts[pos:]...)...)
}

func (d *fakeDisplay) Patch(id string, p Patch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patches[id] = append(d.patches[id], p)
}

func (d *fakeDisplay) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removes = append(d.removes, id)
}

func (d *fakeDisplay) DismissOverlay(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dismissed = append(d.dismissed, id)
}

func (d *fakeDisplay) MoveToFront(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves = append(d.moves, id)
}

func (d *fakeDisplay) SetActiveCount(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count = n
}

func (d *fakeDisplay) PromptReauth() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reprompted = true
}

func (d *fakeDisplay) movesCopy() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.moves...)
}

func (d *fakeDisplay) patchCount(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.patches[id])
}

// fakeAPI serves canned views. FullSnapshot returns only the ids listed in
// initial; Session resolves any known view and counts its fetches.
type fakeAPI struct {
	mu          sync.Mutex
	views       map[string]*models.SessionView
	initial     []string
	fetches     map[string]int
	snapshotErr error
	sessionGate chan struct{} // when non-nil, Session blocks until closed
}

func newFakeAPI(initial []string, views ...*models.SessionView) *fakeAPI {
	m := map[string]*models.SessionView{}
	for _, v := range views {
		m[v.ID] = v
	}
	return &fakeAPI{views: m, initial: initial, fetches: map[string]int{}}
}

func (f *fakeAPI) FullSnapshot(ctx context.Context) ([]*models.SessionView, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.SessionView, 0, len(f.initial))
	for _, id := range f.initial {
		vc := *f.views[id]
		out = append(out, &vc)
	}
	return out, nil
}

func (f *fakeAPI) Progress(ctx context.Context) ([]models.ProgressUpdate, error) {
	return nil, nil
}

func (f *fakeAPI) Session(ctx context.Context, id string) (*models.SessionView, error) {
	f.mu.Lock()
	gate := f.sessionGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	v, ok := f.views[id]
	if !ok {
		return nil, ErrSessionGone
	}
	vc := *v
	return &vc, nil
}

func (f *fakeAPI) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

func playingView(id string, durationMS, offsetMS int64) *models.SessionView {
	return &models.SessionView{ID: id, State: models.PlayStatePlaying, DurationMS: durationMS, ViewOffsetMS: offsetMS}
}

func update(v *models.SessionView) models.ProgressUpdate {
	return models.ProgressUpdate{
		ID:           v.ID,
		State:        v.State,
		ViewOffsetMS: v.ViewOffsetMS,
		DurationMS:   v.DurationMS,
	}
}

func startedEngine(t *testing.T, api *fakeAPI, display *fakeDisplay) *Engine {
	t.Helper()
	e := NewEngine(api, display)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(e.Stop)
	return e
}

func (e *Engine) orderCopy() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

func (e *Engine) tickingByID(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.sessions[id]
	return ok && st.ticking()
}

func TestReconcileSetDifference(t *testing.T) {
	// Displayed {A,B,C}; next poll reports {B,C,D}.
	a := playingView("A", 100_000, 10_000)
	b := playingView("B", 100_000, 20_000)
	c := playingView("C", 100_000, 30_000)
	d := playingView("D", 100_000, 40_000)

	api := newFakeAPI([]string{"A", "B", "C"}, a, b, c, d)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	e.ApplyProgress(context.Background(), []models.ProgressUpdate{
		update(b), update(c), update(d),
	})
	e.pending.Wait()

	// Exactly one full fetch, for D only.
	if got := api.fetchCount("D"); got != 1 {
		t.Errorf("fetches for D = %d, want 1", got)
	}
	for _, id := range []string{"A", "B", "C"} {
		if got := api.fetchCount(id); got != 0 {
			t.Errorf("fetches for %s = %d, want 0", id, got)
		}
	}

	display.mu.Lock()
	removes := append([]string(nil), display.removes...)
	dismissed := append([]string(nil), display.dismissed...)
	insertCount := map[string]int{}
	for _, id := range display.inserts {
		insertCount[id]++
	}
	patchedB, patchedC := len(display.patches["B"]), len(display.patches["C"])
	display.mu.Unlock()

	// A removed, overlay dismissed alongside.
	if len(removes) != 1 || removes[0] != "A" {
		t.Errorf("removes = %v, want [A]", removes)
	}
	if len(dismissed) != 1 || dismissed[0] != "A" {
		t.Errorf("dismissed = %v, want [A]", dismissed)
	}

	// B and C patched in place, never re-inserted.
	if patchedB == 0 || patchedC == 0 {
		t.Error("B/C not patched in place")
	}
	if insertCount["B"] != 1 || insertCount["C"] != 1 {
		t.Errorf("B/C re-inserted: %v", insertCount)
	}
	if insertCount["D"] != 1 {
		t.Errorf("D inserted %d times, want 1", insertCount["D"])
	}
}

func TestPauseCancelsInterpolation(t *testing.T) {
	a := playingView("A", 100_000, 10_000)
	api := newFakeAPI([]string{"A"}, a)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	if !e.tickingByID("A") {
		t.Fatal("playing session should own a tick")
	}

	paused := update(a)
	paused.State = models.PlayStatePaused
	e.ApplyProgress(context.Background(), []models.ProgressUpdate{paused})

	if e.tickingByID("A") {
		t.Error("tick not cancelled on pause")
	}
}

func TestResumeRestartsInterpolation(t *testing.T) {
	a := playingView("A", 100_000, 10_000)
	a.State = models.PlayStatePaused
	api := newFakeAPI([]string{"A"}, a)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	if e.tickingByID("A") {
		t.Fatal("paused session must not tick")
	}

	resumed := update(a)
	resumed.State = models.PlayStatePlaying
	e.ApplyProgress(context.Background(), []models.ProgressUpdate{resumed})

	if !e.tickingByID("A") {
		t.Error("tick not restarted on resume")
	}
}

func TestOutOfOrderFetchInsertion(t *testing.T) {
	// Engine starts empty; two new identities appear in one poll. Their
	// out-of-band fetches complete in arbitrary order; the final order must
	// follow the comparator, not completion order.
	near := playingView("NearEnd", 100_000, 95_000) // 5s remaining
	far := playingView("FarOut", 100_000, 5_000)    // 95s remaining

	api := newFakeAPI(nil, near, far)
	gate := make(chan struct{})
	api.sessionGate = gate

	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	e.ApplyProgress(context.Background(), []models.ProgressUpdate{update(far), update(near)})
	close(gate)
	e.pending.Wait()

	if order := e.orderCopy(); len(order) != 2 || order[0] != "NearEnd" || order[1] != "FarOut" {
		t.Errorf("order = %v, want [NearEnd FarOut]", order)
	}
}

func TestReorderMinimal(t *testing.T) {
	a := playingView("A", 100_000, 10_000) // 90s remaining
	b := playingView("B", 100_000, 50_000) // 50s remaining
	api := newFakeAPI([]string{"A", "B"}, a, b)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	// Initial order: B (50s left) before A (90s left).
	if order := e.orderCopy(); order[0] != "B" {
		t.Fatalf("initial order = %v", order)
	}

	// Agreeing order: no moves issued.
	e.ApplyProgress(context.Background(), []models.ProgressUpdate{update(a), update(b)})
	if moves := display.movesCopy(); len(moves) != 0 {
		t.Errorf("moves on agreeing order = %v, want none", moves)
	}

	// A jumps ahead of B: reorder walks the target in reverse, front-inserting.
	a2 := update(a)
	a2.ViewOffsetMS = 99_000 // 1s remaining
	e.ApplyProgress(context.Background(), []models.ProgressUpdate{a2, update(b)})

	if moves := display.movesCopy(); len(moves) != 2 || moves[0] != "B" || moves[1] != "A" {
		t.Errorf("moves = %v, want [B A]", moves)
	}
	if order := e.orderCopy(); order[0] != "A" || order[1] != "B" {
		t.Errorf("order = %v, want [A B]", order)
	}
}

func TestInterpolationTick(t *testing.T) {
	a := playingView("A", 10_000, 8_500)
	a.Transcoding = true
	a.TranscodeProgress = 0.95
	api := newFakeAPI([]string{"A"}, a)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	e.mu.Lock()
	stop := e.sessions["A"].stopTick
	e.mu.Unlock()

	e.interpolate("A", stop)

	e.mu.Lock()
	offset := e.sessions["A"].view.ViewOffsetMS
	e.mu.Unlock()
	if offset != 9_500 {
		t.Errorf("offset after tick = %d, want 9500", offset)
	}

	// Next tick caps at duration.
	e.interpolate("A", stop)
	e.mu.Lock()
	offset = e.sessions["A"].view.ViewOffsetMS
	e.mu.Unlock()
	if offset != 10_000 {
		t.Errorf("offset after cap = %d, want 10000", offset)
	}

	// Buffer band derived per tick: 0.95*10000 - 9500 = 0 once playback
	// reaches the transcoded frontier.
	display.mu.Lock()
	patches := append([]Patch(nil), display.patches["A"]...)
	display.mu.Unlock()
	if len(patches) < 2 {
		t.Fatalf("patches = %d, want at least 2", len(patches))
	}
	if got := patches[len(patches)-2].BufferMS; got != 0 {
		t.Errorf("buffer at frontier = %d, want 0", got)
	}
}

func TestStaleTickGenerationIgnored(t *testing.T) {
	a := playingView("A", 100_000, 10_000)
	api := newFakeAPI([]string{"A"}, a)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	e.mu.Lock()
	oldStop := e.sessions["A"].stopTick
	e.mu.Unlock()

	// Pause replaces the tick generation.
	paused := update(a)
	paused.State = models.PlayStatePaused
	e.ApplyProgress(context.Background(), []models.ProgressUpdate{paused})

	e.mu.Lock()
	before := e.sessions["A"].view.ViewOffsetMS
	e.mu.Unlock()

	// A racing tick from the cancelled generation must not advance progress.
	e.interpolate("A", oldStop)

	e.mu.Lock()
	after := e.sessions["A"].view.ViewOffsetMS
	e.mu.Unlock()
	if after != before {
		t.Errorf("stale tick advanced progress: %d -> %d", before, after)
	}
}

func TestAuthorizationLossHalts(t *testing.T) {
	a := playingView("A", 100_000, 10_000)
	api := newFakeAPI([]string{"A"}, a)
	display := newFakeDisplay()
	e := startedEngine(t, api, display)

	basePatches := display.patchCount("A")

	e.HaltForReauth()

	if !e.Halted() {
		t.Fatal("engine not halted")
	}
	display.mu.Lock()
	reprompted := display.reprompted
	display.mu.Unlock()
	if !reprompted {
		t.Error("re-authentication prompt not shown")
	}
	if e.tickingByID("A") {
		t.Error("interpolation survived authorization loss")
	}

	// Later updates are ignored.
	e.ApplyProgress(context.Background(), []models.ProgressUpdate{update(a)})
	if got := display.patchCount("A"); got != basePatches {
		t.Errorf("halted engine applied %d new patches", got-basePatches)
	}
}

func TestBufferMS(t *testing.T) {
	tests := []struct {
		name string
		view models.SessionView
		want int64
	}{
		{
			name: "direct play has no band",
			view: models.SessionView{DurationMS: 10_000, ViewOffsetMS: 2_000},
			want: 0,
		},
		{
			name: "transcode ahead of playback",
			view: models.SessionView{Transcoding: true, TranscodeProgress: 0.5, DurationMS: 10_000, ViewOffsetMS: 2_000},
			want: 3_000,
		},
		{
			name: "transcode trailing playback clamps to zero",
			view: models.SessionView{Transcoding: true, TranscodeProgress: 0.1, DurationMS: 10_000, ViewOffsetMS: 2_000},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bufferMS(&tt.view); got != tt.want {
				t.Errorf("bufferMS() = %d, want %d", got, tt.want)
			}
		})
	}
}
