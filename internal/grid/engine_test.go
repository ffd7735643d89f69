package grid

import (
	"testing"
	"time"

	"minigames/internal/loop"
)

type revealCall struct {
	tile *Tile
	face Face
	opts RevealOptions
}

// fakeVisual records calls and completes reveals on the clock after anim.
type fakeVisual struct {
	clock   *loop.Manual
	anim    time.Duration
	reveals []revealCall
	hovers  map[Coord]bool
	wiggles int
	flats   int
}

func newFakeVisual(clock *loop.Manual) *fakeVisual {
	return &fakeVisual{clock: clock, anim: 50 * time.Millisecond, hovers: make(map[Coord]bool)}
}

func (v *fakeVisual) ScheduleRevealAnimation(t *Tile, face Face, opts RevealOptions) {
	v.reveals = append(v.reveals, revealCall{tile: t, face: face, opts: opts})
	if v.clock == nil {
		opts.OnComplete()
		return
	}
	v.clock.AfterFunc(v.anim, opts.OnComplete)
}

func (v *fakeVisual) ScheduleHover(t *Tile, on bool) { v.hovers[t.Coord()] = on }
func (v *fakeVisual) ScheduleWiggle(*Tile)           { v.wiggles++ }
func (v *fakeVisual) ForceFlatPose(*Tile)            { v.flats++ }

type recorder struct {
	selected  []Coord
	autoCount []int
	wins      int
	losses    int
	changes   int
	cascades  int
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnCardSelected:        func(row, col int) { r.selected = append(r.selected, Coord{Row: row, Col: col}) },
		OnAutoSelectionChange: func(n int) { r.autoCount = append(r.autoCount, n) },
		OnWin:                 func() { r.wins++ },
		OnGameOver:            func() { r.losses++ },
		OnChange:              func(State) { r.changes++ },
		OnCascadeDone:         func() { r.cascades++ },
	}
}

type harness struct {
	engine *Engine
	clock  *loop.Manual
	visual *fakeVisual
	rec    *recorder
	mode   Mode
}

func newHarness(t *testing.T, grid, hazards int) *harness {
	t.Helper()
	h := &harness{clock: loop.NewManual(), rec: &recorder{}, mode: ModeManual}
	h.visual = newFakeVisual(h.clock)
	cfg := DefaultConfig()
	cfg.GridSize = grid
	cfg.Hazards = hazards
	cfg.Rand = NewSeededRand(7)
	h.engine = New(cfg, Deps{
		Visual:    h.visual,
		Modes:     ModeFunc(func() Mode { return h.mode }),
		Scheduler: h.clock,
	}, h.rec.handlers())
	return h
}

func (h *harness) tapAndResolve(t *testing.T, row, col int, bomb bool) {
	t.Helper()
	if !h.engine.HandleTap(row, col) {
		t.Fatalf("tap (%d, %d) rejected", row, col)
	}
	if !h.engine.FinalizeSelection(bomb) {
		t.Fatalf("finalize (%d, %d) rejected", row, col)
	}
	h.clock.RunAll()
}

func countFaces(tiles []*Tile) (safe, hazard, hidden int) {
	for _, t := range tiles {
		switch t.Face() {
		case FaceSafe:
			safe++
		case FaceHazard:
			hazard++
		default:
			hidden++
		}
	}
	return
}

func TestEngine_RevealAtMostOnce(t *testing.T) {
	h := newHarness(t, 3, 1)
	tile := h.engine.Tile(1, 1)

	var statuses []RevealStatus
	done := func(s RevealStatus) { statuses = append(statuses, s) }

	if !h.engine.RevealTile(tile, FaceSafe, false, done) {
		t.Fatal("expected first reveal to be scheduled")
	}
	if h.engine.RevealTile(tile, FaceHazard, false, done) {
		t.Error("expected reveal of an animating tile to be rejected")
	}
	h.clock.RunAll()
	if h.engine.RevealTile(tile, FaceHazard, false, done) {
		t.Error("expected reveal of a revealed tile to be rejected")
	}

	want := []RevealStatus{RevealRejected, RevealCompleted, RevealRejected}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, statuses)
		}
	}
	if len(h.visual.reveals) != 1 {
		t.Errorf("expected 1 reveal animation, got %d", len(h.visual.reveals))
	}
	if tile.Face() != FaceSafe {
		t.Errorf("expected safe face, got %v", tile.Face())
	}
}

func TestEngine_ManualScenario(t *testing.T) {
	h := newHarness(t, 5, 5)

	h.tapAndResolve(t, 0, 0, false)
	h.tapAndResolve(t, 0, 1, false)

	s := h.engine.State()
	if s.RevealedSafe != 2 || s.TotalSafe != 20 || s.GameOver {
		t.Fatalf("unexpected state after two wins: %+v", s)
	}

	h.tapAndResolve(t, 0, 2, true)
	if !h.engine.State().GameOver {
		t.Fatal("expected game over after hazard")
	}
	if h.rec.losses != 1 {
		t.Errorf("expected one game over, got %d", h.rec.losses)
	}
	if last := h.engine.LastHazard(); last == nil || last.Coord() != (Coord{Row: 0, Col: 2}) {
		t.Errorf("expected last hazard at (0, 2), got %v", last)
	}

	scheduled := h.engine.RevealAllTiles(h.engine.LastHazard())
	if scheduled != 22 {
		t.Errorf("expected 22 cascade reveals, got %d", scheduled)
	}
	h.clock.RunAll()

	safe, hazard, hidden := countFaces(h.engine.Tiles())
	if hazard != 5 || safe != 20 || hidden != 0 {
		t.Errorf("expected 20 safe / 5 hazards / 0 hidden, got %d / %d / %d", safe, hazard, hidden)
	}
	if got := len(h.engine.HazardPositions()); got != 5 {
		t.Errorf("expected 5 hazard positions, got %d", got)
	}
	if h.rec.cascades != 1 {
		t.Errorf("expected one cascade done, got %d", h.rec.cascades)
	}
	if h.engine.RevealAllTiles(nil) != 0 {
		t.Error("expected a second cascade to be a no-op")
	}
}

func TestEngine_WinFiresOnce(t *testing.T) {
	h := newHarness(t, 3, 1)

	for i := 0; i < 8; i++ {
		h.tapAndResolve(t, i/3, i%3, false)
	}

	s := h.engine.State()
	if !s.GameOver || s.RevealedSafe != 8 {
		t.Fatalf("expected a won round, got %+v", s)
	}
	if h.rec.wins != 1 {
		t.Errorf("expected exactly one win, got %d", h.rec.wins)
	}
	if h.rec.losses != 0 {
		t.Errorf("expected no game over, got %d", h.rec.losses)
	}
	if h.engine.HandleTap(2, 2) {
		t.Error("expected taps to be refused after the round ended")
	}
}

func TestEngine_ManualGuards(t *testing.T) {
	t.Run("second tap waits for the first choice", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		if !h.engine.HandleTap(0, 0) {
			t.Fatal("first tap rejected")
		}
		if h.engine.HandleTap(0, 1) {
			t.Error("expected second tap to be rejected while waiting")
		}
		if len(h.rec.selected) != 1 {
			t.Errorf("expected one selection event, got %d", len(h.rec.selected))
		}
	})

	t.Run("reveal of another tile while waiting", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		h.engine.HandleTap(0, 0)
		if h.engine.RevealResult(Result{Row: 1, Col: 1, Result: "win"}) {
			t.Error("expected mismatched reveal to be rejected")
		}
	})

	t.Run("out of bounds", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		if h.engine.HandleTap(3, 0) || h.engine.HandleTap(-1, 0) {
			t.Error("expected out of bounds taps to be rejected")
		}
		if h.engine.Tile(0, 3) != nil {
			t.Error("expected nil tile out of bounds")
		}
	})

	t.Run("limit keeps one tile per hazard hidden", func(t *testing.T) {
		h := newHarness(t, 2, 3)
		if !h.engine.HandleTap(0, 0) {
			t.Fatal("expected first tap on 2x2/3 to be accepted")
		}
		h.engine.FinalizeSelection(false)
		h.clock.RunAll()
		if !h.engine.State().GameOver {
			t.Error("expected the single safe reveal to win")
		}
	})

	t.Run("finalize without selection", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		if h.engine.FinalizeSelection(false) {
			t.Error("expected finalize to be rejected")
		}
	})

	t.Run("tap during animation", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		h.engine.HandleTap(0, 0)
		h.engine.FinalizeSelection(false)
		if h.engine.HandleTap(0, 0) {
			t.Error("expected tap on an animating tile to be rejected")
		}
		if h.engine.Settled() {
			t.Error("expected the board to be animating")
		}
		h.clock.RunAll()
		if !h.engine.Settled() {
			t.Error("expected the board to settle")
		}
	})
}

func TestEngine_AutoSelection(t *testing.T) {
	t.Run("keeps insertion order", func(t *testing.T) {
		h := newHarness(t, 5, 3)
		h.mode = ModeAuto
		for _, c := range []Coord{{0, 0}, {1, 1}, {2, 2}} {
			if !h.engine.HandleTap(c.Row, c.Col) {
				t.Fatalf("auto toggle %v rejected", c)
			}
		}
		got := h.engine.AutoSelectionCoordinates()
		want := []Coord{{0, 0}, {1, 1}, {2, 2}}
		if len(got) != len(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, got)
			}
		}

		h.engine.HandleTap(1, 1)
		got = h.engine.AutoSelectionCoordinates()
		if len(got) != 2 || got[0] != (Coord{0, 0}) || got[1] != (Coord{2, 2}) {
			t.Errorf("expected (1, 1) removed, got %v", got)
		}
		if h.visual.hovers[Coord{1, 1}] {
			t.Error("expected hover cleared on deselect")
		}
		if last := h.rec.autoCount[len(h.rec.autoCount)-1]; last != 2 {
			t.Errorf("expected count 2, got %d", last)
		}
	})

	t.Run("limit reached", func(t *testing.T) {
		h := newHarness(t, 2, 2)
		h.mode = ModeAuto
		h.engine.HandleTap(0, 0)
		h.engine.HandleTap(0, 1)
		if h.engine.HandleTap(1, 0) {
			t.Error("expected a third pick to exceed the limit")
		}
	})

	t.Run("mode is polled per tap", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		h.mode = ModeAuto
		h.engine.HandleTap(0, 0)
		h.mode = ModeManual
		if h.engine.HandleTap(0, 0) {
			t.Error("expected manual tap on an auto-selected tile to be rejected")
		}
		if !h.engine.HandleTap(0, 1) {
			t.Error("expected manual tap on a free tile")
		}
	})
}

func TestEngine_RevealAutoSelections(t *testing.T) {
	t.Run("win waits for every reveal", func(t *testing.T) {
		h := newHarness(t, 5, 3)
		h.mode = ModeAuto
		h.engine.HandleTap(0, 0)
		h.engine.HandleTap(1, 1)
		h.engine.HandleTap(2, 2)

		ok := h.engine.RevealAutoSelections([]Result{
			{Row: 0, Col: 0, Result: "win"},
			{Row: 1, Col: 1, Result: "win"},
			{Row: 2, Col: 2, Result: "win"},
		})
		if !ok {
			t.Fatal("batch rejected")
		}
		if h.engine.PendingReveals() != 3 {
			t.Errorf("expected 3 pending reveals, got %d", h.engine.PendingReveals())
		}
		if h.rec.wins != 0 {
			t.Error("expected win to wait for the batch")
		}
		if len(h.engine.AutoSelectionCoordinates()) != 0 {
			t.Error("expected auto selection to be cleared")
		}

		h.clock.RunAll()
		if h.rec.wins != 1 {
			t.Errorf("expected one win, got %d", h.rec.wins)
		}
		safe, hazard, hidden := countFaces(h.engine.Tiles())
		if hazard != 3 || safe != 22 || hidden != 0 {
			t.Errorf("expected 22 safe / 3 hazards, got %d / %d / %d hidden", safe, hazard, hidden)
		}
		for _, r := range h.visual.reveals[:3] {
			if !r.opts.WasAutoSelected || !r.opts.RevealedByPlayer {
				t.Errorf("expected batch reveal options, got %+v", r.opts)
			}
		}
	})

	t.Run("hazard in batch is a loss", func(t *testing.T) {
		h := newHarness(t, 3, 2)
		h.mode = ModeAuto
		h.engine.HandleTap(0, 0)
		h.engine.HandleTap(0, 1)
		h.engine.RevealAutoSelections([]Result{
			{Row: 0, Col: 0, Result: "win"},
			{Row: 0, Col: 1, Result: "lost"},
		})
		h.clock.RunAll()
		if h.rec.losses != 1 || h.rec.wins != 0 {
			t.Errorf("expected loss only, got wins=%d losses=%d", h.rec.wins, h.rec.losses)
		}
		if last := h.engine.LastHazard(); last == nil || last.Coord() != (Coord{0, 1}) {
			t.Errorf("expected last hazard (0, 1), got %v", last)
		}
	})

	t.Run("empty and repeated batches", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		if h.engine.RevealAutoSelections(nil) {
			t.Error("expected empty batch to be rejected")
		}
		h.engine.RevealAutoSelections([]Result{{Row: 0, Col: 0, Result: "win"}})
		if h.engine.RevealAutoSelections([]Result{{Row: 1, Col: 0, Result: "win"}}) {
			t.Error("expected a second batch to be rejected")
		}
	})

	t.Run("win waits for the cascade", func(t *testing.T) {
		h := newHarness(t, 5, 3)
		h.mode = ModeAuto
		pendingAtWin := -1
		h.engine.h.OnWin = func() {
			pendingAtWin = h.engine.cascadePending
			h.rec.wins++
		}
		h.engine.HandleTap(0, 0)
		h.engine.RevealAutoSelections([]Result{{Row: 0, Col: 0, Result: "win"}})

		// The batch reveal lands at DelayMin plus the animation.
		h.clock.Advance(130 * time.Millisecond)
		if h.engine.cascadePending != 24 {
			t.Fatalf("expected 24 cascade reveals pending, got %d", h.engine.cascadePending)
		}
		if h.rec.wins != 0 {
			t.Error("win fired before the cascade started revealing")
		}

		h.clock.Advance(300 * time.Millisecond)
		if h.engine.cascadePending == 0 || h.engine.cascadePending == 24 {
			t.Fatalf("expected a partly finished cascade, got %d pending", h.engine.cascadePending)
		}
		if h.rec.wins != 0 || h.rec.cascades != 0 {
			t.Errorf("win or cascade done fired mid-cascade: wins=%d cascades=%d", h.rec.wins, h.rec.cascades)
		}

		h.clock.RunAll()
		if h.rec.wins != 1 || h.rec.cascades != 1 {
			t.Errorf("expected one win after one cascade, got wins=%d cascades=%d", h.rec.wins, h.rec.cascades)
		}
		if pendingAtWin != 0 {
			t.Errorf("win fired with %d cascade reveals pending", pendingAtWin)
		}
	})

	t.Run("batch with no usable entry changes nothing", func(t *testing.T) {
		h := newHarness(t, 3, 1)
		h.mode = ModeAuto
		h.engine.HandleTap(0, 0)
		before := h.engine.State()

		if h.engine.RevealAutoSelections([]Result{{Row: 9, Col: 9, Result: "win"}}) {
			t.Fatal("expected batch of unknown tiles to be rejected")
		}
		h.clock.RunAll()

		after := h.engine.State()
		if after.GameOver != before.GameOver || after.RevealedSafe != before.RevealedSafe {
			t.Errorf("state changed: before %+v after %+v", before, after)
		}
		if h.rec.wins != 0 || len(h.visual.reveals) != 0 {
			t.Errorf("expected no reveals and no win, got wins=%d reveals=%d", h.rec.wins, len(h.visual.reveals))
		}
		if got := h.engine.AutoSelectionCoordinates(); len(got) != 1 {
			t.Errorf("expected auto selection kept, got %v", got)
		}
		if !h.engine.RevealAutoSelections([]Result{{Row: 0, Col: 0, Result: "win"}}) {
			t.Error("expected a valid batch to be accepted afterwards")
		}
	})

	t.Run("synchronous completion", func(t *testing.T) {
		rec := &recorder{}
		cfg := DefaultConfig()
		cfg.GridSize, cfg.Hazards = 3, 1
		e := New(cfg, Deps{}, rec.handlers())
		e.RevealAutoSelections([]Result{
			{Row: 0, Col: 0, Result: "win"},
			{Row: 0, Col: 1, Result: "win"},
		})
		if rec.wins != 1 {
			t.Errorf("expected one win, got %d", rec.wins)
		}
		if e.PendingReveals() != 0 || !e.Settled() {
			t.Error("expected everything to settle synchronously")
		}
	})
}

func TestEngine_RevealTileLeavesAutoSelection(t *testing.T) {
	h := newHarness(t, 5, 3)
	h.mode = ModeAuto
	h.engine.HandleTap(0, 0)
	h.engine.HandleTap(1, 1)

	tile := h.engine.Tile(0, 0)
	if !h.engine.RevealTile(tile, FaceSafe, true, nil) {
		t.Fatal("reveal rejected")
	}
	if got := h.engine.AutoSelectionCoordinates(); len(got) != 1 || got[0] != (Coord{1, 1}) {
		t.Errorf("expected only (1, 1) still selected, got %v", got)
	}
	if last := h.rec.autoCount[len(h.rec.autoCount)-1]; last != 1 {
		t.Errorf("expected selection count 1 announced, got %d", last)
	}

	h.clock.RunAll()
	if !tile.Revealed() || tile.AutoSelected() {
		t.Errorf("expected revealed and unselected, got %v", tile)
	}
	if !h.visual.reveals[0].opts.WasAutoSelected {
		t.Error("expected the reveal to carry the auto-selected flag")
	}
	if h.engine.RevealTile(tile, FaceSafe, true, nil) {
		t.Error("expected second reveal to be rejected")
	}
}

func TestEngine_ResetInvalidatesCallbacks(t *testing.T) {
	h := newHarness(t, 3, 1)
	old := h.engine.Tile(0, 0)
	h.engine.HandleTap(0, 0)
	h.engine.FinalizeSelection(true)

	h.engine.Reset()
	h.clock.RunAll()

	if old.Revealed() {
		t.Error("expected stale reveal to be dropped")
	}
	if h.rec.losses != 0 {
		t.Error("expected no game over from the previous round")
	}
	fresh := h.engine.Tile(0, 0)
	if fresh == old {
		t.Fatal("expected new tiles after reset")
	}
	if fresh.Revealed() || fresh.Animating() {
		t.Error("expected fresh tile to be hidden")
	}
	if h.engine.RevealTile(old, FaceSafe, false, nil) {
		t.Error("expected tile from a previous round to be rejected")
	}
	if !h.engine.HandleTap(0, 0) {
		t.Error("expected the new round to accept taps")
	}
}

func TestEngine_SelectRandomTile(t *testing.T) {
	h := newHarness(t, 4, 2)
	tile := h.engine.SelectRandomTile()
	if tile == nil {
		t.Fatal("expected a random pick")
	}
	if !tile.Taped() {
		t.Error("expected the pick to be committed")
	}
	if sel, ok := h.engine.rules.Selected(); !ok || sel != tile.Coord() {
		t.Errorf("expected rules selection %v, got %v", tile.Coord(), sel)
	}
	if h.engine.SelectRandomTile() != nil {
		t.Error("expected a second pick to wait for the first")
	}
}

func TestEngine_PlayerDelayGrows(t *testing.T) {
	h := newHarness(t, 3, 1)
	first := h.engine.playerDelay()
	h.tapAndResolve(t, 0, 0, false)
	h.tapAndResolve(t, 0, 1, false)
	if next := h.engine.playerDelay(); next <= first {
		t.Errorf("expected delay to grow, got %v then %v", first, next)
	}
	if first != h.engine.Config().DelayMin {
		t.Errorf("expected first delay %v, got %v", h.engine.Config().DelayMin, first)
	}
}

func TestEngine_CancelSelection(t *testing.T) {
	h := newHarness(t, 3, 1)

	if h.engine.CancelSelection() {
		t.Fatal("expected cancel without a selection to be rejected")
	}
	if !h.engine.HandleTap(0, 2) {
		t.Fatal("tap rejected")
	}
	if !h.engine.CancelSelection() {
		t.Fatal("expected cancel to succeed")
	}

	st := h.engine.State()
	if st.WaitingForChoice || st.SelectedTile != nil {
		t.Errorf("selection not cleared: %+v", st)
	}
	if h.engine.Tile(0, 2).Taped() {
		t.Error("tile still taped")
	}
	if h.visual.flats != 1 {
		t.Errorf("expected one flat pose, got %d", h.visual.flats)
	}
	// The same tile can be picked again.
	h.tapAndResolve(t, 0, 2, false)
	if h.engine.Tile(0, 2).Face() != FaceSafe {
		t.Error("expected tile revealed safe")
	}
}

func TestEngine_HintHazards(t *testing.T) {
	h := newHarness(t, 3, 2)
	h.tapAndResolve(t, 0, 0, false)

	h.engine.HintHazards([]Coord{{Row: 2, Col: 2}, {Row: 2, Col: 1}, {Row: 9, Col: 9}})
	h.engine.RevealAllTiles(nil)
	h.clock.RunAll()

	got := h.engine.HazardPositions()
	want := []Coord{{Row: 2, Col: 1}, {Row: 2, Col: 2}}
	if len(got) != len(want) {
		t.Fatalf("HazardPositions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("HazardPositions() = %v, want %v", got, want)
		}
	}

	h.engine.Reset()
	h.engine.RevealAllTiles(nil)
	h.clock.RunAll()
	if _, hazards, _ := countFaces(h.engine.Tiles()); hazards != 2 {
		t.Errorf("expected 2 hazards after reset, got %d", hazards)
	}
}
