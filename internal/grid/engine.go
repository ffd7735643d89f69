package grid

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

type RevealStatus int

const (
	RevealRejected RevealStatus = iota
	RevealCompleted
)

type Config struct {
	GridSize int
	Hazards  int

	// Player reveals wait DelayMin..DelayMax depending on round progress;
	// cascade reveals wait DelayMin plus CascadeStagger per tile.
	DelayMin       time.Duration
	DelayMax       time.Duration
	CascadeStagger time.Duration

	// Rand drives hazard synthesis and random picks. Nil uses a crypto-seeded source.
	Rand *rand.Rand
}

func DefaultConfig() Config {
	return Config{
		GridSize:       5,
		Hazards:        3,
		DelayMin:       80 * time.Millisecond,
		DelayMax:       320 * time.Millisecond,
		CascadeStagger: 35 * time.Millisecond,
	}
}

func (c Config) normalize() Config {
	c.GridSize, c.Hazards = ClampGrid(c.GridSize, c.Hazards)
	if c.DelayMin < 0 {
		c.DelayMin = 0
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = c.DelayMin
	}
	if c.CascadeStagger < 0 {
		c.CascadeStagger = 0
	}
	return c
}

// Engine owns the tiles of one round and drives every state transition on them.
// It is not safe for concurrent use; all calls and scheduler callbacks must run
// on the same event loop.
type Engine struct {
	cfg   Config
	rules *Rules
	tiles []*Tile

	auto       []*Tile
	selected   *Tile
	lastHazard *Tile
	hazards    map[Coord]struct{}

	pending     int
	batchActive bool
	batchHazard bool
	dispatching bool

	cascaded       bool
	cascadePending int
	hints          map[Coord]struct{}

	// winAfterCascade holds an auto-batch win until the cascade has finished.
	winAfterCascade bool

	winSent  bool
	lossSent bool

	nextToken uint64

	visual Visual
	modes  ModeProvider
	sched  Scheduler
	log    logrus.FieldLogger
	rng    *rand.Rand
	h      Handlers
}

func New(cfg Config, deps Deps, h Handlers) *Engine {
	cfg = cfg.normalize()
	e := &Engine{
		cfg:    cfg,
		rules:  NewRules(cfg.GridSize, cfg.Hazards),
		visual: deps.Visual,
		modes:  deps.Modes,
		sched:  deps.Scheduler,
		log:    deps.Logger,
		rng:    cfg.Rand,
		h:      h,
	}
	if e.visual == nil {
		e.visual = nopVisual{}
	}
	if e.modes == nil {
		e.modes = FixedMode(ModeManual)
	}
	if e.sched == nil {
		e.sched = immediate{}
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	e.log = e.log.WithField("component", "grid")
	if e.rng == nil {
		e.rng = newCryptoSeededRand()
	}
	e.Reset()
	return e
}

// Reset discards every tile and starts a fresh round. In-flight reveals of the
// old tiles become no-ops.
func (e *Engine) Reset() {
	for _, t := range e.tiles {
		t.token = 0
	}

	size := e.cfg.GridSize
	e.tiles = make([]*Tile, 0, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			e.tiles = append(e.tiles, newTile(row, col))
		}
	}

	e.rules.Reset()
	e.auto = nil
	e.selected = nil
	e.lastHazard = nil
	e.hazards = make(map[Coord]struct{})
	e.pending = 0
	e.batchActive = false
	e.batchHazard = false
	e.dispatching = false
	e.cascaded = false
	e.cascadePending = 0
	e.winAfterCascade = false
	e.hints = nil
	e.winSent = false
	e.lossSent = false

	e.emitChange()
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) State() State { return e.rules.State() }

// Tile returns the tile at (row, col), or nil when out of bounds.
func (e *Engine) Tile(row, col int) *Tile {
	size := e.cfg.GridSize
	if row < 0 || col < 0 || row >= size || col >= size {
		return nil
	}
	return e.tiles[row*size+col]
}

// Tiles returns the current tiles in row-major order.
func (e *Engine) Tiles() []*Tile {
	out := make([]*Tile, len(e.tiles))
	copy(out, e.tiles)
	return out
}

// owns reports whether t belongs to the current round.
func (e *Engine) owns(t *Tile) bool {
	return t != nil && e.Tile(t.row, t.col) == t
}

// HandleTap routes a tap according to the mode reported right now.
func (e *Engine) HandleTap(row, col int) bool {
	t := e.Tile(row, col)
	if t == nil {
		e.reject("tap", row, col, "out of bounds")
		return false
	}
	if e.modes.CurrentMode() == ModeAuto {
		return e.toggleAuto(t)
	}
	return e.tapManual(t)
}

func (e *Engine) tapManual(t *Tile) bool {
	switch {
	case e.rules.GameOver():
		return e.reject("tap", t.row, t.col, "round over")
	case e.rules.WaitingForChoice():
		return e.reject("tap", t.row, t.col, "awaiting choice")
	case !t.idle():
		return e.reject("tap", t.row, t.col, "tile busy")
	case t.taped || t.autoSelected:
		return e.reject("tap", t.row, t.col, "tile already selected")
	case e.count(untapped) <= e.rules.Hazards():
		return e.reject("tap", t.row, t.col, "limit reached")
	}
	e.commit(t)
	return true
}

func (e *Engine) toggleAuto(t *Tile) bool {
	switch {
	case e.rules.GameOver():
		return e.reject("auto", t.row, t.col, "round over")
	case e.rules.WaitingForChoice():
		return e.reject("auto", t.row, t.col, "awaiting choice")
	case !t.idle() || t.taped:
		return e.reject("auto", t.row, t.col, "tile busy")
	}

	if t.autoSelected {
		e.dropAuto(t)
		e.visual.ScheduleHover(t, false)
		e.emitAutoSelection()
		return true
	}

	if e.count(autoCandidate) <= e.rules.Hazards() {
		return e.reject("auto", t.row, t.col, "limit reached")
	}
	t.autoSelected = true
	e.auto = append(e.auto, t)
	e.visual.ScheduleHover(t, true)
	e.emitAutoSelection()
	return true
}

// HandleHover forwards pointer hover for hidden, idle, unselected tiles.
func (e *Engine) HandleHover(row, col int, on bool) bool {
	t := e.Tile(row, col)
	if t == nil || e.rules.GameOver() || !t.idle() || t.autoSelected || t.taped {
		return false
	}
	e.visual.ScheduleHover(t, on)
	return true
}

// SelectRandomTile commits a uniformly chosen free tile as if it had been tapped.
func (e *Engine) SelectRandomTile() *Tile {
	if e.rules.GameOver() || e.rules.WaitingForChoice() {
		e.reject("random", -1, -1, "cannot pick now")
		return nil
	}
	var pool []*Tile
	for _, t := range e.tiles {
		if untapped(t) && !t.autoSelected {
			pool = append(pool, t)
		}
	}
	if len(pool) <= e.rules.Hazards() {
		e.reject("random", -1, -1, "limit reached")
		return nil
	}
	t := pool[e.rng.IntN(len(pool))]
	e.commit(t)
	return t
}

func (e *Engine) commit(t *Tile) {
	t.taped = true
	e.selected = t
	e.rules.SelectTile(t.row, t.col)
	e.visual.ScheduleWiggle(t)
	if e.h.OnCardSelected != nil {
		e.h.OnCardSelected(t.row, t.col)
	}
	e.emitChange()
}

// FinalizeSelection resolves the pending manual choice.
func (e *Engine) FinalizeSelection(isBomb bool) bool {
	if !e.rules.WaitingForChoice() || e.selected == nil {
		e.reject("finalize", -1, -1, "nothing selected")
		return false
	}
	res := Result{Row: e.selected.row, Col: e.selected.col, Result: "win"}
	if isBomb {
		res.Result = "lost"
	}
	return e.RevealResult(res)
}

// CancelSelection withdraws the pending manual choice without revealing it.
func (e *Engine) CancelSelection() bool {
	if e.selected == nil || e.rules.GameOver() {
		return e.reject("cancel", -1, -1, "nothing selected")
	}
	e.releaseSelection()
	e.emitChange()
	return true
}

// RevealResult reveals one tile with an externally supplied outcome.
func (e *Engine) RevealResult(res Result) bool {
	t := e.Tile(res.Row, res.Col)
	switch {
	case t == nil:
		return e.reject("reveal", res.Row, res.Col, "unknown tile")
	case e.rules.GameOver():
		return e.reject("reveal", res.Row, res.Col, "round over")
	case !t.idle():
		return e.reject("reveal", res.Row, res.Col, "tile busy")
	case e.selected != nil && e.selected != t:
		return e.reject("reveal", res.Row, res.Col, "awaiting another choice")
	}

	if e.selected == t {
		e.releaseSelection()
	}
	wasAuto := t.autoSelected
	if wasAuto {
		e.dropAuto(t)
		e.emitAutoSelection()
	}

	delay := e.playerDelay()
	outcome := e.rules.RevealResult(res)
	t.content = res.Result
	e.reveal(t, outcome.Face, true, wasAuto, delay, func(st RevealStatus) {
		if st == RevealCompleted {
			e.settle(t, outcome)
		}
	})
	e.emitChange()
	return true
}

func (e *Engine) settle(t *Tile, o Outcome) {
	if o.Face == FaceHazard {
		e.lastHazard = t
		e.emitGameOver()
		return
	}
	if o.Win {
		e.emitWin()
	}
}

// RevealTile is the reveal primitive: a tile is revealed at most once, and done
// gets RevealRejected synchronously when it is already revealed or animating.
func (e *Engine) RevealTile(t *Tile, face Face, byPlayer bool, done func(RevealStatus)) bool {
	if !e.owns(t) {
		if done != nil {
			done(RevealRejected)
		}
		return false
	}
	delay := e.cfg.DelayMin
	if byPlayer {
		delay = e.playerDelay()
	}
	wasAuto := t.autoSelected && t.idle()
	if wasAuto {
		e.dropAuto(t)
		e.emitAutoSelection()
	}
	return e.reveal(t, face, byPlayer, wasAuto, delay, done)
}

func (e *Engine) reveal(t *Tile, face Face, byPlayer, wasAuto bool, delay time.Duration, done func(RevealStatus)) bool {
	if !t.idle() {
		e.reject("reveal", t.row, t.col, "already revealed or animating")
		if done != nil {
			done(RevealRejected)
		}
		return false
	}

	e.nextToken++
	token := e.nextToken
	t.token = token
	t.animating = true
	t.autoSelected = false
	t.face = face
	if face == FaceHazard {
		e.hazards[t.Coord()] = struct{}{}
	}

	e.sched.AfterFunc(delay, func() {
		if t.token != token {
			return
		}
		e.visual.ScheduleRevealAnimation(t, face, RevealOptions{
			RevealedByPlayer: byPlayer,
			WasAutoSelected:  wasAuto,
			OnComplete: func() {
				if t.token != token {
					return
				}
				t.token = 0
				t.animating = false
				t.revealed = true
				if done != nil {
					done(RevealCompleted)
				}
			},
		})
	})
	return true
}

// RevealAutoSelections reveals a batch of supplied outcomes and ends the round.
// Win is declared only after every batched reveal has completed.
func (e *Engine) RevealAutoSelections(results []Result) bool {
	if e.rules.GameOver() || e.batchActive {
		e.reject("auto-reveal", -1, -1, "round over")
		return false
	}
	if len(results) == 0 {
		e.reject("auto-reveal", -1, -1, "empty batch")
		return false
	}

	e.batchActive = true
	e.batchHazard = false
	e.dispatching = true

	delay := e.playerDelay()
	dispatched := 0
	for _, res := range results {
		t := e.Tile(res.Row, res.Col)
		if t == nil || !t.idle() {
			e.reject("auto-reveal", res.Row, res.Col, "skipped entry")
			continue
		}
		if e.selected == t {
			e.releaseSelection()
		}
		wasAuto := t.autoSelected
		if wasAuto {
			e.dropAuto(t)
		}

		outcome := e.rules.RevealResult(res)
		if outcome.Face == FaceHazard {
			e.batchHazard = true
			if e.lastHazard == nil {
				e.lastHazard = t
			}
		}
		t.content = res.Result

		e.pending++
		d := delay + time.Duration(dispatched)*e.cfg.CascadeStagger
		dispatched++
		e.reveal(t, outcome.Face, true, wasAuto, d, func(RevealStatus) {
			e.pending--
			if e.pending == 0 && !e.dispatching {
				e.finishBatch()
			}
		})
	}
	e.dispatching = false
	if dispatched == 0 {
		e.batchActive = false
		return e.reject("auto-reveal", -1, -1, "no entry could be revealed")
	}

	for _, t := range e.auto {
		t.autoSelected = false
		e.visual.ScheduleHover(t, false)
	}
	e.auto = nil
	e.emitAutoSelection()

	if e.selected != nil {
		e.releaseSelection()
	}
	e.rules.EndRound()
	e.emitChange()

	if e.pending == 0 {
		e.finishBatch()
	}
	return true
}

func (e *Engine) finishBatch() {
	if !e.batchActive {
		return
	}
	e.batchActive = false
	if e.batchHazard {
		e.emitGameOver()
		return
	}
	if e.rules.RevealedSafe() < e.rules.TotalSafe() {
		e.RevealAllTiles(nil)
		if e.cascadePending > 0 {
			e.winAfterCascade = true
			return
		}
	}
	e.emitWin()
}

// RevealAllTiles reveals every remaining hidden tile, synthesizing hazards so
// the board ends with exactly the configured hazard count. trigger is the tile
// that lost the round, if any. It returns the number of reveals scheduled.
func (e *Engine) RevealAllTiles(trigger *Tile) int {
	if e.cascaded {
		return 0
	}
	e.cascaded = true
	if !e.owns(trigger) {
		trigger = nil
	}

	if e.selected != nil {
		e.releaseSelection()
	}
	if !e.rules.GameOver() {
		e.rules.EndRound()
		e.emitChange()
	}

	e.dispatching = true
	scheduled := 0

	if trigger != nil && trigger.idle() {
		e.lastHazard = trigger
		e.cascadePending++
		scheduled++
		e.reveal(trigger, FaceHazard, false, trigger.autoSelected, e.cfg.DelayMin, e.cascadeStep)
	}

	placed := 0
	var remaining []*Tile
	for _, t := range e.tiles {
		switch {
		case !t.idle():
			if t.face == FaceHazard {
				placed++
				e.hazards[t.Coord()] = struct{}{}
			}
		case t != trigger:
			remaining = append(remaining, t)
		}
	}

	need := e.rules.Hazards() - placed
	if need < 0 {
		need = 0
	}
	if need > len(remaining) {
		need = len(remaining)
	}

	// Hinted tiles take the first hazard slots; the rest are drawn at random.
	var hinted, free []*Tile
	for _, t := range remaining {
		if _, ok := e.hints[t.Coord()]; ok {
			hinted = append(hinted, t)
		} else {
			free = append(free, t)
		}
	}
	Shuffle(e.rng, free)
	order := append(hinted, free...)
	faces := make(map[*Tile]Face, len(order))
	for i, t := range order {
		if i < need {
			faces[t] = FaceHazard
		} else {
			faces[t] = FaceSafe
		}
	}

	for i, t := range remaining {
		wasAuto := t.autoSelected
		if wasAuto {
			e.visual.ScheduleHover(t, false)
		}
		e.cascadePending++
		scheduled++
		d := e.cfg.DelayMin + time.Duration(i)*e.cfg.CascadeStagger
		e.reveal(t, faces[t], false, wasAuto, d, e.cascadeStep)
	}
	if len(e.auto) > 0 {
		e.auto = nil
		e.emitAutoSelection()
	}
	e.dispatching = false

	e.log.WithFields(logrus.Fields{
		"scheduled": scheduled,
		"hazards":   need,
	}).Debug("cascade reveal")

	if e.cascadePending == 0 {
		e.emitCascadeDone()
	}
	return scheduled
}

func (e *Engine) cascadeStep(RevealStatus) {
	e.cascadePending--
	if e.cascadePending == 0 && !e.dispatching {
		e.emitCascadeDone()
		if e.winAfterCascade {
			e.winAfterCascade = false
			e.emitWin()
		}
	}
}

// HintHazards names tiles a later cascade should show as hazards, typically
// the layout a server revealed. Hints beyond the configured count are ignored.
func (e *Engine) HintHazards(coords []Coord) {
	e.hints = make(map[Coord]struct{}, len(coords))
	for _, c := range coords {
		if e.Tile(c.Row, c.Col) != nil {
			e.hints[c] = struct{}{}
		}
	}
}

// AutoSelectionCoordinates lists auto-selected tiles in selection order.
func (e *Engine) AutoSelectionCoordinates() []Coord {
	out := make([]Coord, 0, len(e.auto))
	for _, t := range e.auto {
		out = append(out, t.Coord())
	}
	return out
}

func (e *Engine) ClearAutoSelection() {
	if len(e.auto) == 0 {
		return
	}
	for _, t := range e.auto {
		t.autoSelected = false
		e.visual.ScheduleHover(t, false)
	}
	e.auto = nil
	e.emitAutoSelection()
}

// HazardPositions lists every hazard placed so far, sorted row-major.
func (e *Engine) HazardPositions() []Coord {
	out := make([]Coord, 0, len(e.hazards))
	for c := range e.hazards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// PendingReveals is the number of batched auto reveals still animating.
func (e *Engine) PendingReveals() int { return e.pending }

// Settled reports whether no tile is animating.
func (e *Engine) Settled() bool {
	for _, t := range e.tiles {
		if t.animating {
			return false
		}
	}
	return true
}

// LastHazard is the tile that lost the round, if any.
func (e *Engine) LastHazard() *Tile { return e.lastHazard }

func (e *Engine) releaseSelection() {
	t := e.selected
	t.taped = false
	e.selected = nil
	e.rules.ClearSelection()
	e.visual.ForceFlatPose(t)
}

func (e *Engine) dropAuto(t *Tile) {
	t.autoSelected = false
	for i, s := range e.auto {
		if s == t {
			e.auto = append(e.auto[:i], e.auto[i+1:]...)
			return
		}
	}
}

func (e *Engine) playerDelay() time.Duration {
	total := e.rules.TotalSafe()
	frac := 0.0
	if total > 0 {
		frac = float64(e.rules.RevealedSafe()) / float64(total)
	}
	if frac > 1 {
		frac = 1
	}
	span := e.cfg.DelayMax - e.cfg.DelayMin
	return e.cfg.DelayMin + time.Duration(float64(span)*frac)
}

func untapped(t *Tile) bool { return t.idle() && !t.taped }

func autoCandidate(t *Tile) bool { return t.idle() && !t.taped && !t.autoSelected }

func (e *Engine) count(match func(*Tile) bool) int {
	n := 0
	for _, t := range e.tiles {
		if match(t) {
			n++
		}
	}
	return n
}

func (e *Engine) reject(op string, row, col int, reason string) bool {
	e.log.WithFields(logrus.Fields{
		"op":  op,
		"row": row,
		"col": col,
	}).Debug(reason)
	return false
}

func (e *Engine) emitChange() {
	if e.h.OnChange != nil {
		e.h.OnChange(e.rules.State())
	}
}

func (e *Engine) emitAutoSelection() {
	if e.h.OnAutoSelectionChange != nil {
		e.h.OnAutoSelectionChange(len(e.auto))
	}
}

func (e *Engine) emitWin() {
	if e.winSent || e.lossSent {
		return
	}
	e.winSent = true
	if e.h.OnWin != nil {
		e.h.OnWin()
	}
}

func (e *Engine) emitGameOver() {
	if e.lossSent || e.winSent {
		return
	}
	e.lossSent = true
	if e.h.OnGameOver != nil {
		e.h.OnGameOver()
	}
}

func (e *Engine) emitCascadeDone() {
	if e.h.OnCascadeDone != nil {
		e.h.OnCascadeDone()
	}
}
