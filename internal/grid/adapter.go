package grid

// Layout maps pointer coordinates onto grid cells.
type Layout struct {
	CellSize float64
	Gap      float64
	OriginX  float64
	OriginY  float64
}

func DefaultLayout() Layout {
	return Layout{CellSize: 96, Gap: 8}
}

// CellAt returns the cell under (x, y). Points in the gaps between cells miss.
func (l Layout) CellAt(x, y float64, gridSize int) (row, col int, ok bool) {
	if l.CellSize <= 0 {
		return 0, 0, false
	}
	pitch := l.CellSize + l.Gap
	dx, dy := x-l.OriginX, y-l.OriginY
	if dx < 0 || dy < 0 {
		return 0, 0, false
	}
	col, row = int(dx/pitch), int(dy/pitch)
	if row >= gridSize || col >= gridSize {
		return 0, 0, false
	}
	if dx-float64(col)*pitch > l.CellSize || dy-float64(row)*pitch > l.CellSize {
		return 0, 0, false
	}
	return row, col, true
}

// Origin is the top-left corner of a cell.
func (l Layout) Origin(row, col int) (x, y float64) {
	pitch := l.CellSize + l.Gap
	return l.OriginX + float64(col)*pitch, l.OriginY + float64(row)*pitch
}

type AdapterOptions struct {
	Layout Layout

	// CascadeOnLoss reveals the rest of the board once a hazard is hit.
	CascadeOnLoss bool
	// CascadeOnWin reveals the remaining hidden tiles after a win.
	CascadeOnWin bool
}

// Adapter sits between pointer input and the Engine and relays engine
// notifications to outer sinks.
type Adapter struct {
	engine *Engine
	opts   AdapterOptions
	sinks  Handlers

	hoverRow, hoverCol int
	hovering           bool
}

func NewAdapter(cfg Config, deps Deps, opts AdapterOptions, sinks Handlers) *Adapter {
	a := &Adapter{opts: opts, sinks: sinks}
	a.engine = New(cfg, deps, Handlers{
		OnCardSelected: func(row, col int) {
			if a.sinks.OnCardSelected != nil {
				a.sinks.OnCardSelected(row, col)
			}
		},
		OnAutoSelectionChange: func(n int) {
			if a.sinks.OnAutoSelectionChange != nil {
				a.sinks.OnAutoSelectionChange(n)
			}
		},
		OnWin:         a.onWin,
		OnGameOver:    a.onGameOver,
		OnChange:      a.onChange,
		OnCascadeDone: a.onCascadeDone,
	})
	return a
}

func (a *Adapter) Engine() *Engine { return a.engine }

func (a *Adapter) onWin() {
	if a.sinks.OnWin != nil {
		a.sinks.OnWin()
	}
	if a.opts.CascadeOnWin {
		a.engine.RevealAllTiles(nil)
	}
}

func (a *Adapter) onGameOver() {
	if a.sinks.OnGameOver != nil {
		a.sinks.OnGameOver()
	}
	if a.opts.CascadeOnLoss {
		a.engine.RevealAllTiles(a.engine.LastHazard())
	}
}

func (a *Adapter) onChange(s State) {
	if a.sinks.OnChange != nil {
		a.sinks.OnChange(s)
	}
}

func (a *Adapter) onCascadeDone() {
	if a.sinks.OnCascadeDone != nil {
		a.sinks.OnCascadeDone()
	}
}

// PointerDown taps the cell under the pointer.
func (a *Adapter) PointerDown(x, y float64) bool {
	row, col, ok := a.opts.Layout.CellAt(x, y, a.engine.cfg.GridSize)
	if !ok {
		return false
	}
	return a.engine.HandleTap(row, col)
}

// PointerMove tracks hover enter and leave across cells.
func (a *Adapter) PointerMove(x, y float64) {
	row, col, ok := a.opts.Layout.CellAt(x, y, a.engine.cfg.GridSize)
	if a.hovering && (!ok || row != a.hoverRow || col != a.hoverCol) {
		a.engine.HandleHover(a.hoverRow, a.hoverCol, false)
		a.hovering = false
	}
	if ok && !a.hovering {
		a.hovering = a.engine.HandleHover(row, col, true)
		a.hoverRow, a.hoverCol = row, col
	}
}

func (a *Adapter) PointerLeave() {
	if a.hovering {
		a.engine.HandleHover(a.hoverRow, a.hoverCol, false)
		a.hovering = false
	}
}

func (a *Adapter) TapCell(row, col int) bool { return a.engine.HandleTap(row, col) }

func (a *Adapter) PickRandom() *Tile { return a.engine.SelectRandomTile() }

func (a *Adapter) Reset() {
	a.hovering = false
	a.engine.Reset()
}
