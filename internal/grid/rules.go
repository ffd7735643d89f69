package grid

const (
	MinGridSize = 2
	MinHazards  = 1
)

// Outcome is the classified result of one tile reveal.
type Outcome struct {
	Face     Face `json:"face"`
	GameOver bool `json:"game_over"`
	Win      bool `json:"win"`
}

// State is a read-only snapshot of round progress.
type State struct {
	Grid             int    `json:"grid"`
	Mines            int    `json:"mines"`
	RevealedSafe     int    `json:"revealed_safe"`
	TotalSafe        int    `json:"total_safe"`
	GameOver         bool   `json:"game_over"`
	WaitingForChoice bool   `json:"waiting_for_choice"`
	SelectedTile     *Coord `json:"selected_tile"`
}

// Rules keeps round bookkeeping independent of any tile visuals.
type Rules struct {
	grid         int
	mines        int
	revealedSafe int
	gameOver     bool
	waiting      bool
	selected     *Coord
	outcomes     map[Coord]Outcome
}

// ClampGrid forces gridSize >= 2 and hazards into [1, gridSize²-1].
func ClampGrid(gridSize, hazards int) (int, int) {
	if gridSize < MinGridSize {
		gridSize = MinGridSize
	}
	maxHazards := gridSize*gridSize - 1
	if hazards < MinHazards {
		hazards = MinHazards
	}
	if hazards > maxHazards {
		hazards = maxHazards
	}
	return gridSize, hazards
}

func NewRules(gridSize, hazards int) *Rules {
	gridSize, hazards = ClampGrid(gridSize, hazards)
	r := &Rules{grid: gridSize, mines: hazards}
	r.Reset()
	return r
}

func (r *Rules) Reset() {
	r.revealedSafe = 0
	r.gameOver = false
	r.waiting = false
	r.selected = nil
	r.outcomes = make(map[Coord]Outcome)
}

func (r *Rules) GridSize() int { return r.grid }
func (r *Rules) Hazards() int { return r.mines }
func (r *Rules) TotalSafe() int { return r.grid*r.grid - r.mines }
func (r *Rules) RevealedSafe() int { return r.revealedSafe }
func (r *Rules) GameOver() bool { return r.gameOver }
func (r *Rules) WaitingForChoice() bool { return r.waiting }

// Selected returns the pending manual choice, if any.
func (r *Rules) Selected() (Coord, bool) {
	if r.selected == nil {
		return Coord{}, false
	}
	return *r.selected, true
}

// SelectTile records a pending manual choice. It does nothing once the round is over.
func (r *Rules) SelectTile(row, col int) bool {
	if r.gameOver {
		return false
	}
	r.waiting = true
	r.selected = &Coord{Row: row, Col: col}
	return true
}

func (r *Rules) ClearSelection() {
	r.waiting = false
	r.selected = nil
}

// EndRound marks the round finished without revealing anything.
func (r *Rules) EndRound() {
	r.gameOver = true
	r.waiting = false
}

// RevealResult classifies a supplied outcome and updates the counters. A repeated
// coordinate returns the cached first outcome.
func (r *Rules) RevealResult(res Result) Outcome {
	if o, ok := r.Revealed(res.Row, res.Col); ok {
		return o
	}

	o := Outcome{Face: res.Face()}
	if o.Face == FaceHazard {
		r.gameOver = true
	} else {
		r.revealedSafe++
		if r.revealedSafe >= r.TotalSafe() {
			r.gameOver = true
			o.Win = true
		}
	}
	o.GameOver = r.gameOver
	r.outcomes[Coord{Row: res.Row, Col: res.Col}] = o
	return o
}

// Revealed returns the cached outcome for a coordinate.
func (r *Rules) Revealed(row, col int) (Outcome, bool) {
	o, ok := r.outcomes[Coord{Row: row, Col: col}]
	return o, ok
}

func (r *Rules) State() State {
	s := State{
		Grid:             r.grid,
		Mines:            r.mines,
		RevealedSafe:     r.revealedSafe,
		TotalSafe:        r.TotalSafe(),
		GameOver:         r.gameOver,
		WaitingForChoice: r.waiting,
	}
	if r.selected != nil {
		c := *r.selected
		s.SelectedTile = &c
	}
	return s
}
