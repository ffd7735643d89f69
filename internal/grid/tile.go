package grid

import (
	"fmt"
	"strings"
)

type Face int

const (
	FaceNone Face = iota
	FaceSafe
	FaceHazard
)

func (f Face) String() string {
	switch f {
	case FaceSafe:
		return "safe"
	case FaceHazard:
		return "hazard"
	default:
		return "none"
	}
}

type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// Coord is a 0-indexed cell position.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Result is one externally supplied tile outcome: "win", "lost" or a content key.
type Result struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Result string `json:"result"`
}

// IsHazard reports whether the outcome is a losing one ("bomb" or "lost", any case).
func (r Result) IsHazard() bool {
	switch strings.ToLower(strings.TrimSpace(r.Result)) {
	case "bomb", "lost":
		return true
	}
	return false
}

func (r Result) Face() Face {
	if r.IsHazard() {
		return FaceHazard
	}
	return FaceSafe
}

// Tile is a single grid cell. Only the Engine mutates it; everyone else reads.
type Tile struct {
	row, col int

	revealed     bool
	autoSelected bool
	taped        bool
	animating    bool

	// face is set when a reveal is scheduled and becomes visible once revealed.
	face    Face
	content string

	// token identifies the in-flight reveal; zero means none, and stale
	// callbacks compare against it before touching the tile.
	token uint64
}

func newTile(row, col int) *Tile {
	return &Tile{row: row, col: col}
}

func (t *Tile) Row() int { return t.row }
func (t *Tile) Col() int { return t.col }
func (t *Tile) Coord() Coord { return Coord{Row: t.row, Col: t.col} }
func (t *Tile) Revealed() bool { return t.revealed }
func (t *Tile) AutoSelected() bool { return t.autoSelected }
func (t *Tile) Taped() bool { return t.taped }
func (t *Tile) Animating() bool { return t.animating }

// Content is the raw result string the tile was revealed with, if any.
func (t *Tile) Content() string { return t.content }

// Face returns the revealed face, or FaceNone while the tile is hidden or animating.
func (t *Tile) Face() Face {
	if !t.revealed {
		return FaceNone
	}
	return t.face
}

// idle reports whether the tile can still take a reveal.
func (t *Tile) idle() bool {
	return !t.revealed && !t.animating
}

func (t *Tile) String() string {
	return fmt.Sprintf("Tile(%d, %d)", t.row, t.col)
}
