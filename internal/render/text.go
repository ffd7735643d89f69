// Package render draws a grid board as plain text for terminals and logs.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"minigames/internal/grid"
)

// Text is a grid.Visual that writes one line per visual event and completes
// reveal animations on the scheduler after AnimDuration.
type Text struct {
	Out          io.Writer
	Scheduler    grid.Scheduler
	AnimDuration time.Duration
	// Quiet suppresses hover and pose events.
	Quiet bool
}

func stateWord(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (v *Text) ScheduleRevealAnimation(t *grid.Tile, face grid.Face, opts grid.RevealOptions) {
	who := "cascade"
	if opts.RevealedByPlayer {
		who = "player"
	}
	if opts.WasAutoSelected {
		who += "/auto"
	}
	v.printf("reveal (%d,%d) %s [%s]\n", t.Row(), t.Col(), face, who)

	if opts.OnComplete == nil {
		return
	}
	if v.Scheduler == nil {
		opts.OnComplete()
		return
	}
	v.Scheduler.AfterFunc(v.AnimDuration, opts.OnComplete)
}

func (v *Text) ScheduleHover(t *grid.Tile, on bool) {
	if !v.Quiet {
		v.printf("hover (%d,%d) %s\n", t.Row(), t.Col(), stateWord(on))
	}
}

func (v *Text) ScheduleWiggle(t *grid.Tile) {
	v.printf("selected (%d,%d)\n", t.Row(), t.Col())
}

func (v *Text) ForceFlatPose(t *grid.Tile) {
	if !v.Quiet {
		v.printf("flat (%d,%d)\n", t.Row(), t.Col())
	}
}

func (v *Text) printf(format string, args ...any) {
	if v.Out != nil {
		fmt.Fprintf(v.Out, format, args...)
	}
}

// Board renders tiles (row-major) as size lines of glyphs.
func Board(tiles []*grid.Tile, size int) string {
	var b strings.Builder
	for i, t := range tiles {
		b.WriteByte(glyph(t))
		if (i+1)%size == 0 {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func glyph(t *grid.Tile) byte {
	switch {
	case t.Revealed() && t.Face() == grid.FaceHazard:
		return '*'
	case t.Revealed():
		return '.'
	case t.Animating():
		return '~'
	case t.Taped():
		return '?'
	case t.AutoSelected():
		return '+'
	default:
		return '#'
	}
}
