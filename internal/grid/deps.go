package grid

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RevealOptions accompanies a reveal animation request. OnComplete must be
// invoked exactly once by the visual layer.
type RevealOptions struct {
	RevealedByPlayer bool
	WasAutoSelected  bool
	OnComplete       func()
}

// Visual is the drawing side of the board. Calls are fire-and-forget.
type Visual interface {
	ScheduleRevealAnimation(t *Tile, face Face, opts RevealOptions)
	ScheduleHover(t *Tile, on bool)
	ScheduleWiggle(t *Tile)
	ForceFlatPose(t *Tile)
}

// ModeProvider is polled on every interaction.
type ModeProvider interface {
	CurrentMode() Mode
}

type ModeFunc func() Mode

func (f ModeFunc) CurrentMode() Mode { return f() }

// FixedMode always reports the same mode.
type FixedMode Mode

func (m FixedMode) CurrentMode() Mode { return Mode(m) }

// Scheduler runs fn after d on the board's event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Handlers are optional notification sinks. Nil funcs are skipped.
type Handlers struct {
	OnCardSelected        func(row, col int)
	OnAutoSelectionChange func(count int)
	OnWin                 func()
	OnGameOver            func()
	OnChange              func(State)
	OnCascadeDone         func()
}

type Deps struct {
	Visual    Visual
	Modes     ModeProvider
	Scheduler Scheduler
	Logger    logrus.FieldLogger
}

// nopVisual completes every reveal immediately.
type nopVisual struct{}

func (nopVisual) ScheduleRevealAnimation(_ *Tile, _ Face, opts RevealOptions) {
	if opts.OnComplete != nil {
		opts.OnComplete()
	}
}
func (nopVisual) ScheduleHover(*Tile, bool) {}
func (nopVisual) ScheduleWiggle(*Tile)      {}
func (nopVisual) ForceFlatPose(*Tile)       {}

// immediate runs callbacks synchronously, ignoring the delay.
type immediate struct{}

func (immediate) AfterFunc(_ time.Duration, fn func()) { fn() }
