// Package play drives a grid board against the mines relay: picks become
// relay calls and relay answers become reveals.
package play

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"minigames/internal/game"
	"minigames/internal/grid"
)

var (
	ErrNoRound     = errors.New("no round in progress")
	ErrNoSelection = errors.New("no tiles selected")
)

// Relay is the part of the mines engine a session talks to.
type Relay interface {
	Bet(ctx context.Context, req game.MinesBetRequest) (game.MinesBetResponse, error)
	Click(ctx context.Context, req game.MinesClickRequest) (game.MinesClickResponse, error)
	AutoReveal(ctx context.Context, req game.MinesAutoRequest) (game.MinesAutoResponse, error)
	Cashout(ctx context.Context, req game.MinesCashoutRequest) (game.MinesCashoutResponse, error)
}

// RejectedError is a relay refusal, carrying the relay's message.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s refused: %s", e.Op, e.Message)
}

// Summary is the relay side of the current round.
type Summary struct {
	GameID  string
	Status  string
	Payout  float64
	Balance float64
	Reveal  *game.MinesReveal
}

type Options struct {
	UserID  string
	Grid    grid.Config
	Adapter grid.AdapterOptions
	Deps    grid.Deps

	// Sinks receive the board's notifications. OnSettled fires once per
	// round when the relay reports it over.
	Sinks     grid.Handlers
	OnSettled func(Summary)
}

// Session is single-threaded like the engine it wraps: relay answers are
// applied through the board's scheduler.
type Session struct {
	relay   Relay
	adapter *grid.Adapter
	sched   grid.Scheduler
	opts    Options
	log     *logrus.Entry

	ctx     context.Context
	summary Summary
	settled bool
}

func NewSession(relay Relay, opts Options) *Session {
	s := &Session{
		relay: relay,
		sched: opts.Deps.Scheduler,
		opts:  opts,
		log:   logrus.WithFields(logrus.Fields{"component": "play", "user_id": opts.UserID}),
		ctx:   context.Background(),
	}

	sinks := opts.Sinks
	userSelected := sinks.OnCardSelected
	sinks.OnCardSelected = func(row, col int) {
		if userSelected != nil {
			userSelected(row, col)
		}
		s.later(func() { s.resolveClick(row, col) })
	}
	s.adapter = grid.NewAdapter(opts.Grid, opts.Deps, opts.Adapter, sinks)
	return s
}

func (s *Session) Adapter() *grid.Adapter { return s.adapter }

func (s *Session) Engine() *grid.Engine { return s.adapter.Engine() }

func (s *Session) Summary() Summary { return s.summary }

// Bet opens a relay round sized like the board and resets the board.
func (s *Session) Bet(ctx context.Context, amount float64, clientSeed string) (game.MinesBetResponse, error) {
	cfg := s.Engine().Config()
	resp, err := s.relay.Bet(ctx, game.MinesBetRequest{
		UserID:     s.opts.UserID,
		Amount:     amount,
		MineCount:  cfg.Hazards,
		GridSize:   cfg.GridSize,
		ClientSeed: clientSeed,
	})
	if err != nil {
		return resp, fmt.Errorf("place bet: %w", err)
	}
	if !resp.Success {
		return resp, &RejectedError{Op: "bet", Message: resp.Message}
	}

	s.ctx = ctx
	s.settled = false
	s.summary = Summary{GameID: resp.GameID, Status: game.STATUS_ACTIVE, Balance: resp.Balance}
	s.adapter.Reset()
	s.log.WithFields(logrus.Fields{"game_id": resp.GameID, "amount": amount}).Info("round opened")
	return resp, nil
}

func (s *Session) active() bool {
	return s.summary.GameID != "" && s.summary.Status == game.STATUS_ACTIVE
}

// Tap forwards a cell tap to the board. In manual mode the relay is asked
// for the tile's outcome on the next scheduler turn.
func (s *Session) Tap(row, col int) bool {
	if !s.active() {
		return false
	}
	return s.adapter.TapCell(row, col)
}

func (s *Session) PickRandom() *grid.Tile {
	if !s.active() {
		return nil
	}
	return s.adapter.PickRandom()
}

func (s *Session) resolveClick(row, col int) {
	if !s.active() {
		s.Engine().CancelSelection()
		return
	}
	resp, err := s.relay.Click(s.ctx, game.MinesClickRequest{
		UserID: s.opts.UserID,
		GameID: s.summary.GameID,
		Row:    row,
		Col:    col,
	})
	if err != nil || !resp.Success {
		entry := s.log.WithFields(logrus.Fields{"row": row, "col": col})
		if err != nil {
			entry = entry.WithError(err)
		} else {
			entry = entry.WithField("message", resp.Message)
		}
		entry.Warn("click refused")
		s.Engine().CancelSelection()
		return
	}

	s.hint(resp.Reveal)
	s.Engine().RevealResult(grid.Result{Row: row, Col: col, Result: resp.Result})
	s.summary.Payout = resp.CurrentPayout
	if resp.GameStatus != "" && resp.GameStatus != game.STATUS_ACTIVE {
		s.finish(resp.GameStatus, resp.CurrentPayout, resp.Balance, resp.Reveal)
	}
}

// SubmitAuto sends the auto-selected tiles to the relay and reveals its
// answers as one batch. The relay settles the round either way. A refused
// batch drops the selection.
func (s *Session) SubmitAuto(ctx context.Context) (game.MinesAutoResponse, error) {
	if !s.active() {
		return game.MinesAutoResponse{}, ErrNoRound
	}
	coords := s.Engine().AutoSelectionCoordinates()
	if len(coords) == 0 {
		return game.MinesAutoResponse{}, ErrNoSelection
	}

	resp, err := s.relay.AutoReveal(ctx, game.MinesAutoRequest{
		UserID: s.opts.UserID,
		GameID: s.summary.GameID,
		Tiles:  coords,
	})
	if err != nil {
		return resp, fmt.Errorf("auto reveal: %w", err)
	}
	if !resp.Success {
		s.Engine().ClearAutoSelection()
		return resp, &RejectedError{Op: "auto reveal", Message: resp.Message}
	}

	s.hint(resp.Reveal)
	s.Engine().RevealAutoSelections(resp.Results)
	s.finish(resp.GameStatus, resp.Payout, resp.Balance, resp.Reveal)
	return resp, nil
}

// Cashout takes the current payout and shows the rest of the board.
func (s *Session) Cashout(ctx context.Context) (game.MinesCashoutResponse, error) {
	if !s.active() {
		return game.MinesCashoutResponse{}, ErrNoRound
	}
	resp, err := s.relay.Cashout(ctx, game.MinesCashoutRequest{
		UserID: s.opts.UserID,
		GameID: s.summary.GameID,
	})
	if err != nil {
		return resp, fmt.Errorf("cashout: %w", err)
	}
	if !resp.Success {
		return resp, &RejectedError{Op: "cashout", Message: resp.Message}
	}

	s.hint(resp.Reveal)
	s.finish(game.STATUS_CASHED_OUT, resp.Payout, resp.Balance, resp.Reveal)
	s.Engine().RevealAllTiles(nil)
	return resp, nil
}

func (s *Session) finish(status string, payout, balance float64, reveal *game.MinesReveal) {
	if s.settled {
		return
	}
	s.settled = true
	s.summary.Status = status
	s.summary.Payout = payout
	s.summary.Balance = balance
	s.summary.Reveal = reveal

	s.log.WithFields(logrus.Fields{
		"game_id": s.summary.GameID,
		"status":  status,
		"payout":  payout,
	}).Info("round settled")
	if s.opts.OnSettled != nil {
		s.opts.OnSettled(s.summary)
	}
}

// hint points later cascades at the real mine layout once the relay shows it.
func (s *Session) hint(reveal *game.MinesReveal) {
	if reveal != nil {
		s.Engine().HintHazards(reveal.MinePositions)
	}
}

func (s *Session) later(fn func()) {
	if s.sched == nil {
		fn()
		return
	}
	s.sched.AfterFunc(0, fn)
}
