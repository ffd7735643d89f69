package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"minigames/internal/cache"
	"minigames/internal/config"
	"minigames/internal/game"
	"minigames/internal/grid"
	"minigames/internal/loop"
	"minigames/internal/play"
	"minigames/internal/render"
)

type options struct {
	preset      string
	presetsPath string
	gridSize    int
	hazards     int
	mode        grid.Mode
	picks       int
	seed        uint64
	user        string
	bet         float64
	balance     float64
	clientSeed  string
	anim        time.Duration
	realtime    bool
	verbose     bool
}

var opts = options{}

var rootCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a mines round against the in-process relay",
	Long: `play runs one mines round in the terminal against an in-process relay.

Pick three tiles one at a time, then cash out
	play --picks 3

Select five tiles and submit them as one batch
	play --mode auto --picks 5

Use a preset from the presets file
	play --preset mines-high-risk
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetOutput(cmd.ErrOrStderr())
		logrus.SetLevel(logrus.WarnLevel)
		if opts.verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := resolveBoard(cmd)
		if err != nil {
			return err
		}
		return playMines(cmd.Context(), cmd.OutOrStdout(), board)
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveBoard loads the preset and applies the flags the user set explicitly.
func resolveBoard(cmd *cobra.Command) (config.Board, error) {
	presets, err := config.LoadPresets(opts.presetsPath)
	if err != nil {
		return config.Board{}, err
	}
	board, err := presets.Board(opts.preset)
	if err != nil {
		return config.Board{}, err
	}
	if board.Game != string(game.GameTypeMines) {
		return config.Board{}, fmt.Errorf("preset %q is a %s board, use the %s command", board.Name, board.Game, board.Game)
	}

	flags := cmd.Flags()
	if flags.Changed("grid") {
		board.Grid.GridSize = opts.gridSize
	}
	if flags.Changed("hazards") {
		board.Grid.Hazards = opts.hazards
	}
	board.Grid.GridSize, board.Grid.Hazards = grid.ClampGrid(board.Grid.GridSize, board.Grid.Hazards)
	if flags.Changed("seed") {
		board.Grid.Rand = grid.NewSeededRand(opts.seed)
	}
	return board, nil
}

type modeValue grid.Mode

func newModeValue(val grid.Mode, p *grid.Mode) *modeValue {
	*p = val
	return (*modeValue)(p)
}

func (m *modeValue) String() string { return string(*m) }

func (m *modeValue) Set(value string) error {
	switch grid.Mode(value) {
	case grid.ModeManual, grid.ModeAuto:
		*m = modeValue(value)
		return nil
	}
	return fmt.Errorf("invalid mode %q, want manual or auto", value)
}

func (m *modeValue) Type() string { return "mode" }

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.preset, "preset", "p", config.DEFAULT_PRESET, "Board preset name")
	flags.IntVarP(&opts.gridSize, "grid", "g", 5, "Tiles per side, overrides the preset")
	flags.IntVarP(&opts.hazards, "hazards", "m", 3, "Number of mines, overrides the preset")
	flags.Var(newModeValue(grid.ModeManual, &opts.mode), "mode", `Selection mode
manual: each pick is sent to the relay as soon as it is made
auto: picks are collected and revealed as one batch`)
	flags.IntVarP(&opts.picks, "picks", "n", 3, "Tiles to pick before cashing out or submitting")
	flags.Uint64Var(&opts.seed, "seed", 0, "Seed for random picks and cascade order")
	flags.StringVar(&opts.clientSeed, "client-seed", "", "Client seed sent with the bet")
	flags.DurationVar(&opts.anim, "anim", 150*time.Millisecond, "Length of a reveal animation")
	flags.BoolVar(&opts.realtime, "realtime", false, "Run on the wall clock instead of a virtual one")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&opts.presetsPath, "presets", config.FromEnv().PresetsPath, "Path to the presets file")
	persistent.StringVarP(&opts.user, "user", "u", "player", "User id")
	persistent.Float64VarP(&opts.bet, "bet", "b", 10, "Bet amount")
	persistent.Float64Var(&opts.balance, "balance", 100, "Starting balance")
	persistent.BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine decisions")

	rootCmd.AddCommand(scratchCmd, coinFlipCmd)
}

func fundedStore(ctx context.Context) (*cache.MemoryStore, error) {
	store := cache.NewMemoryStore()
	if err := store.SetBalance(ctx, opts.user, opts.balance); err != nil {
		return nil, fmt.Errorf("fund user: %w", err)
	}
	return store, nil
}

func playMines(ctx context.Context, out io.Writer, board config.Board) error {
	store, err := fundedStore(ctx)
	if err != nil {
		return err
	}

	var sched grid.Scheduler
	var run runner
	if opts.realtime {
		l := loop.New()
		sched, run = l, &loopRunner{loop: l, poll: 10 * time.Millisecond}
	} else {
		clock := loop.NewManual()
		sched, run = clock, &manualRunner{clock: clock}
	}

	session := play.NewSession(game.NewMinesEngine(store, nil), play.Options{
		UserID:  opts.user,
		Grid:    board.Grid,
		Adapter: board.Options,
		Deps: grid.Deps{
			Visual:    &render.Text{Out: out, Scheduler: sched, AnimDuration: opts.anim, Quiet: true},
			Modes:     grid.FixedMode(opts.mode),
			Scheduler: sched,
		},
		Sinks: grid.Handlers{
			OnWin:      func() { fmt.Fprintln(out, "round won") },
			OnGameOver: func() { fmt.Fprintln(out, "mine hit") },
		},
	})

	fmt.Fprintf(out, "%s: %dx%d, %d mines, %s mode\n",
		board.Name, board.Grid.GridSize, board.Grid.GridSize, board.Grid.Hazards, opts.mode)

	var failed error
	step := func(fn func() error) func() {
		return func() {
			if failed == nil {
				failed = fn()
			}
		}
	}

	steps := []func(){
		step(func() error {
			_, err := session.Bet(ctx, opts.bet, opts.clientSeed)
			return err
		}),
	}
	switch opts.mode {
	case grid.ModeAuto:
		rng := board.Grid.Rand
		if rng == nil {
			rng = grid.NewSeededRand(uint64(time.Now().UnixNano()))
		}
		steps = append(steps, step(func() error {
			selectRandom(session, rng, opts.picks)
			return nil
		}), step(func() error {
			_, err := session.SubmitAuto(ctx)
			return err
		}))
	default:
		for i := 0; i < opts.picks; i++ {
			steps = append(steps, step(func() error {
				session.PickRandom()
				return nil
			}))
		}
		steps = append(steps, step(func() error {
			if session.Summary().Status != game.STATUS_ACTIVE {
				return nil
			}
			_, err := session.Cashout(ctx)
			return err
		}))
	}

	if err := run.run(ctx, steps); err != nil {
		return err
	}
	if failed != nil {
		return failed
	}

	engine := session.Engine()
	fmt.Fprintln(out)
	fmt.Fprint(out, render.Board(engine.Tiles(), engine.Config().GridSize))
	sum := session.Summary()
	fmt.Fprintf(out, "\nround %s: %s, payout %.2f, balance %.2f\n", sum.GameID, sum.Status, sum.Payout, sum.Balance)
	if sum.Reveal != nil {
		fmt.Fprintf(out, "server seed %s, client seed %s, nonce %d\n",
			sum.Reveal.ServerSeed, sum.Reveal.ClientSeed, sum.Reveal.Nonce)
	}
	return nil
}

// selectRandom toggles up to n distinct hidden tiles into the auto selection.
func selectRandom(s *play.Session, rng interface{ IntN(int) int }, n int) {
	var free []grid.Coord
	for _, t := range s.Engine().Tiles() {
		if !t.Revealed() && !t.AutoSelected() && !t.Taped() {
			free = append(free, t.Coord())
		}
	}
	for picked := 0; picked < n && len(free) > 0; {
		i := rng.IntN(len(free))
		c := free[i]
		free[i] = free[len(free)-1]
		free = free[:len(free)-1]
		if s.Tap(c.Row, c.Col) {
			picked++
		}
	}
}
