package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minigames/internal/game"
	"minigames/internal/grid"
)

var side string

var coinFlipCmd = &cobra.Command{
	Use:   "coinflip",
	Short: "Flip a coin against the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := fundedStore(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := game.NewCoinFlipEngine(store, nil).Flip(cmd.Context(), game.CoinFlipRequest{
			UserID: opts.user,
			Amount: opts.bet,
			Side:   side,
		})
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("flip refused: %s", resp.Message)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "called %s, landed %s: %s\n", resp.Side, resp.Outcome, resp.Result)
		fmt.Fprintf(out, "payout %.2f, balance %.2f\n", resp.Payout, resp.Balance)
		fmt.Fprintf(out, "commitment %s\nserver seed %s, client seed %s, nonce %d\n",
			resp.HashCommitment, resp.ServerSeed, resp.ClientSeed, resp.Nonce)
		return nil
	},
}

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "Scratch one 3x3 card",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := fundedStore(cmd.Context())
		if err != nil {
			return err
		}
		resp, err := game.NewScratchEngine(store, nil).Play(cmd.Context(), game.ScratchRequest{
			UserID: opts.user,
			Amount: opts.bet,
		})
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("card refused: %s", resp.Message)
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, cardText(resp.Cells, resp.Line))
		fmt.Fprintf(out, "%s x%.0f, payout %.2f, balance %.2f\n", resp.Message, resp.Multiplier, resp.Payout, resp.Balance)
		return nil
	},
}

// cardText lays the cells out row by row, bracketing the winning line.
func cardText(cells []grid.Result, line []grid.Coord) string {
	winning := make(map[grid.Coord]bool, len(line))
	for _, c := range line {
		winning[c] = true
	}
	s := ""
	for i, cell := range cells {
		label := fmt.Sprintf(" %-6s ", cell.Result)
		if winning[grid.Coord{Row: cell.Row, Col: cell.Col}] {
			label = fmt.Sprintf("[%-6s]", cell.Result)
		}
		s += label
		if (i+1)%game.SCRATCH_GRID == 0 {
			s += "\n"
		}
	}
	return s
}

func init() {
	coinFlipCmd.Flags().StringVarP(&side, "side", "s", game.COINFLIP_SIDE_HEADS, "Side to call, heads or tails")
}
