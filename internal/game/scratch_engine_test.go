package game

import (
	"context"
	"testing"
)

func TestBestLine(t *testing.T) {
	tests := []struct {
		name       string
		card       []string
		symbol     string
		multiplier float64
	}{
		{
			name:   "no line",
			card:   []string{"cherry", "lemon", "star", "lemon", "cherry", "seven", "star", "seven", "lemon"},
			symbol: "",
		},
		{
			name:       "row of cherries",
			card:       []string{"cherry", "cherry", "cherry", "lemon", "star", "blank", "blank", "seven", "lemon"},
			symbol:     "cherry",
			multiplier: 2,
		},
		{
			name:       "best of two lines",
			card:       []string{"cherry", "cherry", "cherry", "lemon", "star", "blank", "seven", "seven", "seven"},
			symbol:     "seven",
			multiplier: 10,
		},
		{
			name:   "blanks never pay",
			card:   []string{"blank", "blank", "blank", "lemon", "star", "cherry", "seven", "cherry", "lemon"},
			symbol: "",
		},
		{
			name:       "column of stars",
			card:       []string{"star", "blank", "lemon", "star", "cherry", "blank", "star", "lemon", "cherry"},
			symbol:     "star",
			multiplier: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			symbol, _, mult := BestLine(tt.card)
			if symbol != tt.symbol || mult != tt.multiplier {
				t.Errorf("BestLine() = (%q, %v), want (%q, %v)", symbol, mult, tt.symbol, tt.multiplier)
			}
		})
	}
}

func TestScratchCard(t *testing.T) {
	card := ScratchCard("server", "client", 3)
	if len(card) != 9 {
		t.Fatalf("expected 9 cells, got %d", len(card))
	}
	again := ScratchCard("server", "client", 3)
	for i := range card {
		if card[i] != again[i] {
			t.Fatal("ScratchCard() is not deterministic")
		}
		if symbolMultiplier(card[i]) == 0 && card[i] != SymbolBlank {
			t.Errorf("unexpected symbol %q", card[i])
		}
	}
}

func TestScratchEngine_Play(t *testing.T) {
	ctx := context.Background()
	store := newFundedStore(t, "u1", 100)
	s := NewScratchEngine(store, nil)

	resp, err := s.Play(ctx, ScratchRequest{UserID: "u1", Amount: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Cells) != 9 {
		t.Fatalf("unexpected response %+v", resp)
	}
	for i, c := range resp.Cells {
		if c.Row != i/3 || c.Col != i%3 {
			t.Errorf("cell %d at (%d, %d)", i, c.Row, c.Col)
		}
		if c.Result == "" {
			t.Errorf("cell %d has no content key", i)
		}
	}

	card := ScratchCard(resp.ServerSeed, resp.ClientSeed, resp.Nonce)
	_, _, mult := BestLine(card)
	if mult != resp.Multiplier {
		t.Errorf("multiplier %v does not match seeds (%v)", resp.Multiplier, mult)
	}
	if mult > 0 && len(resp.Line) != 3 {
		t.Errorf("expected winning line, got %v", resp.Line)
	}

	balance, _ := store.GetBalance(ctx, "u1")
	if balance != 90+resp.Payout {
		t.Errorf("expected balance %v, got %v", 90+resp.Payout, balance)
	}

	refused, _ := s.Play(ctx, ScratchRequest{UserID: "nobody", Amount: 10})
	if refused.Success {
		t.Error("expected refusal without balance")
	}
}
