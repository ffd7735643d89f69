package game

import (
	"context"
	"errors"
	"math"
	"time"

	"minigames/internal/cache"
	"minigames/internal/grid"
)

const (
	SCRATCH_GRID      = 3
	REDIS_KEY_SCRATCH = "scratch:round:"
	SymbolBlank       = "blank"
	SymbolCherry      = "cherry"
	SymbolLemon       = "lemon"
	SymbolStar        = "star"
	SymbolSeven       = "seven"
)

type scratchSymbol struct {
	name       string
	weight     float64
	multiplier float64
}

// Weights sum to 1 and are consumed in order.
var scratchSymbols = []scratchSymbol{
	{SymbolBlank, 0.40, 0},
	{SymbolCherry, 0.25, 2},
	{SymbolLemon, 0.17, 3},
	{SymbolStar, 0.11, 5},
	{SymbolSeven, 0.07, 10},
}

// scratchLines are the rows, columns and diagonals of a 3x3 card, as tile ids.
var scratchLines = [][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type ScratchRequest struct {
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
	ClientSeed string  `json:"client_seed,omitempty"`
}

type ScratchResponse struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	RoundID        string        `json:"round_id,omitempty"`
	Cells          []grid.Result `json:"cells,omitempty"`
	Symbol         string        `json:"symbol,omitempty"`
	Line           []grid.Coord  `json:"line,omitempty"`
	Multiplier     float64       `json:"multiplier"`
	Payout         float64       `json:"payout"`
	Balance        float64       `json:"balance,omitempty"`
	ServerSeed     string        `json:"server_seed,omitempty"`
	HashCommitment string        `json:"hash_commitment,omitempty"`
	ClientSeed     string        `json:"client_seed,omitempty"`
	Nonce          int           `json:"nonce,omitempty"`
}

type ScratchEngine struct {
	relay
}

func NewScratchEngine(store cache.Store, hub *Hub) *ScratchEngine {
	s := &ScratchEngine{}
	s.relay.init(store, hub, GameTypeScratch)
	return s
}

func (s *ScratchEngine) GetType() GameType { return GameTypeScratch }

func (s *ScratchEngine) Start(ctx context.Context) error { return nil }

func (s *ScratchEngine) Stop() error { return nil }

func (s *ScratchEngine) GetState() interface{} {
	paytable := make(map[string]float64, len(scratchSymbols))
	for _, sym := range scratchSymbols {
		if sym.multiplier > 0 {
			paytable[sym.name] = sym.multiplier
		}
	}
	return map[string]interface{}{"status": "ready", "paytable": paytable}
}

func (s *ScratchEngine) PlaceBet(ctx context.Context, req interface{}) (interface{}, error) {
	playReq, ok := req.(ScratchRequest)
	if !ok {
		return nil, errors.New("invalid request type")
	}
	return s.Play(ctx, playReq)
}

func (s *ScratchEngine) ProcessAction(ctx context.Context, action string, req interface{}) (interface{}, error) {
	if action != "play" {
		return nil, errors.New("unknown action")
	}
	return s.PlaceBet(ctx, req)
}

// ScratchCard draws the nine symbols of a card, row-major.
func ScratchCard(serverSeed, clientSeed string, nonce int) []string {
	floats := Floats(serverSeed, clientSeed, nonce, SCRATCH_GRID*SCRATCH_GRID)
	card := make([]string, len(floats))
	for i, f := range floats {
		card[i] = pickSymbol(f).name
	}
	return card
}

func pickSymbol(f float64) scratchSymbol {
	acc := 0.0
	for _, sym := range scratchSymbols {
		acc += sym.weight
		if f < acc {
			return sym
		}
	}
	return scratchSymbols[len(scratchSymbols)-1]
}

func symbolMultiplier(name string) float64 {
	for _, sym := range scratchSymbols {
		if sym.name == name {
			return sym.multiplier
		}
	}
	return 0
}

// BestLine returns the highest paying completed line on the card, if any.
func BestLine(card []string) (symbol string, line [3]int, multiplier float64) {
	for _, l := range scratchLines {
		a := card[l[0]]
		if a != card[l[1]] || a != card[l[2]] {
			continue
		}
		if mult := symbolMultiplier(a); mult > multiplier {
			symbol, line, multiplier = a, l, mult
		}
	}
	return symbol, line, multiplier
}

func (s *ScratchEngine) Play(ctx context.Context, req ScratchRequest) (ScratchResponse, error) {
	if msg := validateAmount(req.Amount); msg != "" {
		return ScratchResponse{Success: false, Message: msg}, nil
	}
	if _, err := s.debit(ctx, req.UserID, req.Amount); err != nil {
		return ScratchResponse{Success: false, Message: debitMessage(err)}, nil
	}

	nonce := s.nextNonce()
	serverSeed := GenerateSeed()
	clientSeed := req.ClientSeed
	if clientSeed == "" {
		clientSeed = GenerateSeed()
	}

	card := ScratchCard(serverSeed, clientSeed, nonce)
	cells := make([]grid.Result, len(card))
	for i, sym := range card {
		cells[i] = grid.Result{Row: i / SCRATCH_GRID, Col: i % SCRATCH_GRID, Result: sym}
	}

	symbol, line, multiplier := BestLine(card)
	payout := math.Round(req.Amount*multiplier*100) / 100
	balance, err := s.credit(ctx, req.UserID, payout)
	if err != nil {
		return ScratchResponse{}, err
	}

	resp := ScratchResponse{
		Success:        true,
		Message:        "No match",
		RoundID:        newRoundID("SCRATCH"),
		Cells:          cells,
		Multiplier:     multiplier,
		Payout:         payout,
		Balance:        balance,
		ServerSeed:     serverSeed,
		HashCommitment: HashCommitment(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
	}
	outcome := "lost"
	if multiplier > 0 {
		outcome = "win"
		resp.Message = "Three " + symbol + "s!"
		resp.Symbol = symbol
		for _, id := range line {
			resp.Line = append(resp.Line, grid.Coord{Row: id / SCRATCH_GRID, Col: id % SCRATCH_GRID})
		}
	}

	now := time.Now()
	rec := RoundRecord{
		RoundID:    resp.RoundID,
		UserID:     req.UserID,
		Game:       GameTypeScratch,
		BetAmount:  req.Amount,
		Payout:     payout,
		Outcome:    outcome,
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Nonce:      nonce,
		CreatedAt:  now,
		EndedAt:    now,
	}
	if err := s.store.SaveRound(ctx, REDIS_KEY_SCRATCH+rec.RoundID, resp, ROUND_TTL); err != nil {
		s.log.WithError(err).Warn("failed to cache card")
	}
	s.settle(ctx, rec)
	return resp, nil
}
