package game

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"minigames/internal/cache"
)

const (
	COINFLIP_MULTIPLIER = 1.98
	REDIS_KEY_COINFLIP  = "coinflip:round:"
	COINFLIP_SIDE_HEADS = "heads"
	COINFLIP_SIDE_TAILS = "tails"
)

type CoinFlipRequest struct {
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
	Side       string  `json:"side"`
	ClientSeed string  `json:"client_seed,omitempty"`
}

type CoinFlipResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	RoundID        string  `json:"round_id,omitempty"`
	Side           string  `json:"side,omitempty"`
	Outcome        string  `json:"outcome,omitempty"`
	Result         string  `json:"result,omitempty"`
	Won            bool    `json:"won"`
	Payout         float64 `json:"payout"`
	Balance        float64 `json:"balance,omitempty"`
	ServerSeed     string  `json:"server_seed,omitempty"`
	HashCommitment string  `json:"hash_commitment,omitempty"`
	ClientSeed     string  `json:"client_seed,omitempty"`
	Nonce          int     `json:"nonce,omitempty"`
}

// CoinFlipEngine settles each flip in a single call.
type CoinFlipEngine struct {
	relay
}

func NewCoinFlipEngine(store cache.Store, hub *Hub) *CoinFlipEngine {
	c := &CoinFlipEngine{}
	c.relay.init(store, hub, GameTypeCoinFlip)
	return c
}

func (c *CoinFlipEngine) GetType() GameType { return GameTypeCoinFlip }

func (c *CoinFlipEngine) Start(ctx context.Context) error { return nil }

func (c *CoinFlipEngine) Stop() error { return nil }

func (c *CoinFlipEngine) GetState() interface{} {
	return map[string]interface{}{"status": "ready", "multiplier": COINFLIP_MULTIPLIER}
}

func (c *CoinFlipEngine) PlaceBet(ctx context.Context, req interface{}) (interface{}, error) {
	flipReq, ok := req.(CoinFlipRequest)
	if !ok {
		return nil, errors.New("invalid request type")
	}
	return c.Flip(ctx, flipReq)
}

func (c *CoinFlipEngine) ProcessAction(ctx context.Context, action string, req interface{}) (interface{}, error) {
	if action != "flip" {
		return nil, errors.New("unknown action")
	}
	return c.PlaceBet(ctx, req)
}

// CoinSide maps a provably fair float onto a side.
func CoinSide(serverSeed, clientSeed string, nonce int) string {
	if Floats(serverSeed, clientSeed, nonce, 1)[0] < 0.5 {
		return COINFLIP_SIDE_HEADS
	}
	return COINFLIP_SIDE_TAILS
}

func (c *CoinFlipEngine) Flip(ctx context.Context, req CoinFlipRequest) (CoinFlipResponse, error) {
	side := strings.ToLower(strings.TrimSpace(req.Side))
	if side != COINFLIP_SIDE_HEADS && side != COINFLIP_SIDE_TAILS {
		return CoinFlipResponse{Success: false, Message: "Side must be heads or tails"}, nil
	}
	if msg := validateAmount(req.Amount); msg != "" {
		return CoinFlipResponse{Success: false, Message: msg}, nil
	}

	if _, err := c.debit(ctx, req.UserID, req.Amount); err != nil {
		return CoinFlipResponse{Success: false, Message: debitMessage(err)}, nil
	}

	nonce := c.nextNonce()
	serverSeed := GenerateSeed()
	clientSeed := req.ClientSeed
	if clientSeed == "" {
		clientSeed = GenerateSeed()
	}
	outcome := CoinSide(serverSeed, clientSeed, nonce)
	won := outcome == side

	payout := 0.0
	result := "lost"
	if won {
		payout = math.Round(req.Amount*COINFLIP_MULTIPLIER*100) / 100
		result = "win"
	}

	balance, err := c.credit(ctx, req.UserID, payout)
	if err != nil {
		return CoinFlipResponse{}, err
	}

	now := time.Now()
	rec := RoundRecord{
		RoundID:    newRoundID("FLIP"),
		UserID:     req.UserID,
		Game:       GameTypeCoinFlip,
		BetAmount:  req.Amount,
		Payout:     payout,
		Outcome:    result,
		ServerSeed: serverSeed,
		ClientSeed: clientSeed,
		Nonce:      nonce,
		CreatedAt:  now,
		EndedAt:    now,
	}
	if err := c.store.SaveRound(ctx, REDIS_KEY_COINFLIP+rec.RoundID, rec, ROUND_TTL); err != nil {
		c.log.WithError(err).Warn("failed to cache flip")
	}
	c.settle(ctx, rec)

	msg := "Better luck next time"
	if won {
		msg = "You won!"
	}
	return CoinFlipResponse{
		Success:        true,
		Message:        msg,
		RoundID:        rec.RoundID,
		Side:           side,
		Outcome:        outcome,
		Result:         result,
		Won:            won,
		Payout:         payout,
		Balance:        balance,
		ServerSeed:     serverSeed,
		HashCommitment: HashCommitment(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          nonce,
	}, nil
}
