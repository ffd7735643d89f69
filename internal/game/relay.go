package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"minigames/internal/cache"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	MIN_BET_AMOUNT = 1.0
	MAX_BET_AMOUNT = 10000.0
	ROUND_TTL      = 1 * time.Hour

	STATUS_ACTIVE     = "ACTIVE"
	STATUS_CASHED_OUT = "CASHED_OUT"
	STATUS_BUSTED     = "BUSTED"
	STATUS_SETTLED    = "SETTLED"
)

var (
	errInsufficientBalance = errors.New("insufficient balance")
	errTransactionFailed   = errors.New("transaction failed")
)

// RoundRecord is the settled summary of one relay round.
type RoundRecord struct {
	RoundID    string    `json:"round_id"`
	UserID     string    `json:"user_id"`
	Game       GameType  `json:"game"`
	BetAmount  float64   `json:"bet_amount"`
	Payout     float64   `json:"payout"`
	Outcome    string    `json:"outcome"`
	ServerSeed string    `json:"server_seed"`
	ClientSeed string    `json:"client_seed"`
	Nonce      int       `json:"nonce"`
	CreatedAt  time.Time `json:"created_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// Recorder persists settled rounds.
type Recorder interface {
	RecordRound(ctx context.Context, rec RoundRecord) error
}

type RoundSettledMessage struct {
	RoundID string   `json:"round_id"`
	UserID  string   `json:"user_id"`
	Game    GameType `json:"game"`
	Outcome string   `json:"outcome"`
	Payout  float64  `json:"payout"`
}

// relay holds what every bet engine shares: the wallet, the hub, the round
// recorder and the provably fair nonce.
type relay struct {
	store cache.Store
	hub   *Hub
	log   *logrus.Entry

	nonce atomic.Int64
	mu    sync.Mutex

	recMu    sync.RWMutex
	recorder Recorder
}

func (r *relay) init(store cache.Store, hub *Hub, game GameType) {
	r.store = store
	r.hub = hub
	r.log = logrus.WithField("game", string(game))
}

func (r *relay) SetRecorder(rec Recorder) {
	r.recMu.Lock()
	r.recorder = rec
	r.recMu.Unlock()
}

func (r *relay) nextNonce() int {
	return int(r.nonce.Add(1))
}

func newRoundID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func validateAmount(amount float64) string {
	if amount < MIN_BET_AMOUNT || amount > MAX_BET_AMOUNT {
		return fmt.Sprintf("Bet must be between %.2f and %.2f", MIN_BET_AMOUNT, MAX_BET_AMOUNT)
	}
	return ""
}

// debit takes amount from the user's balance, rolling back if the balance went
// negative underneath us.
func (r *relay) debit(ctx context.Context, userID string, amount float64) (float64, error) {
	balance, err := r.store.GetBalance(ctx, userID)
	if err != nil || balance < amount {
		return balance, errInsufficientBalance
	}

	newBalance, err := r.store.AdjustBalance(ctx, userID, -amount)
	if err != nil || newBalance < 0 {
		if _, rbErr := r.store.AdjustBalance(ctx, userID, amount); rbErr != nil {
			r.log.WithError(rbErr).WithField("user_id", userID).Error("balance rollback failed")
		}
		return balance, errTransactionFailed
	}
	return newBalance, nil
}

func (r *relay) credit(ctx context.Context, userID string, amount float64) (float64, error) {
	if amount <= 0 {
		balance, err := r.store.GetBalance(ctx, userID)
		if errors.Is(err, cache.ErrNotFound) {
			return 0, nil
		}
		return balance, err
	}
	return r.store.AdjustBalance(ctx, userID, amount)
}

func debitMessage(err error) string {
	if errors.Is(err, errInsufficientBalance) {
		return "Insufficient balance"
	}
	return "Transaction failed"
}

// settle records a finished round and announces it on the hub.
func (r *relay) settle(ctx context.Context, rec RoundRecord) {
	r.recMu.RLock()
	recorder := r.recorder
	r.recMu.RUnlock()

	if recorder != nil {
		if err := recorder.RecordRound(ctx, rec); err != nil {
			r.log.WithError(err).WithField("round_id", rec.RoundID).Warn("failed to record round")
		}
	}

	if r.hub != nil {
		r.hub.Publish(rec.Game, WSMessage{
			Type: "round_settled",
			Data: RoundSettledMessage{
				RoundID: rec.RoundID,
				UserID:  rec.UserID,
				Game:    rec.Game,
				Outcome: rec.Outcome,
				Payout:  rec.Payout,
			},
		})
	}

	r.log.WithFields(logrus.Fields{
		"round_id": rec.RoundID,
		"user_id":  rec.UserID,
		"outcome":  rec.Outcome,
		"payout":   rec.Payout,
	}).Info("round settled")
}
