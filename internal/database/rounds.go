package database

import (
	"context"
	"fmt"

	"minigames/internal/game"
)

const DEFAULT_HISTORY_LIMIT = 20

const insertRound = `
INSERT INTO rounds (round_id, user_id, game, bet_amount, payout, outcome, server_seed, client_seed, nonce, created_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (round_id) DO NOTHING`

const selectRecentRounds = `
SELECT round_id, user_id, game, bet_amount, payout, outcome, server_seed, client_seed, nonce, created_at, ended_at
FROM rounds
WHERE user_id = $1
ORDER BY ended_at DESC, round_id
LIMIT $2`

func (s *service) RecordRound(ctx context.Context, rec game.RoundRecord) error {
	_, err := s.db.ExecContext(ctx, insertRound,
		rec.RoundID, rec.UserID, string(rec.Game), rec.BetAmount, rec.Payout, rec.Outcome,
		rec.ServerSeed, rec.ClientSeed, rec.Nonce, rec.CreatedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", rec.RoundID, err)
	}
	return nil
}

func (s *service) RecentRounds(ctx context.Context, userID string, limit int) ([]game.RoundRecord, error) {
	if limit <= 0 {
		limit = DEFAULT_HISTORY_LIMIT
	}
	rows, err := s.db.QueryContext(ctx, selectRecentRounds, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []game.RoundRecord
	for rows.Next() {
		var rec game.RoundRecord
		var gameType string
		if err := rows.Scan(&rec.RoundID, &rec.UserID, &gameType, &rec.BetAmount, &rec.Payout, &rec.Outcome,
			&rec.ServerSeed, &rec.ClientSeed, &rec.Nonce, &rec.CreatedAt, &rec.EndedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rec.Game = game.GameType(gameType)
		out = append(out, rec)
	}
	return out, rows.Err()
}
