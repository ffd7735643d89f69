package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const KeyUserBalance = "minigames:balance:"

var ErrNotFound = errors.New("cache: key not found")

// Store is the relay's wallet and round storage.
type Store interface {
	GetBalance(ctx context.Context, userID string) (float64, error)
	SetBalance(ctx context.Context, userID string, amount float64) error
	// AdjustBalance adds delta (which may be negative) and returns the new balance.
	AdjustBalance(ctx context.Context, userID string, delta float64) (float64, error)

	SaveRound(ctx context.Context, key string, v any, ttl time.Duration) error
	LoadRound(ctx context.Context, key string, v any) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetBalance(ctx context.Context, userID string) (float64, error) {
	balance, err := s.client.Get(ctx, KeyUserBalance+userID).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *RedisStore) SetBalance(ctx context.Context, userID string, amount float64) error {
	return s.client.Set(ctx, KeyUserBalance+userID, amount, 0).Err()
}

func (s *RedisStore) AdjustBalance(ctx context.Context, userID string, delta float64) (float64, error) {
	return s.client.IncrByFloat(ctx, KeyUserBalance+userID, delta).Result()
}

func (s *RedisStore) SaveRound(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode round %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) LoadRound(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode round %s: %w", key, err)
	}
	return nil
}
