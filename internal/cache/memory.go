package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps everything in process. Rounds are stored as JSON so they
// behave like the Redis copies.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]float64
	rounds   map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]float64),
		rounds:   make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetBalance(_ context.Context, userID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (s *MemoryStore) SetBalance(_ context.Context, userID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = amount
	return nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, userID string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] += delta
	return s.balances[userID], nil
}

func (s *MemoryStore) SaveRound(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode round %s: %w", key, err)
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.rounds[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadRound(_ context.Context, key string, v any) error {
	s.mu.Lock()
	entry, ok := s.rounds[key]
	if ok && !entry.expires.IsZero() && !s.now().Before(entry.expires) {
		delete(s.rounds, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(entry.data, v); err != nil {
		return fmt.Errorf("decode round %s: %w", key, err)
	}
	return nil
}
