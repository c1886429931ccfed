package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists per-user engine state in Redis. The TTL is refreshed on
// every save so an abandoned cart eventually expires on its own.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func cartKey(userID string) string { return "cart:" + userID }

// Load fetches the user's cart state. A missing key yields the zero state.
func (s *Store) Load(ctx context.Context, userID string) (State, error) {
	if s == nil || s.Client == nil {
		return State{}, nil
	}
	data, err := s.Client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return State{}, nil
		}
		return State{}, fmt.Errorf("cart: load state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("cart: decode state: %w", err)
	}
	return state, nil
}

// Save writes the user's cart state, resetting the TTL.
func (s *Store) Save(ctx context.Context, userID string, state State) error {
	if s == nil || s.Client == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cart: encode state: %w", err)
	}
	if err := s.Client.Set(ctx, cartKey(userID), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("cart: save state: %w", err)
	}
	return nil
}

// Delete drops the user's cart state entirely.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if s == nil || s.Client == nil {
		return nil
	}
	if err := s.Client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart: delete state: %w", err)
	}
	return nil
}
