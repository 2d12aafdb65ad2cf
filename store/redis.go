package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// RedisStore persists session state under three keys sharing a prefix. It
// fits deployments where several short-lived processes (workers, sidecars)
// share one logical login.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a store writing under prefix (default "sessionkit").
func NewRedisStore(client *redis.Client, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if prefix == "" {
		prefix = "sessionkit"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(name string) string {
	return r.prefix + ":" + name
}

// Load reads the three keys in one round trip. Missing keys load as empty
// fields; an invariant-breaking record (user without token) is still returned
// as-is and left for the Manager to reject.
func (r *RedisStore) Load(ctx context.Context) (State, error) {
	vals, err := r.client.MGet(ctx,
		r.key(keyAccessToken),
		r.key(keyRefreshToken),
		r.key(keyUser),
	).Result()
	if err != nil {
		return State{}, fmt.Errorf("redis mget: %w", err)
	}
	if len(vals) != 3 {
		return State{}, fmt.Errorf("%w: mget returned %d values", ErrCorruptState, len(vals))
	}

	var state State
	if s, ok := vals[0].(string); ok {
		state.AccessToken = s
	}
	if s, ok := vals[1].(string); ok {
		state.RefreshToken = s
	}
	if s, ok := vals[2].(string); ok {
		state.UserJSON = []byte(s)
	}
	return state, nil
}

// Save overwrites all three keys in one pipeline so readers never observe a
// half-written session.
func (r *RedisStore) Save(ctx context.Context, state State) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(keyAccessToken), state.AccessToken, 0)
	pipe.Set(ctx, r.key(keyRefreshToken), state.RefreshToken, 0)
	if len(state.UserJSON) > 0 {
		pipe.Set(ctx, r.key(keyUser), string(state.UserJSON), 0)
	} else {
		pipe.Del(ctx, r.key(keyUser))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

// Clear deletes all three keys. Deleting absent keys is a no-op.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx,
		r.key(keyAccessToken),
		r.key(keyRefreshToken),
		r.key(keyUser),
	).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}
