package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var ErrAlreadyClaimed = errors.New("claim is already held")

// ClaimsRepo hands out single-holder claims keyed by name. A claim expires
// on its own after the TTL, so a crashed holder cannot wedge the key forever.
type ClaimsRepo struct {
	client *goredis.Client
}

func NewClaimsRepo(client *goredis.Client) *ClaimsRepo {
	return &ClaimsRepo{client: client}
}

func (r *ClaimsRepo) Acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || token == "" || ttl <= 0 {
		return fmt.Errorf("invalid claim payload")
	}

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire claim %q: %w", key, err)
	}
	if !ok {
		return ErrAlreadyClaimed
	}

	return nil
}

// Release deletes the claim only when the stored token matches, so a holder
// whose claim already expired cannot release a claim re-acquired by someone
// else.
func (r *ClaimsRepo) Release(ctx context.Context, key, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || token == "" {
		return fmt.Errorf("invalid claim payload")
	}

	current, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("read claim %q: %w", key, err)
	}
	if current != token {
		return nil
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release claim %q: %w", key, err)
	}

	return nil
}
