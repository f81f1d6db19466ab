package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const denylistPrefix = "denylist:"

// TokenDenylist stores revoked bearer tokens in Redis until they expire
type TokenDenylist struct {
	client *redis.Client
}

func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

// Add revokes a token for the rest of its lifetime
func (d *TokenDenylist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, denylistPrefix+token, 1, ttl).Err()
}

// IsDenylisted reports whether a token has been revoked
func (d *TokenDenylist) IsDenylisted(ctx context.Context, token string) (bool, error) {
	val, err := d.client.Get(ctx, denylistPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val != "", nil
}
