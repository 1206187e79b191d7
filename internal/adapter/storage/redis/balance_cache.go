package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// BalanceCache implements ports.BalanceCache using Redis. The cached value is
// the JSON-encoded balances view keyed by wallet id.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

// NewBalanceCache creates a new Redis-backed balance cache.
func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balances:",
	}
}

// Get retrieves the cached balances view for a wallet.
// Returns nil, nil if the key does not exist.
func (c *BalanceCache) Get(ctx context.Context, walletID uuid.UUID) (map[string]float64, error) {
	val, err := c.client.Get(ctx, c.prefix+walletID.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balances get: %w", err)
	}

	var balances map[string]float64
	if err := json.Unmarshal(val, &balances); err != nil {
		return nil, fmt.Errorf("redis balances decode: %w", err)
	}
	return balances, nil
}

// Set stores the balances view with TTL.
func (c *BalanceCache) Set(ctx context.Context, walletID uuid.UUID, balances map[string]float64, ttl time.Duration) error {
	val, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("redis balances encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+walletID.String(), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis balances set: %w", err)
	}
	return nil
}

// Invalidate drops the cached view after a balance mutation commits.
func (c *BalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	if err := c.client.Del(ctx, c.prefix+walletID.String()).Err(); err != nil {
		return fmt.Errorf("redis balances invalidate: %w", err)
	}
	return nil
}
