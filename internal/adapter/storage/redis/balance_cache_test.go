package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewBalanceCache(client)
	ctx := context.Background()

	walletID := uuid.New()
	balances := map[string]float64{"USD": 100, "MXN": 568.95}

	// Get before set => nil
	result, err := cache.Get(ctx, walletID)
	assert.NoError(t, err)
	assert.Nil(t, result)

	// Set
	err = cache.Set(ctx, walletID, balances, 30*time.Second)
	require.NoError(t, err)

	// Get after set
	result, err = cache.Get(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, balances, result)
}

func TestBalanceCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewBalanceCache(client)
	ctx := context.Background()

	walletID := uuid.New()

	err := cache.Set(ctx, walletID, map[string]float64{"USD": 50}, 1*time.Second)
	require.NoError(t, err)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, walletID)
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestBalanceCache_Invalidate(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewBalanceCache(client)
	ctx := context.Background()

	walletID := uuid.New()

	err := cache.Set(ctx, walletID, map[string]float64{"MXN": 200}, 1*time.Hour)
	require.NoError(t, err)

	err = cache.Invalidate(ctx, walletID)
	require.NoError(t, err)

	result, err := cache.Get(ctx, walletID)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestBalanceCache_InvalidateMissingKey(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewBalanceCache(client)

	err := cache.Invalidate(context.Background(), uuid.New())
	assert.NoError(t, err)
}
