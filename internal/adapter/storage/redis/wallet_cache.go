package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// WalletCache implements ports.WalletCache using Redis.
//
// Two entries are kept per user: the wallet projection under "wallet:user:"
// with a long TTL, and the balance projection under "balance:user:" with a
// short TTL. Misses and store-side absence both come back as nil, nil; a
// missing wallet is never written to the cache, so creation right after a
// failed lookup is visible immediately.
//
// Eviction must win over in-flight populates: a read-through that snapshots
// the store before a mutation commits can reach SetBalance after that
// mutation's Invalidate, resurrecting the stale value for a full TTL.
// Invalidate therefore leaves a tombstone for evictGrace, and every populate
// runs as a check-and-set script that is a no-op while the tombstone stands.
type WalletCache struct {
	client     *goredis.Client
	walletTTL  time.Duration
	balanceTTL time.Duration
}

// evictGrace bounds how long an eviction blocks populates. It only has to
// outlive a read-through that started before the evicting commit.
const evictGrace = 3 * time.Second

func tombstoneKey(userID string) string { return "evicted:user:" + userID }

// KEYS[1] = entry key, KEYS[2] = tombstone key, ARGV[1] = payload,
// ARGV[2] = TTL in milliseconds.
var setUnlessEvicted = goredis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// NewWalletCache creates a Redis-backed wallet cache with the given TTLs.
func NewWalletCache(client *goredis.Client, walletTTL, balanceTTL time.Duration) *WalletCache {
	return &WalletCache{
		client:     client,
		walletTTL:  walletTTL,
		balanceTTL: balanceTTL,
	}
}

func walletKey(userID string) string  { return "wallet:user:" + userID }
func balanceKey(userID string) string { return "balance:user:" + userID }

// GetWallet retrieves the cached wallet projection. Returns nil, nil on miss.
func (c *WalletCache) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	val, err := c.client.Get(ctx, walletKey(userID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis wallet get: %w", err)
	}

	var w domain.Wallet
	if err := json.Unmarshal(val, &w); err != nil {
		return nil, fmt.Errorf("redis wallet decode: %w", err)
	}
	return &w, nil
}

// SetWallet stores the wallet projection with the long TTL. The write is
// skipped while an eviction tombstone is present for the user.
func (c *WalletCache) SetWallet(ctx context.Context, wallet *domain.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("redis wallet encode: %w", err)
	}
	keys := []string{walletKey(wallet.UserID), tombstoneKey(wallet.UserID)}
	if err := setUnlessEvicted.Run(ctx, c.client, keys, data, c.walletTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis wallet set: %w", err)
	}
	return nil
}

// GetBalance retrieves the cached balance projection. Returns nil, nil on miss.
func (c *WalletCache) GetBalance(ctx context.Context, userID string) (*domain.BalanceResponse, error) {
	val, err := c.client.Get(ctx, balanceKey(userID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}

	var b domain.BalanceResponse
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, fmt.Errorf("redis balance decode: %w", err)
	}
	return &b, nil
}

// SetBalance stores the balance projection with the short TTL. The write is
// skipped while an eviction tombstone is present for the user.
func (c *WalletCache) SetBalance(ctx context.Context, balance *domain.BalanceResponse) error {
	data, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("redis balance encode: %w", err)
	}
	keys := []string{balanceKey(balance.UserID), tombstoneKey(balance.UserID)}
	if err := setUnlessEvicted.Run(ctx, c.client, keys, data, c.balanceTTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

// Invalidate evicts both projections for each given user and plants a
// tombstone so that late populates carrying pre-mutation snapshots cannot
// bring the evicted values back.
func (c *WalletCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys, walletKey(id), balanceKey(id))
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, keys...)
	for _, id := range userIDs {
		pipe.Set(ctx, tombstoneKey(id), "1", evictGrace)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis cache invalidate: %w", err)
	}
	return nil
}
