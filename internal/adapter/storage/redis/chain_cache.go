package redis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ChainCache implements ports.ChainCache. Values are stored as decimal strings
// under chain:<name>:<field> so that each RPC endpoint keeps its own view.
type ChainCache struct {
	client         *goredis.Client
	prefix         string
	gasPriceTTL    time.Duration
	blockNumberTTL time.Duration
}

// NewChainCache creates a Redis-backed cache for chain reads.
func NewChainCache(client *goredis.Client, gasPriceTTL, blockNumberTTL time.Duration) *ChainCache {
	return &ChainCache{
		client:         client,
		prefix:         "chain:",
		gasPriceTTL:    gasPriceTTL,
		blockNumberTTL: blockNumberTTL,
	}
}

func (c *ChainCache) key(chain, field string) string {
	return c.prefix + chain + ":" + field
}

// GetGasPrice returns the cached gas price in wei.
func (c *ChainCache) GetGasPrice(ctx context.Context, chain string) (*big.Int, bool, error) {
	val, err := c.client.Get(ctx, c.key(chain, "gas_price")).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis chain cache get gas price: %w", err)
	}
	price, ok := new(big.Int).SetString(val, 10)
	if !ok {
		return nil, false, fmt.Errorf("redis chain cache: malformed gas price %q", val)
	}
	return price, true, nil
}

// SetGasPrice caches the gas price for the configured gas price TTL.
func (c *ChainCache) SetGasPrice(ctx context.Context, chain string, price *big.Int) error {
	if price == nil {
		return nil
	}
	if err := c.client.Set(ctx, c.key(chain, "gas_price"), price.String(), c.gasPriceTTL).Err(); err != nil {
		return fmt.Errorf("redis chain cache set gas price: %w", err)
	}
	return nil
}

// GetBlockNumber returns the cached head block number.
func (c *ChainCache) GetBlockNumber(ctx context.Context, chain string) (uint64, bool, error) {
	val, err := c.client.Get(ctx, c.key(chain, "block_number")).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis chain cache get block number: %w", err)
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis chain cache: malformed block number %q: %w", val, err)
	}
	return n, true, nil
}

// SetBlockNumber caches the head block number for the block number TTL.
func (c *ChainCache) SetBlockNumber(ctx context.Context, chain string, number uint64) error {
	val := strconv.FormatUint(number, 10)
	if err := c.client.Set(ctx, c.key(chain, "block_number"), val, c.blockNumberTTL).Err(); err != nil {
		return fmt.Errorf("redis chain cache set block number: %w", err)
	}
	return nil
}

// Invalidate drops every cached value for chain.
func (c *ChainCache) Invalidate(ctx context.Context, chain string) error {
	err := c.client.Del(ctx, c.key(chain, "gas_price"), c.key(chain, "block_number")).Err()
	if err != nil {
		return fmt.Errorf("redis chain cache invalidate: %w", err)
	}
	return nil
}
