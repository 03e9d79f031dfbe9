package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"openbook-cli-sol/internal/types"

	"github.com/redis/go-redis/v9"
)

const marketKeyPrefix = "openbook:market"

// MarketSnapshot 市场账户原始数据与 mint 精度，市场参数几乎不变，可以跨进程复用
type MarketSnapshot struct {
	Data         []byte `json:"data"`
	CoinDecimals uint8  `json:"coin_decimals"`
	PcDecimals   uint8  `json:"pc_decimals"`
	CachedAt     int64  `json:"cached_at"`
}

// MarketCache 基于 Redis 的市场元数据缓存；nil 表示未启用，所有方法都是空操作
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMarketCache(rdb *redis.Client, ttl time.Duration) *MarketCache {
	return &MarketCache{rdb: rdb, ttl: ttl}
}

// NewMarketCacheFromAddr addr 为空时返回 nil
func NewMarketCacheFromAddr(addr string, ttl time.Duration) *MarketCache {
	if addr == "" {
		return nil
	}
	return NewMarketCache(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

func marketKey(program, market types.Pubkey) string {
	return fmt.Sprintf("%s:%s:%s", marketKeyPrefix, program, market)
}

// Load 未命中时返回 nil, nil
func (c *MarketCache) Load(ctx context.Context, program, market types.Pubkey) (*MarketSnapshot, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, marketKey(program, market)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return decodeSnapshot(raw)
}

func (c *MarketCache) Save(ctx context.Context, program, market types.Pubkey, snap *MarketSnapshot) error {
	if c == nil || snap == nil {
		return nil
	}
	if snap.CachedAt == 0 {
		snap.CachedAt = time.Now().Unix()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode market snapshot: %w", err)
	}
	return c.rdb.Set(ctx, marketKey(program, market), raw, c.ttl).Err()
}

func (c *MarketCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func decodeSnapshot(raw []byte) (*MarketSnapshot, error) {
	var snap MarketSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode market snapshot: %w", err)
	}
	if len(snap.Data) == 0 {
		return nil, errors.New("decode market snapshot: empty market data")
	}
	return &snap, nil
}
