// Package resolver 决定 consume events 需要 crank 的 open orders 账户列表。
package resolver

import (
	"context"
	"fmt"

	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"
)

// QueueScanner 按队列顺序返回前 limit 个待处理事件涉及的 open orders 账户（已去重）
type QueueScanner interface {
	CollectEventQueueOpenOrders(ctx context.Context, limit int) ([]types.Pubkey, error)
}

// ParseExplicit 解析用户显式传入的账户列表，任意一个非法则整体失败
func ParseExplicit(explicit []string) ([]types.Pubkey, error) {
	keys := make([]types.Pubkey, 0, len(explicit))
	for _, s := range explicit {
		k, err := types.TryPubkeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid open orders pubkey %q: %v", types.ErrInvalidInput, s, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Resolve 优先级：显式列表 > 事件队列扫描 > 自己的 open orders 账户
func Resolve(ctx context.Context, scanner QueueScanner, explicit []string, limit int, self types.Pubkey) ([]types.Pubkey, error) {
	if len(explicit) > 0 {
		keys, err := ParseExplicit(explicit)
		if err != nil {
			return nil, err
		}
		logger.Infof("[Resolver] using %d explicit open orders accounts", len(keys))
		return keys, nil
	}

	owners, err := scanner.CollectEventQueueOpenOrders(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(owners) > 0 {
		logger.Infof("[Resolver] collected %d open orders accounts from event queue", len(owners))
		return owners, nil
	}

	if self.IsZero() {
		return nil, fmt.Errorf("%w: event queue has no pending owners", types.ErrNoOpenOrders)
	}
	logger.Infof("[Resolver] event queue empty, fallback to own open orders %s", self)
	return []types.Pubkey{self}, nil
}
