package openbook

import (
	"context"
	"fmt"

	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"
	"openbook-cli-sol/internal/utils"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
)

func (c *Client) loadEventQueue(ctx context.Context) (*EventQueueHeader, []Event, error) {
	data, err := c.getAccountData(ctx, c.market.State.EventQueue, "event queue")
	if err != nil {
		return nil, nil, err
	}
	return DecodeEventQueue(data)
}

func (c *Client) FetchEventQueueStats(ctx context.Context) (core.EventQueueStats, error) {
	header, _, err := c.loadEventQueue(ctx)
	if err != nil {
		return core.EventQueueStats{}, err
	}
	return core.EventQueueStats{
		Count:        header.Count,
		Head:         header.Head,
		SeqNum:       header.SeqNum,
		AccountFlags: header.AccountFlags,
	}, nil
}

// CollectEventQueueOpenOrders 扫描最多 limit 个待处理事件，按队列顺序返回去重后的 open orders 账户
func (c *Client) CollectEventQueueOpenOrders(ctx context.Context, limit int) ([]types.Pubkey, error) {
	_, events, err := c.loadEventQueue(ctx)
	if err != nil {
		return nil, err
	}
	owners := distinctOwners(utils.Truncate(events, limit))
	logger.Debugf("[OpenBook] event queue: pending=%d scanned=%d owners=%d", len(events), min(len(events), max(limit, 0)), len(owners))
	return owners, nil
}

func distinctOwners(events []Event) []types.Pubkey {
	seen := make(map[types.Pubkey]struct{}, len(events))
	owners := make([]types.Pubkey, 0, len(events))
	for i := range events {
		owner := events[i].Owner
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		owners = append(owners, owner)
	}
	return owners
}

// FindOpenOrdersAccountsForOwner 通过 getProgramAccounts 查找 owner 在当前市场的 open orders 账户
func (c *Client) FindOpenOrdersAccountsForOwner(ctx context.Context, owner types.Pubkey, limit int) ([]types.Pubkey, error) {
	accounts, err := c.reader.GetProgramAccountsWithConfig(ctx, c.market.ProgramID.String(), openOrdersFilter(c.market.Address, owner))
	if err != nil {
		return nil, fmt.Errorf("get program accounts for owner %s: %w", owner, err)
	}

	result := make([]types.Pubkey, 0, len(accounts))
	for _, acc := range accounts {
		result = append(result, types.PubkeyFromPublicKey(acc.Pubkey))
	}
	return utils.Truncate(result, limit), nil
}

func openOrdersFilter(market, owner types.Pubkey) client.GetProgramAccountsConfig {
	return client.GetProgramAccountsConfig{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.GetProgramAccountsConfigFilter{
			{DataSize: uint64(OpenOrdersAccountSize)},
			{MemCmp: &rpc.GetProgramAccountsConfigFilterMemCmp{Offset: openOrdersMarketOffset, Bytes: market.String()}},
			{MemCmp: &rpc.GetProgramAccountsConfigFilterMemCmp{Offset: openOrdersOwnerOffset, Bytes: owner.String()}},
		},
	}
}
