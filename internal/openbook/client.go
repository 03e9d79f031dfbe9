// Package openbook 是 OpenBook v1 / Serum v3 市场的链上客户端：读取账户、构造指令、提交交易。
package openbook

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

// AccountReader *client.Client 的只读子集
type AccountReader interface {
	GetAccountInfo(ctx context.Context, base58Addr string) (client.AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, base58Addrs []string) ([]client.AccountInfo, error)
	GetProgramAccountsWithConfig(ctx context.Context, base58Addr string, cfg client.GetProgramAccountsConfig) ([]client.ProgramAccount, error)
}

// TxSender 签名、发送并等待确认
type TxSender interface {
	SubmitAndConfirm(ctx context.Context, instructions []soltypes.Instruction) (bool, string, error)
}

// Options 客户端构造参数；OpenOrders / BaseWallet / QuoteWallet 为零值时自动推导
type Options struct {
	ProgramID   types.Pubkey
	MarketID    types.Pubkey
	Owner       types.Pubkey
	OpenOrders  types.Pubkey
	BaseWallet  types.Pubkey
	QuoteWallet types.Pubkey
}

type Client struct {
	reader AccountReader
	sender TxSender
	market *Market

	owner       types.Pubkey
	openOrders  types.Pubkey
	baseWallet  types.Pubkey
	quoteWallet types.Pubkey

	clientOrderID atomic.Uint64
}

func NewClient(ctx context.Context, reader AccountReader, sender TxSender, store MarketStore, opts Options) (*Client, error) {
	if opts.Owner.IsZero() {
		return nil, fmt.Errorf("%w: owner is required", types.ErrInvalidInput)
	}

	market, err := LoadMarket(ctx, reader, store, opts.ProgramID, opts.MarketID)
	if err != nil {
		return nil, err
	}

	c := &Client{
		reader:      reader,
		sender:      sender,
		market:      market,
		owner:       opts.Owner,
		openOrders:  opts.OpenOrders,
		baseWallet:  opts.BaseWallet,
		quoteWallet: opts.QuoteWallet,
	}
	c.clientOrderID.Store(uint64(time.Now().UnixMilli()))

	if c.baseWallet.IsZero() {
		if c.baseWallet, err = associatedTokenAddress(c.owner, market.State.CoinMint); err != nil {
			return nil, err
		}
	}
	if c.quoteWallet.IsZero() {
		if c.quoteWallet, err = associatedTokenAddress(c.owner, market.State.PcMint); err != nil {
			return nil, err
		}
	}

	if c.openOrders.IsZero() {
		found, err := c.FindOpenOrdersAccountsForOwner(ctx, c.owner, 1)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			c.openOrders = found[0]
		} else {
			logger.Warnf("[OpenBook] no open orders account for owner %s on market %s", c.owner, market.Address)
		}
	}

	logger.Infof("[OpenBook] market=%s program=%s owner=%s open_orders=%s",
		market.Address, market.ProgramID, c.owner, c.openOrders)
	return c, nil
}

func associatedTokenAddress(owner, mint types.Pubkey) (types.Pubkey, error) {
	ata, _, err := common.FindAssociatedTokenAddress(owner.ToPublicKey(), mint.ToPublicKey())
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("derive associated token account for mint %s: %w", mint, err)
	}
	return types.PubkeyFromPublicKey(ata), nil
}

func (c *Client) Market() *Market {
	return c.market
}

func (c *Client) Owner() types.Pubkey {
	return c.owner
}

// OpenOrdersKey 当前 owner 在该市场的 open orders 账户，可能为零值
func (c *Client) OpenOrdersKey() types.Pubkey {
	return c.openOrders
}

func (c *Client) requireOpenOrders() (types.Pubkey, error) {
	if c.openOrders.IsZero() {
		return types.Pubkey{}, fmt.Errorf("%w: owner %s, market %s", types.ErrNoOpenOrders, c.owner, c.market.Address)
	}
	return c.openOrders, nil
}

func (c *Client) nextClientOrderID() uint64 {
	return c.clientOrderID.Add(1)
}

// Describe info 命令输出的市场概要
func (c *Client) Describe() core.MarketSummary {
	m := c.market
	return core.MarketSummary{
		ProgramID:     m.ProgramID,
		Market:        m.Address,
		Owner:         c.owner,
		OpenOrders:    c.openOrders,
		BaseMint:      m.State.CoinMint,
		QuoteMint:     m.State.PcMint,
		BaseDecimals:  m.Lots.CoinDecimals,
		QuoteDecimals: m.Lots.PcDecimals,
		BaseLotSize:   m.State.CoinLotSize,
		QuoteLotSize:  m.State.PcLotSize,
		BaseVault:     m.State.CoinVault,
		QuoteVault:    m.State.PcVault,
		BaseWallet:    c.baseWallet,
		QuoteWallet:   c.quoteWallet,
		EventQueue:    m.State.EventQueue,
		RequestQueue:  m.State.RequestQueue,
		Bids:          m.State.Bids,
		Asks:          m.State.Asks,
		FeeRateBps:    m.State.FeeRateBps,
		Permissioned:  m.Permissioned(),
	}
}

func (c *Client) getAccountData(ctx context.Context, addr types.Pubkey, what string) ([]byte, error) {
	info, err := c.reader.GetAccountInfo(ctx, addr.String())
	if err != nil {
		return nil, fmt.Errorf("get %s account %s: %w", what, addr, err)
	}
	if len(info.Data) == 0 {
		return nil, fmt.Errorf("%s account %s not found", what, addr)
	}
	return info.Data, nil
}
