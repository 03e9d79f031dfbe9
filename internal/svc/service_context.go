package svc

import (
	"context"
	"fmt"
	"io"

	"openbook-cli-sol/internal/cache"
	"openbook-cli-sol/internal/chain"
	"openbook-cli-sol/internal/config"
	"openbook-cli-sol/internal/logic/batch"
	"openbook-cli-sol/internal/logic/confirm"
	"openbook-cli-sol/internal/logic/dispatcher"
	"openbook-cli-sol/internal/openbook"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"

	"github.com/blocto/solana-go-sdk/client"
)

// ServiceContext 单次命令执行所需的全部资源
type ServiceContext struct {
	Config     config.CliConfig
	Ledger     *chain.Ledger
	MarketDB   *cache.MarketCache
	Book       *openbook.Client
	Dispatcher *dispatcher.Dispatcher
}

// NewServiceContext 依次初始化 RPC、签名账户、缓存、订单簿客户端和分发器
func NewServiceContext(ctx context.Context, c config.CliConfig, out, errOut io.Writer) (*ServiceContext, error) {
	// 1. 本地参数校验，失败时不发起任何网络请求
	programID, err := types.TryPubkeyFromBase58(c.MarketConf.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: program id: %v", types.ErrInvalidInput, err)
	}
	marketID, err := types.TryPubkeyFromBase58(c.MarketConf.MarketID)
	if err != nil {
		return nil, fmt.Errorf("%w: market id: %v", types.ErrInvalidInput, err)
	}
	openOrders, err := optionalPubkey("wallet.open_orders", c.WalletConf.OpenOrders)
	if err != nil {
		return nil, err
	}
	baseWallet, err := optionalPubkey("wallet.base_wallet", c.WalletConf.BaseWallet)
	if err != nil {
		return nil, err
	}
	quoteWallet, err := optionalPubkey("wallet.quote_wallet", c.WalletConf.QuoteWallet)
	if err != nil {
		return nil, err
	}

	// 2. 签名账户
	signer, err := chain.LoadKeypair(c.WalletConf.KeypairPath)
	if err != nil {
		return nil, err
	}

	// 3. RPC 与交易提交
	rpcClient := client.NewClient(c.RpcConf.Endpoint)
	ledger := chain.NewLedger(rpcClient, signer, chain.LedgerOption{
		Commitment:     c.RpcConf.Commitment,
		ConfirmTimeout: c.RpcConf.ConfirmTimeout(),
		PollInterval:   c.RpcConf.PollInterval(),
		RequestTimeout: c.RpcConf.RequestTimeout(),
	})

	// 4. 市场元数据缓存（可选）
	marketDB := cache.NewMarketCacheFromAddr(c.CacheConf.RedisAddr, c.CacheConf.TTL())
	var store openbook.MarketStore
	if marketDB != nil {
		store = marketDB
	}

	// 5. 订单簿客户端
	book, err := openbook.NewClient(ctx, rpcClient, ledger, store, openbook.Options{
		ProgramID:   programID,
		MarketID:    marketID,
		Owner:       types.PubkeyFromPublicKey(signer.PublicKey),
		OpenOrders:  openOrders,
		BaseWallet:  baseWallet,
		QuoteWallet: quoteWallet,
	})
	if err != nil {
		_ = marketDB.Close()
		return nil, err
	}

	// 6. 分发器
	submitter := batch.NewSubmitter(ledger, c.DispatchConf.MaxCancelOrders, c.DispatchConf.MaxCancelOrdersPerTx)
	waiter := confirm.NewWaiter(ledger, c.DispatchConf.SettleDelay(), out)

	svcCtx := &ServiceContext{
		Config:     c,
		Ledger:     ledger,
		MarketDB:   marketDB,
		Book:       book,
		Dispatcher: dispatcher.New(book, submitter, waiter, out, errOut),
	}
	logger.Infof("[ServiceContext] initialized: rpc=%s market=%s", c.RpcConf.Endpoint, marketID)
	return svcCtx, nil
}

func optionalPubkey(name, s string) (types.Pubkey, error) {
	if s == "" {
		return types.Pubkey{}, nil
	}
	p, err := types.TryPubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("%w: %s: %v", types.ErrInvalidInput, name, err)
	}
	return p, nil
}

// Close 关闭服务上下文中的资源
func (s *ServiceContext) Close() {
	if err := s.MarketDB.Close(); err != nil {
		logger.Warnf("[ServiceContext] close market cache: %v", err)
	}
}
