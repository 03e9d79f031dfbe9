// Package dispatcher 把解析后的 Intent 转成对订单簿客户端的调用，并负责批量提交与确认等待。
package dispatcher

import (
	"context"
	"fmt"
	"io"

	"openbook-cli-sol/internal/chain"
	"openbook-cli-sol/internal/consts"
	"openbook-cli-sol/internal/logic/action"
	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/logic/resolver"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
)

// OrderBook 订单簿客户端
type OrderBook interface {
	Place(ctx context.Context, quoteAmount float64, side core.Side, bestOffset float64, execute bool, priceTarget float64) (action.Result, error)
	CancelOrders(ctx context.Context, execute bool) (action.Result, error)
	SettleBalance(ctx context.Context, execute bool) (action.Result, error)

	MatchOrders(ctx context.Context, limit uint16) (bool, string, error)
	CancelSettlePlace(ctx context.Context, askQuote, bidQuote, bidPrice, askPrice float64) (bool, string, error)
	CancelSettlePlaceBid(ctx context.Context, bidQuote, bidPrice float64) (bool, string, error)
	CancelSettlePlaceAsk(ctx context.Context, askQuote, askPrice float64) (bool, string, error)
	ConsumeEvents(ctx context.Context, openOrders []types.Pubkey, limit uint16) (bool, string, error)
	ConsumeEventsPermissioned(ctx context.Context, openOrders []types.Pubkey, limit uint16) (bool, string, error)

	CollectEventQueueOpenOrders(ctx context.Context, limit int) ([]types.Pubkey, error)
	FetchEventQueueStats(ctx context.Context) (core.EventQueueStats, error)
	LoadOrdersForOwner(ctx context.Context) (*core.OwnerOrders, error)
	FindOpenOrdersAccountsForOwner(ctx context.Context, owner types.Pubkey, limit int) ([]types.Pubkey, error)

	OpenOrdersKey() types.Pubkey
	Owner() types.Pubkey
	Describe() core.MarketSummary
}

// BatchSubmitter 分段提交指令批次
type BatchSubmitter interface {
	SubmitResult(ctx context.Context, res action.Result) (action.Signature, bool, error)
}

// ConfirmWaiter 等待并展示已确认交易
type ConfirmWaiter interface {
	Wait(ctx context.Context, sig action.Signature) error
}

// Dispatcher 单次线性执行，不做任何重试
type Dispatcher struct {
	book      OrderBook
	submitter BatchSubmitter
	waiter    ConfirmWaiter
	out       io.Writer
	errOut    io.Writer
}

func New(book OrderBook, submitter BatchSubmitter, waiter ConfirmWaiter, out, errOut io.Writer) *Dispatcher {
	return &Dispatcher{
		book:      book,
		submitter: submitter,
		waiter:    waiter,
		out:       out,
		errOut:    errOut,
	}
}

type eventQueueReport struct {
	core.EventQueueStats `yaml:",inline"`
	NeedsCrank           bool `yaml:"needs_crank"`
}

func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) error {
	logger.Debugf("[Dispatcher] dispatch %s: %+v", intent.Name(), intent)

	switch in := intent.(type) {
	case Info:
		return chain.RenderYAML(d.out, d.book.Describe())

	case EventQueueStatus:
		stats, err := d.book.FetchEventQueueStats(ctx)
		if err != nil {
			return err
		}
		logger.Infof("[Dispatcher] event queue: pending_events=%d head=%d seq_num=%d account_flags=0x%x needs_crank=%v",
			stats.Count, stats.Head, stats.SeqNum, stats.AccountFlags, stats.NeedsCrank())
		return chain.RenderYAML(d.out, eventQueueReport{EventQueueStats: stats, NeedsCrank: stats.NeedsCrank()})

	case Place:
		res, err := d.book.Place(ctx, in.TargetAmountQuote, in.Side, in.BestOffsetUsdc, in.Execute, in.PriceTarget)
		if err != nil {
			return err
		}
		return d.handleResult(ctx, res)

	case Cancel:
		if in.Execute {
			return d.limitedCancel(ctx)
		}
		res, err := d.book.CancelOrders(ctx, false)
		if err != nil {
			return err
		}
		return d.handleResult(ctx, res)

	case Settle:
		res, err := d.book.SettleBalance(ctx, in.Execute)
		if err != nil {
			return err
		}
		return d.handleResult(ctx, res)

	case Match:
		confirmed, sig, err := d.book.MatchOrders(ctx, in.Limit)
		return d.handleSubmitted(ctx, confirmed, sig, err)

	case CancelSettlePlace:
		confirmed, sig, err := d.book.CancelSettlePlace(ctx, in.UsdcAskTarget, in.TargetUsdcBid, in.PriceJlpUsdcBid, in.AskPriceJlpUsdc)
		return d.handleSubmitted(ctx, confirmed, sig, err)

	case CancelSettlePlaceBid:
		confirmed, sig, err := d.book.CancelSettlePlaceBid(ctx, in.TargetSizeUsdcBid, in.BidPriceJlpUsdc)
		return d.handleSubmitted(ctx, confirmed, sig, err)

	case CancelSettlePlaceAsk:
		confirmed, sig, err := d.book.CancelSettlePlaceAsk(ctx, in.TargetSizeUsdcAsk, in.AskPriceJlpUsdc)
		return d.handleSubmitted(ctx, confirmed, sig, err)

	case Consume:
		keys, err := resolver.Resolve(ctx, d.book, in.OpenOrders, int(in.Limit), d.book.OpenOrdersKey())
		if err != nil {
			return err
		}
		confirmed, sig, err := d.book.ConsumeEvents(ctx, keys, in.Limit)
		return d.handleSubmitted(ctx, confirmed, sig, err)

	case ConsumePermissioned:
		keys, err := resolver.Resolve(ctx, d.book, in.OpenOrders, int(in.Limit), d.book.OpenOrdersKey())
		if err != nil {
			return err
		}
		confirmed, sig, err := d.book.ConsumeEventsPermissioned(ctx, keys, in.Limit)
		return d.handleSubmitted(ctx, confirmed, sig, err)

	case LoadOrders:
		orders, err := d.book.LoadOrdersForOwner(ctx)
		if err != nil {
			d.reportNonFatal("Error loading orders for owner", err)
			return nil
		}
		return chain.RenderYAML(d.out, orders)

	case FindOpenOrders:
		accounts, err := d.book.FindOpenOrdersAccountsForOwner(ctx, d.book.Owner(), consts.FindOpenOrdersLimit)
		if err != nil {
			d.reportNonFatal("Error finding open orders accounts", err)
			return nil
		}
		return chain.RenderYAML(d.out, map[string][]types.Pubkey{"open_orders_accounts": accounts})

	default:
		return fmt.Errorf("unsupported intent %T", intent)
	}
}

// handleResult 签名进入确认等待；指令批次只输出不提交
func (d *Dispatcher) handleResult(ctx context.Context, res action.Result) error {
	switch r := res.(type) {
	case nil:
		logger.Infof("[Dispatcher] nothing to do")
		return nil
	case action.InstructionBatch:
		logger.Infof("[Dispatcher] got %d instructions", r.Len())
		return chain.RenderInstructions(d.out, []soltypes.Instruction(r))
	case action.Signature:
		logger.Infof("[Dispatcher] transaction successful, signature: %s", r)
		return d.waiter.Wait(ctx, r)
	default:
		return fmt.Errorf("unexpected action result %T", res)
	}
}

// handleSubmitted 处理 (confirmed, signature, err) 形式的返回；confirmed 只记录日志
func (d *Dispatcher) handleSubmitted(ctx context.Context, confirmed bool, sig string, err error) error {
	if err != nil {
		return err
	}
	logger.Infof("[Dispatcher] transaction successful, signature: %s, confirmed: %v", sig, confirmed)
	return d.waiter.Wait(ctx, action.Signature(sig))
}

// limitedCancel 先只构造撤单指令，再交给 BatchSubmitter 按上限分笔提交，最后一笔进入确认等待
func (d *Dispatcher) limitedCancel(ctx context.Context) error {
	res, err := d.book.CancelOrders(ctx, false)
	if err != nil {
		return err
	}
	sig, ok, err := d.submitter.SubmitResult(ctx, res)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	logger.Infof("[Dispatcher] transaction successful, signature: %s", sig)
	return d.waiter.Wait(ctx, sig)
}

func (d *Dispatcher) reportNonFatal(msg string, err error) {
	logger.Errorf("[Dispatcher] %s: %v", msg, err)
	fmt.Fprintf(d.errOut, "[*] %s: %v\n", msg, err)
}
