package openbook

import (
	"context"
	"fmt"
	"math"

	"openbook-cli-sol/internal/logic/action"
	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/shopspring/decimal"
)

const maxMatchIterations = math.MaxUint16

// Place 以 target ∓ offset 挂限价单，数量为 quoteAmount / price。
// execute=false 只返回指令；execute=true 提交并返回签名。
func (c *Client) Place(ctx context.Context, quoteAmount float64, side core.Side, bestOffset float64, execute bool, priceTarget float64) (action.Result, error) {
	target := decimal.NewFromFloat(priceTarget)
	offset := decimal.NewFromFloat(bestOffset)

	price := target.Sub(offset)
	if side == core.SideAsk {
		price = target.Add(offset)
	}

	ix, err := c.newOrderInstruction(side, price, decimal.NewFromFloat(quoteAmount))
	if err != nil {
		return nil, err
	}
	return c.finish(ctx, []soltypes.Instruction{ix}, execute)
}

// CancelOrders 为 open orders 账户中每个挂单生成一条 CancelOrderV2；没有挂单时返回空批次
func (c *Client) CancelOrders(ctx context.Context, execute bool) (action.Result, error) {
	ixs, err := c.cancelInstructions(ctx)
	if err != nil {
		return nil, err
	}
	if execute && len(ixs) == 0 {
		logger.Infof("[OpenBook] no open orders to cancel")
		return nil, nil
	}
	return c.finish(ctx, ixs, execute)
}

func (c *Client) SettleBalance(ctx context.Context, execute bool) (action.Result, error) {
	ix, err := c.settleInstruction()
	if err != nil {
		return nil, err
	}
	return c.finish(ctx, []soltypes.Instruction{ix}, execute)
}

func (c *Client) MatchOrders(ctx context.Context, limit uint16) (bool, string, error) {
	ix, err := MatchOrdersInstruction(c.market.Accounts(), c.baseWallet, c.quoteWallet, limit)
	if err != nil {
		return false, "", err
	}
	return c.sender.SubmitAndConfirm(ctx, []soltypes.Instruction{ix})
}

// CancelSettlePlace 在一笔交易内撤掉全部挂单、结算，然后同时挂买单和卖单
func (c *Client) CancelSettlePlace(ctx context.Context, askQuote, bidQuote, bidPrice, askPrice float64) (bool, string, error) {
	return c.cancelSettlePlace(ctx, []orderLeg{
		{side: core.SideBid, quote: bidQuote, price: bidPrice},
		{side: core.SideAsk, quote: askQuote, price: askPrice},
	})
}

func (c *Client) CancelSettlePlaceBid(ctx context.Context, bidQuote, bidPrice float64) (bool, string, error) {
	return c.cancelSettlePlace(ctx, []orderLeg{{side: core.SideBid, quote: bidQuote, price: bidPrice}})
}

func (c *Client) CancelSettlePlaceAsk(ctx context.Context, askQuote, askPrice float64) (bool, string, error) {
	return c.cancelSettlePlace(ctx, []orderLeg{{side: core.SideAsk, quote: askQuote, price: askPrice}})
}

type orderLeg struct {
	side  core.Side
	quote float64
	price float64
}

func (c *Client) cancelSettlePlace(ctx context.Context, legs []orderLeg) (bool, string, error) {
	// 先校验下单参数，避免无效输入触发网络请求
	places := make([]soltypes.Instruction, 0, len(legs))
	for _, leg := range legs {
		ix, err := c.newOrderInstruction(leg.side, decimal.NewFromFloat(leg.price), decimal.NewFromFloat(leg.quote))
		if err != nil {
			return false, "", fmt.Errorf("%s leg: %w", leg.side, err)
		}
		places = append(places, ix)
	}

	ixs, err := c.cancelInstructions(ctx)
	if err != nil {
		return false, "", err
	}
	settle, err := c.settleInstruction()
	if err != nil {
		return false, "", err
	}
	ixs = append(ixs, settle)
	ixs = append(ixs, places...)

	logger.Infof("[OpenBook] cancel-settle-place: %d instructions", len(ixs))
	return c.sender.SubmitAndConfirm(ctx, ixs)
}

func (c *Client) ConsumeEvents(ctx context.Context, openOrders []types.Pubkey, limit uint16) (bool, string, error) {
	if len(openOrders) == 0 {
		return false, "", fmt.Errorf("%w: no open orders accounts to crank", types.ErrInvalidInput)
	}
	ix, err := ConsumeEventsInstruction(c.market.Accounts(), openOrders, c.baseWallet, c.quoteWallet, limit)
	if err != nil {
		return false, "", err
	}
	return c.sender.SubmitAndConfirm(ctx, []soltypes.Instruction{ix})
}

// ConsumeEventsPermissioned 以 owner 作为 crank authority
func (c *Client) ConsumeEventsPermissioned(ctx context.Context, openOrders []types.Pubkey, limit uint16) (bool, string, error) {
	if len(openOrders) == 0 {
		return false, "", fmt.Errorf("%w: no open orders accounts to crank", types.ErrInvalidInput)
	}
	if auth := c.market.Authorities; auth == nil {
		logger.Warnf("[OpenBook] market %s is not permissioned, consume-permissioned will likely fail", c.market.Address)
	} else if auth.ConsumeEventsAuthority != c.owner {
		logger.Warnf("[OpenBook] owner %s is not the consume events authority %s", c.owner, auth.ConsumeEventsAuthority)
	}

	ix, err := ConsumeEventsPermissionedInstruction(c.market.Accounts(), openOrders, c.owner, limit)
	if err != nil {
		return false, "", err
	}
	return c.sender.SubmitAndConfirm(ctx, []soltypes.Instruction{ix})
}

// LoadOrdersForOwner 读取 open orders 账户中所有占用的槽位
func (c *Client) LoadOrdersForOwner(ctx context.Context) (*core.OwnerOrders, error) {
	oo, err := c.requireOpenOrders()
	if err != nil {
		return nil, err
	}
	state, err := c.loadOpenOrders(ctx, oo)
	if err != nil {
		return nil, err
	}

	result := &core.OwnerOrders{
		Account: core.OpenOrdersBalances{
			Address:         oo,
			Owner:           state.Owner,
			NativeCoinFree:  state.NativeCoinFree,
			NativeCoinTotal: state.NativeCoinTotal,
			NativePcFree:    state.NativePcFree,
			NativePcTotal:   state.NativePcTotal,
		},
		Orders: make([]core.Order, 0),
	}
	for slot := 0; slot < openOrdersMaxSlot; slot++ {
		if !state.SlotUsed(slot) {
			continue
		}
		id := state.Orders[slot]
		priceLots := OrderPriceLots(id)
		result.Orders = append(result.Orders, core.Order{
			Slot:          uint8(slot),
			OrderID:       FormatOrderID(id),
			Side:          slotSide(state, slot),
			PriceLots:     priceLots,
			Price:         c.market.Lots.LotsToPrice(priceLots).InexactFloat64(),
			ClientOrderID: state.ClientOrderIDs[slot],
		})
	}
	return result, nil
}

func slotSide(state *OpenOrdersState, slot int) core.Side {
	if state.SlotIsBid(slot) {
		return core.SideBid
	}
	return core.SideAsk
}

func (c *Client) loadOpenOrders(ctx context.Context, addr types.Pubkey) (*OpenOrdersState, error) {
	data, err := c.getAccountData(ctx, addr, "open orders")
	if err != nil {
		return nil, err
	}
	state, err := DecodeOpenOrders(data)
	if err != nil {
		return nil, fmt.Errorf("open orders %s: %w", addr, err)
	}
	if state.Market != c.market.Address {
		return nil, fmt.Errorf("open orders %s belongs to market %s, not %s", addr, state.Market, c.market.Address)
	}
	return state, nil
}

func (c *Client) cancelInstructions(ctx context.Context) ([]soltypes.Instruction, error) {
	oo, err := c.requireOpenOrders()
	if err != nil {
		return nil, err
	}
	state, err := c.loadOpenOrders(ctx, oo)
	if err != nil {
		return nil, err
	}

	accounts := c.market.Accounts()
	ixs := make([]soltypes.Instruction, 0)
	for slot := 0; slot < openOrdersMaxSlot; slot++ {
		if !state.SlotUsed(slot) {
			continue
		}
		ix, err := CancelOrderV2Instruction(accounts, oo, c.owner, slotSide(state, slot), state.Orders[slot])
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, ix)
	}
	logger.Debugf("[OpenBook] %d open orders to cancel in %s", len(ixs), oo)
	return ixs, nil
}

func (c *Client) settleInstruction() (soltypes.Instruction, error) {
	oo, err := c.requireOpenOrders()
	if err != nil {
		return soltypes.Instruction{}, err
	}
	return SettleFundsInstruction(c.market.Accounts(), oo, c.owner, c.baseWallet, c.quoteWallet)
}

func (c *Client) newOrderInstruction(side core.Side, price, quoteAmount decimal.Decimal) (soltypes.Instruction, error) {
	if !quoteAmount.IsPositive() {
		return soltypes.Instruction{}, fmt.Errorf("%w: quote amount must be positive, got %s", types.ErrInvalidInput, quoteAmount)
	}
	if !price.IsPositive() {
		return soltypes.Instruction{}, fmt.Errorf("%w: price must be positive, got %s", types.ErrInvalidInput, price)
	}
	oo, err := c.requireOpenOrders()
	if err != nil {
		return soltypes.Instruction{}, err
	}

	size := quoteAmount.Div(price)
	lots, err := c.market.Lots.ToOrderLots(price, size)
	if err != nil {
		return soltypes.Instruction{}, err
	}

	payer := c.quoteWallet
	if side == core.SideAsk {
		payer = c.baseWallet
	}
	logger.Debugf("[OpenBook] new order: side=%s price=%s size=%s price_lots=%d coin_lots=%d max_pc=%d",
		side, price, size.StringFixed(int32(c.market.Lots.CoinDecimals)), lots.PriceLots, lots.CoinLots, lots.MaxNativePc)

	return NewOrderV3Instruction(c.market.Accounts(), oo, payer, c.owner, NewOrderParams{
		Side:              side,
		LimitPriceLots:    lots.PriceLots,
		MaxCoinLots:       lots.CoinLots,
		MaxNativePc:       lots.MaxNativePc,
		SelfTradeBehavior: SelfTradeDecrementTake,
		OrderType:         OrderTypeLimit,
		ClientOrderID:     c.nextClientOrderID(),
		Limit:             maxMatchIterations,
		MaxTs:             math.MaxInt64,
	})
}

func (c *Client) finish(ctx context.Context, ixs []soltypes.Instruction, execute bool) (action.Result, error) {
	if !execute {
		return action.InstructionBatch(ixs), nil
	}
	_, sig, err := c.sender.SubmitAndConfirm(ctx, ixs)
	if err != nil {
		return nil, err
	}
	return action.Signature(sig), nil
}
