package core

import (
	"fmt"
	"strings"

	"openbook-cli-sol/internal/types"
)

// Side 订单方向
type Side uint32

const (
	SideBid Side = 0
	SideAsk Side = 1
)

func (s Side) String() string {
	if s == SideAsk {
		return "ask"
	}
	return "bid"
}

func (s Side) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// ParseSide 只接受 bid / ask（不区分大小写）
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bid", "buy":
		return SideBid, nil
	case "ask", "sell":
		return SideAsk, nil
	default:
		return SideBid, fmt.Errorf("%w: side must be bid or ask, got %q", types.ErrInvalidInput, s)
	}
}

// EventQueueStats 事件队列头部信息
type EventQueueStats struct {
	Count        uint64 `yaml:"pending_events"`
	Head         uint64 `yaml:"head"`
	SeqNum       uint64 `yaml:"seq_num"`
	AccountFlags uint64 `yaml:"account_flags"`
}

// NeedsCrank 队列中有未消费事件时需要 crank
func (s EventQueueStats) NeedsCrank() bool {
	return s.Count > 0
}

// Order open orders 账户中的一个挂单槽位
type Order struct {
	Slot          uint8   `yaml:"slot"`
	OrderID       string  `yaml:"order_id"`
	Side          Side    `yaml:"side"`
	PriceLots     uint64  `yaml:"price_lots"`
	Price         float64 `yaml:"price"`
	ClientOrderID uint64  `yaml:"client_order_id"`
}

// OpenOrdersBalances open orders 账户内的资金
type OpenOrdersBalances struct {
	Address         types.Pubkey `yaml:"address"`
	Owner           types.Pubkey `yaml:"owner"`
	NativeCoinFree  uint64       `yaml:"native_coin_free"`
	NativeCoinTotal uint64       `yaml:"native_coin_total"`
	NativePcFree    uint64       `yaml:"native_pc_free"`
	NativePcTotal   uint64       `yaml:"native_pc_total"`
}

// OwnerOrders LoadOrders 的结果
type OwnerOrders struct {
	Account OpenOrdersBalances `yaml:"open_orders"`
	Orders  []Order            `yaml:"orders"`
}

// MarketSummary info 命令输出
type MarketSummary struct {
	ProgramID     types.Pubkey `yaml:"program_id"`
	Market        types.Pubkey `yaml:"market"`
	Owner         types.Pubkey `yaml:"owner"`
	OpenOrders    types.Pubkey `yaml:"open_orders"`
	BaseMint      types.Pubkey `yaml:"base_mint"`
	QuoteMint     types.Pubkey `yaml:"quote_mint"`
	BaseDecimals  uint8        `yaml:"base_decimals"`
	QuoteDecimals uint8        `yaml:"quote_decimals"`
	BaseLotSize   uint64       `yaml:"base_lot_size"`
	QuoteLotSize  uint64       `yaml:"quote_lot_size"`
	BaseVault     types.Pubkey `yaml:"base_vault"`
	QuoteVault    types.Pubkey `yaml:"quote_vault"`
	BaseWallet    types.Pubkey `yaml:"base_wallet"`
	QuoteWallet   types.Pubkey `yaml:"quote_wallet"`
	EventQueue    types.Pubkey `yaml:"event_queue"`
	RequestQueue  types.Pubkey `yaml:"request_queue"`
	Bids          types.Pubkey `yaml:"bids"`
	Asks          types.Pubkey `yaml:"asks"`
	FeeRateBps    uint64       `yaml:"fee_rate_bps"`
	Permissioned  bool         `yaml:"permissioned"`
}
