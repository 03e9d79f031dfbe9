package openbook

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"openbook-cli-sol/internal/types"

	"github.com/near/borsh-go"
)

// 所有 DEX 账户的数据都被 "serum" 前缀和 "padding" 后缀包裹
var (
	accountHead = []byte("serum")
	accountTail = []byte("padding")
)

const (
	marketStateSize   = 376
	marketStateV2Size = marketStateSize + 3*32 + 992
	eventQueueHeader  = 32
	eventSize         = 88
	openOrdersSize    = 3216
	openOrdersMaxSlot = 128

	// OpenOrdersAccountSize getProgramAccounts 的 dataSize 过滤条件
	OpenOrdersAccountSize = len("serum") + openOrdersSize + len("padding")

	// open orders 账户中 market / owner 字段在完整账户数据中的偏移
	openOrdersMarketOffset = 13
	openOrdersOwnerOffset  = 45
)

// 账户标志位
const (
	FlagInitialized       uint64 = 1 << 0
	FlagMarket            uint64 = 1 << 1
	FlagOpenOrders        uint64 = 1 << 2
	FlagRequestQueue      uint64 = 1 << 3
	FlagEventQueue        uint64 = 1 << 4
	FlagBids              uint64 = 1 << 5
	FlagAsks              uint64 = 1 << 6
	FlagDisabled          uint64 = 1 << 7
	FlagClosed            uint64 = 1 << 8
	FlagPermissioned      uint64 = 1 << 9
	FlagCrankAuthRequired uint64 = 1 << 10
)

// 事件标志位
const (
	eventFlagFill  uint8 = 1 << 0
	eventFlagOut   uint8 = 1 << 1
	eventFlagBid   uint8 = 1 << 2
	eventFlagMaker uint8 = 1 << 3
)

// MarketState 市场账户（v1 布局）
type MarketState struct {
	AccountFlags           uint64
	OwnAddress             types.Pubkey
	VaultSignerNonce       uint64
	CoinMint               types.Pubkey
	PcMint                 types.Pubkey
	CoinVault              types.Pubkey
	CoinDepositsTotal      uint64
	CoinFeesAccrued        uint64
	PcVault                types.Pubkey
	PcDepositsTotal        uint64
	PcFeesAccrued          uint64
	PcDustThreshold        uint64
	RequestQueue           types.Pubkey
	EventQueue             types.Pubkey
	Bids                   types.Pubkey
	Asks                   types.Pubkey
	CoinLotSize            uint64
	PcLotSize              uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
}

// MarketAuthorities 许可市场（v2 布局）额外的三个权限地址
type MarketAuthorities struct {
	OpenOrdersAuthority    types.Pubkey
	PruneAuthority         types.Pubkey
	ConsumeEventsAuthority types.Pubkey
}

// EventQueueHeader 事件队列头
type EventQueueHeader struct {
	AccountFlags uint64
	Head         uint64
	Count        uint64
	SeqNum       uint64
}

// Event 事件队列中的一个事件，Owner 为 open orders 账户地址
type Event struct {
	EventFlags        uint8
	OwnerSlot         uint8
	FeeTier           uint8
	Padding           [5]uint8
	NativeQtyReleased uint64
	NativeQtyPaid     uint64
	NativeFeeOrRebate uint64
	OrderID           [16]byte
	Owner             types.Pubkey
	ClientOrderID     uint64
}

func (e *Event) IsFill() bool {
	return e.EventFlags&eventFlagFill != 0
}

func (e *Event) IsBid() bool {
	return e.EventFlags&eventFlagBid != 0
}

func (e *Event) IsMaker() bool {
	return e.EventFlags&eventFlagMaker != 0
}

// OpenOrdersState open orders 账户
type OpenOrdersState struct {
	AccountFlags           uint64
	Market                 types.Pubkey
	Owner                  types.Pubkey
	NativeCoinFree         uint64
	NativeCoinTotal        uint64
	NativePcFree           uint64
	NativePcTotal          uint64
	FreeSlotBits           [16]byte
	IsBidBits              [16]byte
	Orders                 [openOrdersMaxSlot][16]byte
	ClientOrderIDs         [openOrdersMaxSlot]uint64
	ReferrerRebatesAccrued uint64
}

// SlotUsed freeSlotBits 中对应位为 0 表示该槽位有挂单
func (o *OpenOrdersState) SlotUsed(slot int) bool {
	return !bitAt(o.FreeSlotBits, slot)
}

func (o *OpenOrdersState) SlotIsBid(slot int) bool {
	return bitAt(o.IsBidBits, slot)
}

// bitAt 按 u128 小端序读取第 i 位
func bitAt(bits [16]byte, i int) bool {
	return bits[i/8]&(1<<(uint(i)%8)) != 0
}

// OrderPriceLots order id 的高 64 位是价格（lots）
func OrderPriceLots(orderID [16]byte) uint64 {
	return binary.LittleEndian.Uint64(orderID[8:16])
}

// FormatOrderID 以 u128 十进制形式输出
func FormatOrderID(orderID [16]byte) string {
	be := make([]byte, len(orderID))
	for i, b := range orderID {
		be[len(orderID)-1-i] = b
	}
	return new(big.Int).SetBytes(be).String()
}

// unwrapAccount 校验并去掉 "serum" / "padding" 包裹，返回的 body 至少有 size 字节
func unwrapAccount(data []byte, size int) ([]byte, error) {
	minLen := len(accountHead) + size + len(accountTail)
	if len(data) < minLen {
		return nil, fmt.Errorf("account data too short: got %d, want >= %d", len(data), minLen)
	}
	if !bytes.Equal(data[:len(accountHead)], accountHead) {
		return nil, fmt.Errorf("missing account head padding")
	}
	if !bytes.Equal(data[len(data)-len(accountTail):], accountTail) {
		return nil, fmt.Errorf("missing account tail padding")
	}
	return data[len(accountHead) : len(data)-len(accountTail)], nil
}

// DecodeMarket 解析市场账户；许可市场额外返回权限地址
func DecodeMarket(data []byte) (*MarketState, *MarketAuthorities, error) {
	body, err := unwrapAccount(data, marketStateSize)
	if err != nil {
		return nil, nil, fmt.Errorf("decode market: %w", err)
	}

	var state MarketState
	if err := borsh.Deserialize(&state, body[:marketStateSize]); err != nil {
		return nil, nil, fmt.Errorf("decode market: %w", err)
	}
	if err := checkFlags(state.AccountFlags, FlagInitialized|FlagMarket); err != nil {
		return nil, nil, fmt.Errorf("decode market: %w", err)
	}

	if state.AccountFlags&FlagPermissioned == 0 || len(body) < marketStateV2Size {
		return &state, nil, nil
	}
	var auth MarketAuthorities
	if err := borsh.Deserialize(&auth, body[marketStateSize:marketStateSize+3*32]); err != nil {
		return nil, nil, fmt.Errorf("decode market authorities: %w", err)
	}
	return &state, &auth, nil
}

// DecodeEventQueue 解析事件队列头与环形缓冲区，返回的事件按队列顺序排列（最多 Count 个）
func DecodeEventQueue(data []byte) (*EventQueueHeader, []Event, error) {
	body, err := unwrapAccount(data, eventQueueHeader)
	if err != nil {
		return nil, nil, fmt.Errorf("decode event queue: %w", err)
	}

	var header EventQueueHeader
	if err := borsh.Deserialize(&header, body[:eventQueueHeader]); err != nil {
		return nil, nil, fmt.Errorf("decode event queue header: %w", err)
	}
	if err := checkFlags(header.AccountFlags, FlagInitialized|FlagEventQueue); err != nil {
		return nil, nil, fmt.Errorf("decode event queue: %w", err)
	}

	ring := body[eventQueueHeader:]
	capacity := uint64(len(ring) / eventSize)
	if capacity == 0 {
		return &header, nil, nil
	}
	if header.Count > capacity {
		return nil, nil, fmt.Errorf("event queue count %d exceeds capacity %d", header.Count, capacity)
	}

	events := make([]Event, 0, header.Count)
	for i := uint64(0); i < header.Count; i++ {
		idx := (header.Head + i) % capacity
		raw := ring[idx*eventSize : (idx+1)*eventSize]
		var ev Event
		if err := borsh.Deserialize(&ev, raw); err != nil {
			return nil, nil, fmt.Errorf("decode event %d: %w", idx, err)
		}
		events = append(events, ev)
	}
	return &header, events, nil
}

func DecodeOpenOrders(data []byte) (*OpenOrdersState, error) {
	body, err := unwrapAccount(data, openOrdersSize)
	if err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	var state OpenOrdersState
	if err := borsh.Deserialize(&state, body[:openOrdersSize]); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	if err := checkFlags(state.AccountFlags, FlagInitialized|FlagOpenOrders); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	return &state, nil
}

func checkFlags(flags, want uint64) error {
	if flags&want != want {
		return fmt.Errorf("unexpected account flags 0x%x, want 0x%x", flags, want)
	}
	if flags&FlagClosed != 0 {
		return fmt.Errorf("account is closed (flags 0x%x)", flags)
	}
	return nil
}
