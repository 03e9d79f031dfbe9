package openbook

import (
	"encoding/binary"
	"fmt"

	"openbook-cli-sol/internal/consts"
	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"
)

// 指令编号（u32 LE，前置 1 字节版本号 0）
const (
	tagMatchOrders               uint32 = 2
	tagConsumeEvents             uint32 = 3
	tagSettleFunds               uint32 = 5
	tagNewOrderV3                uint32 = 10
	tagCancelOrderV2             uint32 = 11
	tagConsumeEventsPermissioned uint32 = 17
)

type SelfTradeBehavior uint32

const (
	SelfTradeDecrementTake SelfTradeBehavior = iota
	SelfTradeCancelProvide
	SelfTradeAbortTransaction
)

type OrderType uint32

const (
	OrderTypeLimit OrderType = iota
	OrderTypeImmediateOrCancel
	OrderTypePostOnly
)

type newOrderV3Args struct {
	Side                        uint32
	LimitPrice                  uint64
	MaxCoinQty                  uint64
	MaxNativePcQtyIncludingFees uint64
	SelfTradeBehavior           uint32
	OrderType                   uint32
	ClientOrderID               uint64
	Limit                       uint16
	MaxTs                       int64
}

type cancelOrderV2Args struct {
	Side    uint32
	OrderID [16]byte
}

type limitArgs struct {
	Limit uint16
}

// MarketAccounts 构造指令所需的市场相关账户
type MarketAccounts struct {
	ProgramID    types.Pubkey
	Market       types.Pubkey
	RequestQueue types.Pubkey
	EventQueue   types.Pubkey
	Bids         types.Pubkey
	Asks         types.Pubkey
	CoinVault    types.Pubkey
	PcVault      types.Pubkey
	VaultSigner  types.Pubkey
}

// NewOrderParams 已换算为 lots 的下单参数
type NewOrderParams struct {
	Side              core.Side
	LimitPriceLots    uint64
	MaxCoinLots       uint64
	MaxNativePc       uint64
	SelfTradeBehavior SelfTradeBehavior
	OrderType         OrderType
	ClientOrderID     uint64
	Limit             uint16
	MaxTs             int64
}

func encodeInstruction(tag uint32, args any) ([]byte, error) {
	data := make([]byte, 5, 64)
	binary.LittleEndian.PutUint32(data[1:], tag)
	if args == nil {
		return data, nil
	}
	payload, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("encode instruction %d: %w", tag, err)
	}
	return append(data, payload...), nil
}

func writable(p types.Pubkey) soltypes.AccountMeta {
	return soltypes.AccountMeta{PubKey: p.ToPublicKey(), IsWritable: true}
}

func readonly(p types.Pubkey) soltypes.AccountMeta {
	return soltypes.AccountMeta{PubKey: p.ToPublicKey()}
}

func signer(p types.Pubkey) soltypes.AccountMeta {
	return soltypes.AccountMeta{PubKey: p.ToPublicKey(), IsSigner: true}
}

// NewOrderV3Instruction payer: 买单为 quote 账户，卖单为 base 账户
func NewOrderV3Instruction(m *MarketAccounts, openOrders, payer, owner types.Pubkey, p NewOrderParams) (soltypes.Instruction, error) {
	data, err := encodeInstruction(tagNewOrderV3, newOrderV3Args{
		Side:                        uint32(p.Side),
		LimitPrice:                  p.LimitPriceLots,
		MaxCoinQty:                  p.MaxCoinLots,
		MaxNativePcQtyIncludingFees: p.MaxNativePc,
		SelfTradeBehavior:           uint32(p.SelfTradeBehavior),
		OrderType:                   uint32(p.OrderType),
		ClientOrderID:               p.ClientOrderID,
		Limit:                       p.Limit,
		MaxTs:                       p.MaxTs,
	})
	if err != nil {
		return soltypes.Instruction{}, err
	}
	return soltypes.Instruction{
		ProgramID: m.ProgramID.ToPublicKey(),
		Accounts: []soltypes.AccountMeta{
			writable(m.Market),
			writable(openOrders),
			writable(m.RequestQueue),
			writable(m.EventQueue),
			writable(m.Bids),
			writable(m.Asks),
			writable(payer),
			signer(owner),
			writable(m.CoinVault),
			writable(m.PcVault),
			readonly(consts.TokenProgram),
			readonly(consts.SysvarRent),
		},
		Data: data,
	}, nil
}

func CancelOrderV2Instruction(m *MarketAccounts, openOrders, owner types.Pubkey, side core.Side, orderID [16]byte) (soltypes.Instruction, error) {
	data, err := encodeInstruction(tagCancelOrderV2, cancelOrderV2Args{Side: uint32(side), OrderID: orderID})
	if err != nil {
		return soltypes.Instruction{}, err
	}
	return soltypes.Instruction{
		ProgramID: m.ProgramID.ToPublicKey(),
		Accounts: []soltypes.AccountMeta{
			writable(m.Market),
			writable(m.Bids),
			writable(m.Asks),
			writable(openOrders),
			signer(owner),
			writable(m.EventQueue),
		},
		Data: data,
	}, nil
}

func SettleFundsInstruction(m *MarketAccounts, openOrders, owner, coinWallet, pcWallet types.Pubkey) (soltypes.Instruction, error) {
	data, err := encodeInstruction(tagSettleFunds, nil)
	if err != nil {
		return soltypes.Instruction{}, err
	}
	return soltypes.Instruction{
		ProgramID: m.ProgramID.ToPublicKey(),
		Accounts: []soltypes.AccountMeta{
			writable(m.Market),
			writable(openOrders),
			signer(owner),
			writable(m.CoinVault),
			writable(m.PcVault),
			writable(coinWallet),
			writable(pcWallet),
			readonly(m.VaultSigner),
			readonly(consts.TokenProgram),
		},
		Data: data,
	}, nil
}

// MatchOrdersInstruction 手续费接收账户在 v3 程序中已不使用，传入用户自己的 token 账户
func MatchOrdersInstruction(m *MarketAccounts, coinFee, pcFee types.Pubkey, limit uint16) (soltypes.Instruction, error) {
	data, err := encodeInstruction(tagMatchOrders, limitArgs{Limit: limit})
	if err != nil {
		return soltypes.Instruction{}, err
	}
	return soltypes.Instruction{
		ProgramID: m.ProgramID.ToPublicKey(),
		Accounts: []soltypes.AccountMeta{
			writable(m.Market),
			writable(m.RequestQueue),
			writable(m.EventQueue),
			writable(m.Bids),
			writable(m.Asks),
			writable(coinFee),
			writable(pcFee),
		},
		Data: data,
	}, nil
}

func ConsumeEventsInstruction(m *MarketAccounts, openOrders []types.Pubkey, coinFee, pcFee types.Pubkey, limit uint16) (soltypes.Instruction, error) {
	data, err := encodeInstruction(tagConsumeEvents, limitArgs{Limit: limit})
	if err != nil {
		return soltypes.Instruction{}, err
	}
	accounts := make([]soltypes.AccountMeta, 0, len(openOrders)+4)
	for _, oo := range openOrders {
		accounts = append(accounts, writable(oo))
	}
	accounts = append(accounts,
		writable(m.Market),
		writable(m.EventQueue),
		writable(coinFee),
		writable(pcFee),
	)
	return soltypes.Instruction{
		ProgramID: m.ProgramID.ToPublicKey(),
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// ConsumeEventsPermissionedInstruction crankAuthority 必须是市场的 consume events authority
func ConsumeEventsPermissionedInstruction(m *MarketAccounts, openOrders []types.Pubkey, crankAuthority types.Pubkey, limit uint16) (soltypes.Instruction, error) {
	data, err := encodeInstruction(tagConsumeEventsPermissioned, limitArgs{Limit: limit})
	if err != nil {
		return soltypes.Instruction{}, err
	}
	accounts := make([]soltypes.AccountMeta, 0, len(openOrders)+3)
	for _, oo := range openOrders {
		accounts = append(accounts, writable(oo))
	}
	accounts = append(accounts,
		writable(m.Market),
		writable(m.EventQueue),
		signer(crankAuthority),
	)
	return soltypes.Instruction{
		ProgramID: m.ProgramID.ToPublicKey(),
		Accounts:  accounts,
		Data:      data,
	}, nil
}
