package openbook

import (
	"fmt"

	"openbook-cli-sol/internal/types"

	"github.com/shopspring/decimal"
)

// LotSizes 市场的 lot 参数与两种 token 的精度
type LotSizes struct {
	CoinLotSize  uint64
	PcLotSize    uint64
	CoinDecimals uint8
	PcDecimals   uint8
}

// OrderLots 换算后的下单数量
type OrderLots struct {
	PriceLots   uint64
	CoinLots    uint64
	MaxNativePc uint64
}

func pow10(n uint8) decimal.Decimal {
	return decimal.New(1, int32(n))
}

// PriceToLots price * 10^pcDec * coinLot / (10^coinDec * pcLot)，向下取整
func (l LotSizes) PriceToLots(price decimal.Decimal) uint64 {
	num := price.Mul(pow10(l.PcDecimals)).Mul(decimal.NewFromInt(int64(l.CoinLotSize)))
	den := pow10(l.CoinDecimals).Mul(decimal.NewFromInt(int64(l.PcLotSize)))
	return floorUint(num.Div(den))
}

// SizeToLots size * 10^coinDec / coinLot，向下取整
func (l LotSizes) SizeToLots(size decimal.Decimal) uint64 {
	num := size.Mul(pow10(l.CoinDecimals))
	return floorUint(num.Div(decimal.NewFromInt(int64(l.CoinLotSize))))
}

// LotsToPrice PriceToLots 的逆运算
func (l LotSizes) LotsToPrice(priceLots uint64) decimal.Decimal {
	num := decimal.NewFromInt(int64(priceLots)).
		Mul(decimal.NewFromInt(int64(l.PcLotSize))).
		Mul(pow10(l.CoinDecimals))
	den := decimal.NewFromInt(int64(l.CoinLotSize)).Mul(pow10(l.PcDecimals))
	return num.Div(den)
}

// ToOrderLots 按价格和 base 数量换算；价格或数量为 0 lot 时返回 ErrInvalidInput
func (l LotSizes) ToOrderLots(price, size decimal.Decimal) (OrderLots, error) {
	if l.CoinLotSize == 0 || l.PcLotSize == 0 {
		return OrderLots{}, fmt.Errorf("market lot size is zero: coin=%d pc=%d", l.CoinLotSize, l.PcLotSize)
	}
	if !price.IsPositive() {
		return OrderLots{}, fmt.Errorf("%w: price must be positive, got %s", types.ErrInvalidInput, price)
	}
	if !size.IsPositive() {
		return OrderLots{}, fmt.Errorf("%w: size must be positive, got %s", types.ErrInvalidInput, size)
	}

	priceLots := l.PriceToLots(price)
	if priceLots == 0 {
		return OrderLots{}, fmt.Errorf("%w: price %s is below one price lot", types.ErrInvalidInput, price)
	}
	coinLots := l.SizeToLots(size)
	if coinLots == 0 {
		return OrderLots{}, fmt.Errorf("%w: size %s is below one base lot", types.ErrInvalidInput, size)
	}

	maxPc := decimal.NewFromInt(int64(priceLots)).
		Mul(decimal.NewFromInt(int64(coinLots))).
		Mul(decimal.NewFromInt(int64(l.PcLotSize)))
	return OrderLots{
		PriceLots:   priceLots,
		CoinLots:    coinLots,
		MaxNativePc: floorUint(maxPc),
	}, nil
}

func floorUint(d decimal.Decimal) uint64 {
	d = d.Floor()
	if d.IsNegative() {
		return 0
	}
	return d.BigInt().Uint64()
}
