package dispatcher

import (
	"fmt"
	"math"

	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/logic/resolver"
	"openbook-cli-sol/internal/types"
)

// Intent 单次进程运行要执行的一个操作，解析后不可变
type Intent interface {
	Name() string
	// Validate 只做本地校验，必须在任何网络请求之前调用
	Validate() error
}

type (
	Info             struct{}
	EventQueueStatus struct{}
	LoadOrders       struct{}
	FindOpenOrders   struct{}
)

type Place struct {
	TargetAmountQuote float64
	Side              core.Side
	BestOffsetUsdc    float64
	Execute           bool
	PriceTarget       float64
}

type Cancel struct {
	Execute bool
}

type Settle struct {
	Execute bool
}

type Match struct {
	Limit uint16
}

type CancelSettlePlace struct {
	UsdcAskTarget   float64
	TargetUsdcBid   float64
	PriceJlpUsdcBid float64
	AskPriceJlpUsdc float64
}

type CancelSettlePlaceBid struct {
	TargetSizeUsdcBid float64
	BidPriceJlpUsdc   float64
}

type CancelSettlePlaceAsk struct {
	TargetSizeUsdcAsk float64
	AskPriceJlpUsdc   float64
}

type Consume struct {
	Limit      uint16
	OpenOrders []string
}

type ConsumePermissioned struct {
	Limit      uint16
	OpenOrders []string
}

func (Info) Name() string                 { return "info" }
func (EventQueueStatus) Name() string     { return "event-queue" }
func (LoadOrders) Name() string           { return "load-orders" }
func (FindOpenOrders) Name() string       { return "find-open-orders" }
func (Place) Name() string                { return "place" }
func (Cancel) Name() string               { return "cancel" }
func (Settle) Name() string               { return "settle" }
func (Match) Name() string                { return "match" }
func (CancelSettlePlace) Name() string    { return "cancel-settle-place" }
func (CancelSettlePlaceBid) Name() string { return "cancel-settle-place-bid" }
func (CancelSettlePlaceAsk) Name() string { return "cancel-settle-place-ask" }
func (Consume) Name() string              { return "consume" }
func (ConsumePermissioned) Name() string  { return "consume-permissioned" }

func (Info) Validate() error             { return nil }
func (EventQueueStatus) Validate() error { return nil }
func (LoadOrders) Validate() error       { return nil }
func (FindOpenOrders) Validate() error   { return nil }
func (Cancel) Validate() error           { return nil }
func (Settle) Validate() error           { return nil }
func (Match) Validate() error            { return nil }

func (p Place) Validate() error {
	if p.Side != core.SideBid && p.Side != core.SideAsk {
		return fmt.Errorf("%w: unknown side %d", types.ErrInvalidInput, p.Side)
	}
	return checkFinite(map[string]float64{
		"target-amount-quote": p.TargetAmountQuote,
		"best-offset-usdc":    p.BestOffsetUsdc,
		"price-target":        p.PriceTarget,
	})
}

func (c CancelSettlePlace) Validate() error {
	return checkFinite(map[string]float64{
		"usdc-ask-target":    c.UsdcAskTarget,
		"target-usdc-bid":    c.TargetUsdcBid,
		"price-jlp-usdc-bid": c.PriceJlpUsdcBid,
		"ask-price-jlp-usdc": c.AskPriceJlpUsdc,
	})
}

func (c CancelSettlePlaceBid) Validate() error {
	return checkFinite(map[string]float64{
		"target-size-usdc-bid": c.TargetSizeUsdcBid,
		"bid-price-jlp-usdc":   c.BidPriceJlpUsdc,
	})
}

func (c CancelSettlePlaceAsk) Validate() error {
	return checkFinite(map[string]float64{
		"target-size-usdc-ask": c.TargetSizeUsdcAsk,
		"ask-price-jlp-usdc":   c.AskPriceJlpUsdc,
	})
}

func (c Consume) Validate() error {
	_, err := resolver.ParseExplicit(c.OpenOrders)
	return err
}

func (c ConsumePermissioned) Validate() error {
	_, err := resolver.ParseExplicit(c.OpenOrders)
	return err
}

func checkFinite(values map[string]float64) error {
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a finite number, got %v", types.ErrInvalidInput, name, v)
		}
	}
	return nil
}
