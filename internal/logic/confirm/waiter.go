// Package confirm 在交易确认后等待固定时长，再查询并输出交易详情。
package confirm

import (
	"context"
	"io"
	"time"

	"openbook-cli-sol/internal/chain"
	"openbook-cli-sol/internal/logic/action"
	"openbook-cli-sol/internal/pkg/logger"
)

type Fetcher interface {
	FetchTransaction(ctx context.Context, sig string) (*chain.TransactionDetail, error)
}

// SleepFunc 可被 ctx 打断的等待
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Waiter 等待 crank 处理完成后展示交易；查询失败只记录日志
type Waiter struct {
	fetcher Fetcher
	delay   time.Duration
	out     io.Writer
	sleep   SleepFunc
}

func NewWaiter(fetcher Fetcher, delay time.Duration, out io.Writer) *Waiter {
	return &Waiter{
		fetcher: fetcher,
		delay:   delay,
		out:     out,
		sleep:   sleepCtx,
	}
}

// WithSleep 替换等待实现
func (w *Waiter) WithSleep(fn SleepFunc) *Waiter {
	w.sleep = fn
	return w
}

// Wait 只有 ctx 被取消时返回 error
func (w *Waiter) Wait(ctx context.Context, sig action.Signature) error {
	logger.Infof("[ConfirmWaiter] waiting %v for crank before fetching %s", w.delay, sig)
	if err := w.sleep(ctx, w.delay); err != nil {
		return err
	}

	detail, err := w.fetcher.FetchTransaction(ctx, sig.String())
	if err != nil {
		logger.Errorf("[ConfirmWaiter] unable to get confirmed transaction details: %v", err)
		return nil
	}
	if err := chain.RenderTransaction(w.out, detail); err != nil {
		logger.Errorf("[ConfirmWaiter] render transaction %s: %v", sig, err)
	}
	return nil
}
