package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openbook-cli-sol/internal/pkg/logger"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

var (
	ErrTxFailed       = errors.New("transaction failed on chain")
	ErrTxNotFound     = errors.New("transaction not found")
	ErrConfirmTimeout = errors.New("transaction confirmation timeout")
)

type LedgerOption struct {
	Commitment     string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

// Ledger 负责签名、发送、确认以及查询交易，签名账户固定为 owner
type Ledger struct {
	client         *client.Client
	signer         soltypes.Account
	commitment     rpc.Commitment
	confirmTimeout time.Duration
	pollInterval   time.Duration
	requestTimeout time.Duration
}

func NewLedger(c *client.Client, signer soltypes.Account, opt LedgerOption) *Ledger {
	return &Ledger{
		client:         c,
		signer:         signer,
		commitment:     parseCommitment(opt.Commitment),
		confirmTimeout: opt.ConfirmTimeout,
		pollInterval:   opt.PollInterval,
		requestTimeout: opt.RequestTimeout,
	}
}

func (l *Ledger) Signer() soltypes.Account {
	return l.signer
}

// SubmitAndConfirm 以 owner 作为 fee payer 和唯一签名者发送一笔交易，并轮询直到达到目标 commitment
func (l *Ledger) SubmitAndConfirm(ctx context.Context, instructions []soltypes.Instruction) (bool, string, error) {
	if len(instructions) == 0 {
		return false, "", errors.New("no instructions to submit")
	}

	sig, err := l.send(ctx, instructions)
	if err != nil {
		return false, "", err
	}
	logger.Debugf("[Ledger] sent tx %s with %d instructions", sig, len(instructions))

	confirmed, err := l.waitConfirmed(ctx, sig)
	if err != nil {
		return false, sig, err
	}
	return confirmed, sig, nil
}

func (l *Ledger) send(ctx context.Context, instructions []soltypes.Instruction) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, l.requestTimeout)
	defer cancel()

	latest, err := l.client.GetLatestBlockhash(reqCtx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := soltypes.NewTransaction(soltypes.NewTransactionParam{
		Message: soltypes.NewMessage(soltypes.NewMessageParam{
			FeePayer:        l.signer.PublicKey,
			RecentBlockhash: latest.Blockhash,
			Instructions:    instructions,
		}),
		Signers: []soltypes.Account{l.signer},
	})
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	sig, err := l.client.SendTransaction(reqCtx, tx)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

func (l *Ledger) waitConfirmed(ctx context.Context, sig string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		status, err := l.client.GetSignatureStatus(ctx, sig)
		if err != nil {
			// 节点暂时不可用时继续轮询，直到超时
			logger.Debugf("[Ledger] get signature status %s: %v", sig, err)
		} else {
			done, err := evalStatus(status, l.commitment)
			if err != nil {
				return false, fmt.Errorf("%w: %s: %v", ErrTxFailed, sig, err)
			}
			if done {
				return true, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return false, fmt.Errorf("%w after %v: %s", ErrConfirmTimeout, l.confirmTimeout, sig)
			}
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// FetchTransaction 查询已确认交易详情
func (l *Ledger) FetchTransaction(ctx context.Context, sig string) (*TransactionDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, l.requestTimeout)
	defer cancel()

	tx, err := l.client.GetTransaction(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", sig, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, sig)
	}
	return newTransactionDetail(sig, tx), nil
}

// evalStatus 判断签名状态是否已达到目标 commitment；链上执行失败返回 error
func evalStatus(status *rpc.SignatureStatus, want rpc.Commitment) (bool, error) {
	if status == nil {
		return false, nil
	}
	if status.Err != nil {
		return false, fmt.Errorf("%v", status.Err)
	}
	if status.ConfirmationStatus == nil {
		return false, nil
	}
	return commitmentRank(*status.ConfirmationStatus) >= commitmentRank(want), nil
}

func commitmentRank(c rpc.Commitment) int {
	switch c {
	case rpc.CommitmentProcessed:
		return 1
	case rpc.CommitmentConfirmed:
		return 2
	case rpc.CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

func parseCommitment(s string) rpc.Commitment {
	switch rpc.Commitment(s) {
	case rpc.CommitmentProcessed, rpc.CommitmentFinalized:
		return rpc.Commitment(s)
	default:
		return rpc.CommitmentConfirmed
	}
}
