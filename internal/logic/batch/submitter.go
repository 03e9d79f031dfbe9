package batch

import (
	"context"
	"fmt"

	"openbook-cli-sol/internal/logic/action"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/utils"

	soltypes "github.com/blocto/solana-go-sdk/types"
)

// Sender 签名、发送并等待单笔交易确认
type Sender interface {
	SubmitAndConfirm(ctx context.Context, instructions []soltypes.Instruction) (bool, string, error)
}

// Submitter 把一批指令拆成多笔交易顺序提交。
//   - maxInstructions: 单次调用最多处理的指令数，超出部分直接丢弃（不重试）
//   - maxPerTx: 每笔交易最多包含的指令数
//
// 每段必须确认后才发送下一段；任一段失败立即返回，已上链的段不会回滚。
type Submitter struct {
	sender          Sender
	maxInstructions int
	maxPerTx        int
}

func NewSubmitter(sender Sender, maxInstructions, maxPerTx int) *Submitter {
	if maxInstructions < 0 {
		maxInstructions = 0
	}
	if maxPerTx < 1 {
		maxPerTx = 1
	}
	return &Submitter{
		sender:          sender,
		maxInstructions: maxInstructions,
		maxPerTx:        maxPerTx,
	}
}

// SubmitResult 处理下单类调用的原始返回：
// nil 或签名（说明没有可提交的指令）直接返回 ok=false
func (s *Submitter) SubmitResult(ctx context.Context, res action.Result) (action.Signature, bool, error) {
	batch, isBatch := res.(action.InstructionBatch)
	if !isBatch {
		if res != nil {
			logger.Warnf("[BatchSubmitter] expected instruction batch, got %T, skip", res)
		}
		return "", false, nil
	}
	return s.Submit(ctx, batch)
}

// Submit 返回最后一笔成功交易的签名；没有任何提交时 ok=false
func (s *Submitter) Submit(ctx context.Context, instructions []soltypes.Instruction) (action.Signature, bool, error) {
	if len(instructions) == 0 {
		logger.Infof("[BatchSubmitter] no instructions, nothing to submit")
		return "", false, nil
	}

	total := len(instructions)
	instructions = utils.Truncate(instructions, s.maxInstructions)
	if dropped := total - len(instructions); dropped > 0 {
		logger.Warnf("[BatchSubmitter] %d instructions exceed cap %d, dropped", dropped, s.maxInstructions)
	}

	chunks := utils.Chunk(instructions, s.maxPerTx)
	var last action.Signature
	for i, chunk := range chunks {
		confirmed, sig, err := s.sender.SubmitAndConfirm(ctx, chunk)
		if err != nil {
			return "", false, fmt.Errorf("submit chunk %d/%d (%d instructions): %w", i+1, len(chunks), len(chunk), err)
		}
		logger.Infof("[BatchSubmitter] chunk %d/%d submitted, instructions=%d, confirmed=%v, signature=%s",
			i+1, len(chunks), len(chunk), confirmed, sig)
		last = action.Signature(sig)
	}

	if len(chunks) == 0 {
		return "", false, nil
	}
	return last, true, nil
}
