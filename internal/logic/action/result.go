// Package action 定义下单类调用的返回值：要么是未签名的指令批次，要么是已确认交易的签名。
package action

import (
	soltypes "github.com/blocto/solana-go-sdk/types"
)

// Result 只有 InstructionBatch 和 Signature 两种实现。
// nil 表示调用成功但没有任何产出。
type Result interface {
	isResult()
}

// InstructionBatch 有序的未签名指令，可以为空（表示无事可做）
type InstructionBatch []soltypes.Instruction

// Signature 已确认交易的 base58 签名
type Signature string

func (InstructionBatch) isResult() {}
func (Signature) isResult()        {}

func (b InstructionBatch) Len() int {
	return len(b)
}

func (s Signature) String() string {
	return string(s)
}
