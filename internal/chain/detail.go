package chain

import (
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/mr-tron/base58"
)

// TransactionDetail 已确认交易的可读视图
type TransactionDetail struct {
	Signature     string              `yaml:"signature"`
	Slot          uint64              `yaml:"slot"`
	BlockTime     string              `yaml:"block_time,omitempty"`
	Status        string              `yaml:"status"`
	Fee           uint64              `yaml:"fee"`
	ComputeUnits  uint64              `yaml:"compute_units,omitempty"`
	RecentHash    string              `yaml:"recent_blockhash"`
	Signers       []string            `yaml:"signatures"`
	AccountKeys   []string            `yaml:"account_keys"`
	Instructions  []InstructionDetail `yaml:"instructions"`
	LogMessages   []string            `yaml:"log_messages,omitempty"`
	BalanceChange []int64             `yaml:"balance_changes,omitempty"`
}

type InstructionDetail struct {
	Program  string   `yaml:"program"`
	Accounts []string `yaml:"accounts"`
	Data     string   `yaml:"data"`
}

func newTransactionDetail(signature string, tx *client.Transaction) *TransactionDetail {
	d := &TransactionDetail{
		Signature:  signature,
		Slot:       tx.Slot,
		Status:     "ok",
		RecentHash: tx.Transaction.Message.RecentBlockHash,
	}
	if tx.BlockTime != nil {
		d.BlockTime = time.Unix(*tx.BlockTime, 0).UTC().Format(time.RFC3339)
	}

	for _, sig := range tx.Transaction.Signatures {
		d.Signers = append(d.Signers, base58.Encode(sig))
	}

	keys := make([]string, 0, len(tx.Transaction.Message.Accounts))
	for _, k := range tx.Transaction.Message.Accounts {
		keys = append(keys, k.ToBase58())
	}
	d.AccountKeys = keys

	for _, ix := range tx.Transaction.Message.Instructions {
		detail := InstructionDetail{
			Program: accountAt(keys, ix.ProgramIDIndex),
			Data:    base58.Encode(ix.Data),
		}
		for _, idx := range ix.Accounts {
			detail.Accounts = append(detail.Accounts, accountAt(keys, idx))
		}
		d.Instructions = append(d.Instructions, detail)
	}

	if meta := tx.Meta; meta != nil {
		d.Fee = meta.Fee
		if meta.Err != nil {
			d.Status = fmt.Sprintf("failed: %v", meta.Err)
		}
		if meta.ComputeUnitsConsumed != nil {
			d.ComputeUnits = *meta.ComputeUnitsConsumed
		}
		d.LogMessages = meta.LogMessages
		if len(meta.PreBalances) == len(meta.PostBalances) {
			for i := range meta.PreBalances {
				d.BalanceChange = append(d.BalanceChange, meta.PostBalances[i]-meta.PreBalances[i])
			}
		}
	}
	return d
}

// accountAt v0 交易可能引用 lookup table 中的地址，超出静态账户列表时只输出下标
func accountAt(keys []string, idx int) string {
	if idx >= 0 && idx < len(keys) {
		return keys[idx]
	}
	return fmt.Sprintf("#%d", idx)
}
