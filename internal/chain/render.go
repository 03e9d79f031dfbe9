package chain

import (
	"fmt"
	"io"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// AccountMetaView 未签名指令中的账户
type AccountMetaView struct {
	Pubkey   string `yaml:"pubkey"`
	Signer   bool   `yaml:"signer"`
	Writable bool   `yaml:"writable"`
}

// InstructionView 未签名指令的可读视图，execute=false 时输出
type InstructionView struct {
	Program  string            `yaml:"program"`
	Accounts []AccountMetaView `yaml:"accounts"`
	Data     string            `yaml:"data"`
}

func RenderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func RenderTransaction(w io.Writer, detail *TransactionDetail) error {
	if detail == nil {
		return nil
	}
	return RenderYAML(w, detail)
}

func RenderInstructions(w io.Writer, instructions []soltypes.Instruction) error {
	return RenderYAML(w, NewInstructionViews(instructions))
}

func NewInstructionViews(instructions []soltypes.Instruction) []InstructionView {
	views := make([]InstructionView, 0, len(instructions))
	for _, ix := range instructions {
		v := InstructionView{
			Program:  ix.ProgramID.ToBase58(),
			Accounts: make([]AccountMetaView, 0, len(ix.Accounts)),
			Data:     base58.Encode(ix.Data),
		}
		for _, m := range ix.Accounts {
			v.Accounts = append(v.Accounts, AccountMetaView{
				Pubkey:   m.PubKey.ToBase58(),
				Signer:   m.IsSigner,
				Writable: m.IsWritable,
			})
		}
		views = append(views, v)
	}
	return views
}
