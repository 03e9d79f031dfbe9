package types

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"
)

type Pubkey [32]byte

func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

func (p Pubkey) Equals(other Pubkey) bool {
	return p == other
}

func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// ToPublicKey 转换为 SDK 的 PublicKey（同为 32 字节）
func (p Pubkey) ToPublicKey() common.PublicKey {
	return common.PublicKey(p)
}

func PubkeyFromPublicKey(pk common.PublicKey) Pubkey {
	return Pubkey(pk)
}

// MarshalYAML 以 base58 形式输出，便于终端查看
func (p Pubkey) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// TryPubkeyFromBase58 解析 base58 字符串为 Pubkey，失败时返回 error（用于不信任输入路径）
func TryPubkeyFromBase58(s string) (Pubkey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("failed to decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != 32 {
		return Pubkey{}, fmt.Errorf("invalid pubkey length: got %d, want 32, input=%q", len(data), s)
	}
	var p Pubkey
	copy(p[:], data)
	return p, nil
}

// PubkeyFromBase58 用于常量地址，解析失败直接 panic
func PubkeyFromBase58(s string) Pubkey {
	p, err := TryPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return p
}

// TryPubkeysFromBase58 逐个解析，任意一个失败则整体失败，错误中带上出错的输入
func TryPubkeysFromBase58(strs []string) ([]Pubkey, error) {
	result := make([]Pubkey, 0, len(strs))
	for _, s := range strs {
		p, err := TryPubkeyFromBase58(s)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func PubkeysToStrings(keys []Pubkey) []string {
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k.String())
	}
	return result
}
