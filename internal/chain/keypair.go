package chain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	soltypes "github.com/blocto/solana-go-sdk/types"
)

// LoadKeypair 读取 solana-keygen 生成的 JSON keypair 文件（64 个 0~255 的整数）
func LoadKeypair(path string) (soltypes.Account, error) {
	if path == "" {
		return soltypes.Account{}, fmt.Errorf("keypair path is empty, set KEY or wallet.keypair_path")
	}
	path, err := expandHome(path)
	if err != nil {
		return soltypes.Account{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return soltypes.Account{}, fmt.Errorf("read keypair %s: %w", path, err)
	}
	return ParseKeypair(data)
}

func ParseKeypair(data []byte) (soltypes.Account, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return soltypes.Account{}, fmt.Errorf("decode keypair json: %w", err)
	}
	if len(ints) != 64 {
		return soltypes.Account{}, fmt.Errorf("invalid keypair length: got %d, want 64", len(ints))
	}

	key := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return soltypes.Account{}, fmt.Errorf("invalid keypair byte at %d: %d", i, v)
		}
		key[i] = byte(v)
	}

	account, err := soltypes.AccountFromBytes(key)
	if err != nil {
		return soltypes.Account{}, fmt.Errorf("load keypair: %w", err)
	}
	return account, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
