package chain

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keypairJSON(t *testing.T, acc soltypes.Account) []byte {
	t.Helper()
	ints := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)
	return data
}

func TestParseKeypair(t *testing.T) {
	acc := soltypes.NewAccount()

	got, err := ParseKeypair(keypairJSON(t, acc))
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey, got.PublicKey)

	_, err = ParseKeypair([]byte(`[1,2,3]`))
	assert.ErrorContains(t, err, "invalid keypair length")

	_, err = ParseKeypair([]byte(`not json`))
	assert.ErrorContains(t, err, "decode keypair json")

	bad := make([]int, 64)
	bad[10] = 256
	data, _ := json.Marshal(bad)
	_, err = ParseKeypair(data)
	assert.ErrorContains(t, err, "invalid keypair byte at 10")
}

func TestLoadKeypair(t *testing.T) {
	acc := soltypes.NewAccount()
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, keypairJSON(t, acc), 0o600))

	got, err := LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey, got.PublicKey)

	_, err = LoadKeypair(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read keypair")

	_, err = LoadKeypair("")
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/.config/solana/id.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config/solana/id.json"), got)

	got, err = expandHome("/abs/id.json")
	require.NoError(t, err)
	assert.Equal(t, "/abs/id.json", got)
}

func TestEvalStatus(t *testing.T) {
	confirmed := rpc.CommitmentConfirmed
	processed := rpc.CommitmentProcessed
	finalized := rpc.CommitmentFinalized

	done, err := evalStatus(nil, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = evalStatus(&rpc.SignatureStatus{ConfirmationStatus: &processed}, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = evalStatus(&rpc.SignatureStatus{ConfirmationStatus: &confirmed}, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = evalStatus(&rpc.SignatureStatus{ConfirmationStatus: &finalized}, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = evalStatus(&rpc.SignatureStatus{ConfirmationStatus: &confirmed}, rpc.CommitmentFinalized)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = evalStatus(&rpc.SignatureStatus{
		ConfirmationStatus: &confirmed,
		Err:                map[string]any{"InstructionError": []any{0, "Custom"}},
	}, rpc.CommitmentConfirmed)
	assert.Error(t, err)
}

func TestParseCommitment(t *testing.T) {
	assert.Equal(t, rpc.CommitmentFinalized, parseCommitment("finalized"))
	assert.Equal(t, rpc.CommitmentProcessed, parseCommitment("processed"))
	assert.Equal(t, rpc.CommitmentConfirmed, parseCommitment(""))
	assert.Equal(t, rpc.CommitmentConfirmed, parseCommitment("bogus"))
}

func TestNewTransactionDetail(t *testing.T) {
	payer := common.PublicKeyFromString("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	program := common.PublicKeyFromString("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
	blockTime := int64(1700000000)
	units := uint64(12345)

	tx := &client.Transaction{
		Slot:      42,
		BlockTime: &blockTime,
		Transaction: soltypes.Transaction{
			Signatures: []soltypes.Signature{[]byte{1, 2, 3}},
			Message: soltypes.Message{
				Accounts:        []common.PublicKey{payer, program},
				RecentBlockHash: "hash",
				Instructions: []soltypes.CompiledInstruction{
					{ProgramIDIndex: 1, Accounts: []int{0, 5}, Data: []byte{9}},
				},
			},
		},
		Meta: &client.TransactionMeta{
			Fee:                  5000,
			PreBalances:          []int64{100, 10},
			PostBalances:         []int64{90, 10},
			LogMessages:          []string{"Program log: ok"},
			ComputeUnitsConsumed: &units,
		},
	}

	d := newTransactionDetail("sig", tx)
	assert.Equal(t, "sig", d.Signature)
	assert.Equal(t, uint64(42), d.Slot)
	assert.Equal(t, "2023-11-14T22:13:20Z", d.BlockTime)
	assert.Equal(t, "ok", d.Status)
	assert.Equal(t, uint64(5000), d.Fee)
	assert.Equal(t, uint64(12345), d.ComputeUnits)
	assert.Equal(t, []string{base58.Encode([]byte{1, 2, 3})}, d.Signers)
	assert.Equal(t, []int64{-10, 0}, d.BalanceChange)
	require.Len(t, d.Instructions, 1)
	assert.Equal(t, program.ToBase58(), d.Instructions[0].Program)
	assert.Equal(t, []string{payer.ToBase58(), "#5"}, d.Instructions[0].Accounts)

	tx.Meta.Err = "InstructionError"
	assert.Contains(t, newTransactionDetail("sig", tx).Status, "failed")
}

func TestRenderInstructions(t *testing.T) {
	program := common.PublicKeyFromString("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
	owner := common.PublicKeyFromString("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	var buf bytes.Buffer
	err := RenderInstructions(&buf, []soltypes.Instruction{{
		ProgramID: program,
		Accounts:  []soltypes.AccountMeta{{PubKey: owner, IsSigner: true}},
		Data:      []byte{0, 5, 0, 0, 0},
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "program: "+program.ToBase58())
	assert.Contains(t, out, "pubkey: "+owner.ToBase58())
	assert.Contains(t, out, "signer: true")
	assert.Contains(t, out, "writable: false")
}

func TestRenderTransaction_Nil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTransaction(&buf, nil))
	assert.Empty(t, buf.String())
}
