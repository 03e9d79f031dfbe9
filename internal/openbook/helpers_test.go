package openbook

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"openbook-cli-sol/internal/cache"
	"openbook-cli-sol/internal/consts"
	"openbook-cli-sol/internal/types"

	"github.com/blocto/solana-go-sdk/client"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"
	"github.com/stretchr/testify/require"
)

func newKey() types.Pubkey {
	return types.PubkeyFromPublicKey(soltypes.NewAccount().PublicKey)
}

func wrapAccount(t *testing.T, v any, extra int) []byte {
	t.Helper()
	body, err := borsh.Serialize(v)
	require.NoError(t, err)
	data := append([]byte("serum"), body...)
	data = append(data, make([]byte, extra)...)
	return append(data, []byte("padding")...)
}

func mintData(decimals uint8) []byte {
	data := make([]byte, 82)
	data[44] = decimals
	data[45] = 1
	return data
}

// validNonce 找到一个能推导出 vault signer 的 nonce
func validNonce(t *testing.T, program, market types.Pubkey) uint64 {
	t.Helper()
	for nonce := uint64(0); nonce < 255; nonce++ {
		if _, err := VaultSigner(program, market, nonce); err == nil {
			return nonce
		}
	}
	t.Fatal("no valid vault signer nonce")
	return 0
}

type fixture struct {
	program    types.Pubkey
	market     types.Pubkey
	owner      types.Pubkey
	openOrders types.Pubkey
	state      MarketState
	reader     *fakeReader
	sender     *fakeSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		program:    consts.OpenBookV1Program,
		market:     newKey(),
		owner:      newKey(),
		openOrders: newKey(),
		reader:     &fakeReader{accounts: map[string]client.AccountInfo{}},
		sender:     &fakeSender{},
	}
	f.state = MarketState{
		AccountFlags:     FlagInitialized | FlagMarket,
		OwnAddress:       f.market,
		VaultSignerNonce: validNonce(t, f.program, f.market),
		CoinMint:         newKey(),
		PcMint:           newKey(),
		CoinVault:        newKey(),
		PcVault:          newKey(),
		RequestQueue:     newKey(),
		EventQueue:       newKey(),
		Bids:             newKey(),
		Asks:             newKey(),
		CoinLotSize:      1000,
		PcLotSize:        10,
		FeeRateBps:       22,
	}
	f.setAccount(f.market, wrapAccount(t, f.state, 0))
	f.setAccount(f.state.CoinMint, mintData(6))
	f.setAccount(f.state.PcMint, mintData(6))
	return f
}

func (f *fixture) setAccount(addr types.Pubkey, data []byte) {
	f.reader.accounts[addr.String()] = client.AccountInfo{
		Owner: f.program.ToPublicKey(),
		Data:  data,
	}
}

func (f *fixture) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), f.reader, f.sender, nil, Options{
		ProgramID:  f.program,
		MarketID:   f.market,
		Owner:      f.owner,
		OpenOrders: f.openOrders,
	})
	require.NoError(t, err)
	return c
}

func orderID(priceLots, seq uint64) [16]byte {
	var id [16]byte
	binary.LittleEndian.PutUint64(id[0:8], seq)
	binary.LittleEndian.PutUint64(id[8:16], priceLots)
	return id
}

// openOrdersAccount slots: 槽位 -> (是否买单, 价格 lots)
func (f *fixture) openOrdersAccount(t *testing.T, slots map[int]bool, priceLots uint64) *OpenOrdersState {
	t.Helper()
	state := &OpenOrdersState{
		AccountFlags:   FlagInitialized | FlagOpenOrders,
		Market:         f.market,
		Owner:          f.owner,
		NativeCoinFree: 5,
		NativePcTotal:  100,
	}
	for i := range state.FreeSlotBits {
		state.FreeSlotBits[i] = 0xff
	}
	for slot, isBid := range slots {
		state.FreeSlotBits[slot/8] &^= 1 << (slot % 8)
		if isBid {
			state.IsBidBits[slot/8] |= 1 << (slot % 8)
		}
		state.Orders[slot] = orderID(priceLots, uint64(slot))
		state.ClientOrderIDs[slot] = uint64(1000 + slot)
	}
	f.setAccount(f.openOrders, wrapAccount(t, *state, 0))
	return state
}

func (f *fixture) eventQueue(t *testing.T, capacity int, head uint64, owners []types.Pubkey) {
	t.Helper()
	events := make([]Event, capacity)
	for i, owner := range owners {
		idx := (head + uint64(i)) % uint64(capacity)
		events[idx] = Event{EventFlags: eventFlagFill, Owner: owner}
	}
	body, err := borsh.Serialize(EventQueueHeader{
		AccountFlags: FlagInitialized | FlagEventQueue,
		Head:         head,
		Count:        uint64(len(owners)),
		SeqNum:       77,
	})
	require.NoError(t, err)
	for _, ev := range events {
		raw, err := borsh.Serialize(ev)
		require.NoError(t, err)
		body = append(body, raw...)
	}
	data := append([]byte("serum"), body...)
	f.setAccount(f.state.EventQueue, append(data, []byte("padding")...))
}

type fakeReader struct {
	accounts        map[string]client.AccountInfo
	programAccounts []client.ProgramAccount
	lastConfig      client.GetProgramAccountsConfig
	calls           int
	err             error
}

func (r *fakeReader) GetAccountInfo(_ context.Context, addr string) (client.AccountInfo, error) {
	r.calls++
	if r.err != nil {
		return client.AccountInfo{}, r.err
	}
	return r.accounts[addr], nil
}

func (r *fakeReader) GetMultipleAccounts(_ context.Context, addrs []string) ([]client.AccountInfo, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]client.AccountInfo, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, r.accounts[a])
	}
	return out, nil
}

func (r *fakeReader) GetProgramAccountsWithConfig(_ context.Context, _ string, cfg client.GetProgramAccountsConfig) ([]client.ProgramAccount, error) {
	r.calls++
	r.lastConfig = cfg
	if r.err != nil {
		return nil, r.err
	}
	return r.programAccounts, nil
}

type fakeSender struct {
	sent [][]soltypes.Instruction
	err  error
}

func (s *fakeSender) SubmitAndConfirm(_ context.Context, ixs []soltypes.Instruction) (bool, string, error) {
	if s.err != nil {
		return false, "", s.err
	}
	s.sent = append(s.sent, ixs)
	return true, fmt.Sprintf("sig-%d", len(s.sent)), nil
}

type fakeStore struct {
	snap  *cache.MarketSnapshot
	saved *cache.MarketSnapshot
}

func (s *fakeStore) Load(context.Context, types.Pubkey, types.Pubkey) (*cache.MarketSnapshot, error) {
	if s.snap == nil {
		return nil, errors.New("redis: connection refused")
	}
	return s.snap, nil
}

func (s *fakeStore) Save(_ context.Context, _, _ types.Pubkey, snap *cache.MarketSnapshot) error {
	s.saved = snap
	return nil
}
