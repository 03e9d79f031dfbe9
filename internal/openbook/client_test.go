package openbook

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"openbook-cli-sol/internal/cache"
	"openbook-cli-sol/internal/logic/action"
	"openbook-cli-sol/internal/logic/core"
	"openbook-cli-sol/internal/types"

	"github.com/blocto/solana-go-sdk/client"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitPriceOf(t *testing.T, ix soltypes.Instruction) uint64 {
	t.Helper()
	require.Len(t, ix.Data, 59)
	return binary.LittleEndian.Uint64(ix.Data[9:17])
}

func TestNewClient(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	m := c.Market()
	assert.Equal(t, f.market, m.Address)
	assert.Equal(t, uint8(6), m.Lots.CoinDecimals)
	assert.False(t, m.Permissioned())

	signer, err := VaultSigner(f.program, f.market, f.state.VaultSignerNonce)
	require.NoError(t, err)
	assert.Equal(t, signer, m.VaultSigner)

	summary := c.Describe()
	assert.Equal(t, f.openOrders, summary.OpenOrders)
	assert.Equal(t, f.state.CoinMint, summary.BaseMint)
	assert.False(t, summary.BaseWallet.IsZero())
	assert.NotEqual(t, summary.BaseWallet, summary.QuoteWallet)
}

func TestNewClient_WrongProgram(t *testing.T) {
	f := newFixture(t)
	info := f.reader.accounts[f.market.String()]
	info.Owner = newKey().ToPublicKey()
	f.reader.accounts[f.market.String()] = info

	_, err := NewClient(context.Background(), f.reader, f.sender, nil, Options{
		ProgramID: f.program, MarketID: f.market, Owner: f.owner, OpenOrders: f.openOrders,
	})
	assert.ErrorContains(t, err, "not by program")
}

func TestNewClient_DiscoversOpenOrders(t *testing.T) {
	f := newFixture(t)
	found := newKey()
	f.reader.programAccounts = []client.ProgramAccount{{Pubkey: found.ToPublicKey()}}

	c, err := NewClient(context.Background(), f.reader, f.sender, nil, Options{
		ProgramID: f.program, MarketID: f.market, Owner: f.owner,
	})
	require.NoError(t, err)
	assert.Equal(t, found, c.OpenOrdersKey())

	filters := f.reader.lastConfig.Filters
	require.Len(t, filters, 3)
	assert.Equal(t, uint64(OpenOrdersAccountSize), filters[0].DataSize)
	assert.Equal(t, uint64(13), filters[1].MemCmp.Offset)
	assert.Equal(t, f.market.String(), filters[1].MemCmp.Bytes)
	assert.Equal(t, uint64(45), filters[2].MemCmp.Offset)
	assert.Equal(t, f.owner.String(), filters[2].MemCmp.Bytes)
}

func TestNewClient_MarketCache(t *testing.T) {
	f := newFixture(t)

	// 缓存不可用时回退到 RPC 并回写
	store := &fakeStore{}
	_, err := NewClient(context.Background(), f.reader, f.sender, store, Options{
		ProgramID: f.program, MarketID: f.market, Owner: f.owner, OpenOrders: f.openOrders,
	})
	require.NoError(t, err)
	require.NotNil(t, store.saved)
	assert.Equal(t, uint8(6), store.saved.PcDecimals)

	// 命中缓存时不读取市场账户
	f.reader.calls = 0
	f.reader.err = errors.New("rpc down")
	store = &fakeStore{snap: &cache.MarketSnapshot{Data: store.saved.Data, CoinDecimals: 9, PcDecimals: 6, CachedAt: 1}}
	c, err := NewClient(context.Background(), f.reader, f.sender, store, Options{
		ProgramID: f.program, MarketID: f.market, Owner: f.owner, OpenOrders: f.openOrders,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.reader.calls)
	assert.Equal(t, uint8(9), c.Market().Lots.CoinDecimals)
}

func TestPlace_BuildOnly(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	res, err := c.Place(context.Background(), 10, core.SideBid, 0.5, false, 3)
	require.NoError(t, err)
	batch, ok := res.(action.InstructionBatch)
	require.True(t, ok)
	require.Len(t, batch, 1)
	// 买单价格 = 3 - 0.5
	assert.Equal(t, uint64(250), limitPriceOf(t, batch[0]))
	assert.Empty(t, f.sender.sent)

	res, err = c.Place(context.Background(), 10, core.SideAsk, 0.5, false, 2)
	require.NoError(t, err)
	batch = res.(action.InstructionBatch)
	// 卖单价格 = 2 + 0.5
	assert.Equal(t, uint64(250), limitPriceOf(t, batch[0]))
	assert.Equal(t, uint32(core.SideAsk), binary.LittleEndian.Uint32(batch[0].Data[5:9]))
}

func TestPlace_Execute(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	res, err := c.Place(context.Background(), 10, core.SideBid, 0, true, 2.5)
	require.NoError(t, err)
	assert.Equal(t, action.Signature("sig-1"), res)
	require.Len(t, f.sender.sent, 1)
	assert.Len(t, f.sender.sent[0], 1)
}

func TestPlace_InvalidPrice(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	calls := f.reader.calls

	_, err := c.Place(context.Background(), 10, core.SideBid, 3, true, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = c.Place(context.Background(), 0, core.SideAsk, 0, true, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = c.Place(context.Background(), 0.000001, core.SideAsk, 0, true, 2)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	assert.Empty(t, f.sender.sent)
	assert.Equal(t, calls, f.reader.calls)
}

func TestCancelOrders(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	f.openOrdersAccount(t, map[int]bool{2: true, 5: false, 70: true}, 250)

	res, err := c.CancelOrders(context.Background(), false)
	require.NoError(t, err)
	batch := res.(action.InstructionBatch)
	require.Len(t, batch, 3)
	// 按槽位顺序
	assert.Equal(t, uint32(core.SideBid), binary.LittleEndian.Uint32(batch[0].Data[5:9]))
	assert.Equal(t, uint32(core.SideAsk), binary.LittleEndian.Uint32(batch[1].Data[5:9]))
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(batch[1].Data[9:17]))
	assert.Empty(t, f.sender.sent)

	res, err = c.CancelOrders(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, action.Signature("sig-1"), res)
}

func TestCancelOrders_Empty(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	f.openOrdersAccount(t, nil, 0)

	res, err := c.CancelOrders(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.(action.InstructionBatch).Len())

	res, err = c.CancelOrders(context.Background(), true)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, f.sender.sent)
}

func TestCancelOrders_NoOpenOrdersAccount(t *testing.T) {
	f := newFixture(t)
	c, err := NewClient(context.Background(), f.reader, f.sender, nil, Options{
		ProgramID: f.program, MarketID: f.market, Owner: f.owner,
	})
	require.NoError(t, err)
	assert.True(t, c.OpenOrdersKey().IsZero())

	_, err = c.CancelOrders(context.Background(), false)
	assert.ErrorIs(t, err, types.ErrNoOpenOrders)
}

func TestSettleBalance(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	res, err := c.SettleBalance(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, res.(action.InstructionBatch), 1)

	res, err = c.SettleBalance(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, action.Signature("sig-1"), res)
}

func TestCancelSettlePlace(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	f.openOrdersAccount(t, map[int]bool{0: true}, 250)

	ok, sig, err := c.CancelSettlePlace(context.Background(), 10, 10, 2.4, 2.6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sig-1", sig)
	require.Len(t, f.sender.sent, 1)
	ixs := f.sender.sent[0]
	require.Len(t, ixs, 4)
	assertHeader(t, ixs[0].Data, tagCancelOrderV2)
	assertHeader(t, ixs[1].Data, tagSettleFunds)
	assert.Equal(t, uint64(240), limitPriceOf(t, ixs[2]))
	assert.Equal(t, uint64(260), limitPriceOf(t, ixs[3]))

	_, _, err = c.CancelSettlePlaceBid(context.Background(), 10, 2.4)
	require.NoError(t, err)
	assert.Len(t, f.sender.sent[1], 3)

	_, _, err = c.CancelSettlePlaceAsk(context.Background(), -1, 2.6)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Len(t, f.sender.sent, 2)
}

func TestMatchAndConsume(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	oos := []types.Pubkey{newKey(), newKey()}

	_, sig, err := c.MatchOrders(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "sig-1", sig)

	_, sig, err = c.ConsumeEvents(context.Background(), oos, 5)
	require.NoError(t, err)
	assert.Equal(t, "sig-2", sig)
	assert.Equal(t, oos[0].ToPublicKey(), f.sender.sent[1][0].Accounts[0].PubKey)

	_, sig, err = c.ConsumeEventsPermissioned(context.Background(), oos, 5)
	require.NoError(t, err)
	assert.Equal(t, "sig-3", sig)
	perm := f.sender.sent[2][0]
	assert.Equal(t, f.owner.ToPublicKey(), perm.Accounts[len(perm.Accounts)-1].PubKey)

	_, _, err = c.ConsumeEvents(context.Background(), nil, 5)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestEventQueue(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	a, b, d := newKey(), newKey(), newKey()
	f.eventQueue(t, 8, 6, []types.Pubkey{a, b, a, d, b})

	stats, err := c.FetchEventQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), stats.Count)
	assert.Equal(t, uint64(6), stats.Head)
	assert.True(t, stats.NeedsCrank())

	owners, err := c.CollectEventQueueOpenOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{a, b, d}, owners)

	owners, err = c.CollectEventQueueOpenOrders(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{a, b}, owners)

	f.eventQueue(t, 8, 0, nil)
	owners, err = c.CollectEventQueueOpenOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestLoadOrdersForOwner(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	f.openOrdersAccount(t, map[int]bool{1: true, 4: false}, 250)

	res, err := c.LoadOrdersForOwner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.openOrders, res.Account.Address)
	assert.Equal(t, uint64(5), res.Account.NativeCoinFree)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, uint8(1), res.Orders[0].Slot)
	assert.Equal(t, core.SideBid, res.Orders[0].Side)
	assert.Equal(t, core.SideAsk, res.Orders[1].Side)
	assert.Equal(t, uint64(250), res.Orders[1].PriceLots)
	assert.InDelta(t, 2.5, res.Orders[1].Price, 1e-9)
	assert.Equal(t, uint64(1004), res.Orders[1].ClientOrderID)
}

func TestLoadOrdersForOwner_WrongMarket(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	state := f.openOrdersAccount(t, nil, 0)
	state.Market = newKey()
	f.setAccount(f.openOrders, wrapAccount(t, *state, 0))

	_, err := c.LoadOrdersForOwner(context.Background())
	assert.ErrorContains(t, err, "belongs to market")
}

func TestFindOpenOrdersAccountsForOwner(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	keys := []types.Pubkey{newKey(), newKey(), newKey()}
	f.reader.programAccounts = nil
	for _, k := range keys {
		f.reader.programAccounts = append(f.reader.programAccounts, client.ProgramAccount{Pubkey: k.ToPublicKey()})
	}

	got, err := c.FindOpenOrdersAccountsForOwner(context.Background(), f.owner, 1000)
	require.NoError(t, err)
	assert.Equal(t, keys, got)

	got, err = c.FindOpenOrdersAccountsForOwner(context.Background(), f.owner, 2)
	require.NoError(t, err)
	assert.Equal(t, keys[:2], got)

	f.reader.err = errors.New("rpc: 429")
	_, err = c.FindOpenOrdersAccountsForOwner(context.Background(), f.owner, 2)
	assert.ErrorContains(t, err, "429")
}
