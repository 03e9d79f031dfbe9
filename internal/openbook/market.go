package openbook

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"openbook-cli-sol/internal/cache"
	"openbook-cli-sol/internal/pkg/logger"
	"openbook-cli-sol/internal/types"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
)

// MarketStore 市场元数据缓存，Load 未命中返回 nil, nil
type MarketStore interface {
	Load(ctx context.Context, program, market types.Pubkey) (*cache.MarketSnapshot, error)
	Save(ctx context.Context, program, market types.Pubkey, snap *cache.MarketSnapshot) error
}

// Market 已解析的市场
type Market struct {
	Address     types.Pubkey
	ProgramID   types.Pubkey
	State       MarketState
	Authorities *MarketAuthorities
	Lots        LotSizes
	VaultSigner types.Pubkey
}

func (m *Market) Permissioned() bool {
	return m.Authorities != nil
}

func (m *Market) Accounts() *MarketAccounts {
	return &MarketAccounts{
		ProgramID:    m.ProgramID,
		Market:       m.Address,
		RequestQueue: m.State.RequestQueue,
		EventQueue:   m.State.EventQueue,
		Bids:         m.State.Bids,
		Asks:         m.State.Asks,
		CoinVault:    m.State.CoinVault,
		PcVault:      m.State.PcVault,
		VaultSigner:  m.VaultSigner,
	}
}

// LoadMarket 优先读缓存；未命中时读取市场账户和两个 mint 的精度并回写缓存
func LoadMarket(ctx context.Context, reader AccountReader, store MarketStore, programID, address types.Pubkey) (*Market, error) {
	if store != nil {
		snap, err := store.Load(ctx, programID, address)
		if err != nil {
			logger.Warnf("[Market] cache load failed, fallback to rpc: %v", err)
		} else if snap != nil {
			m, err := newMarket(programID, address, snap)
			if err == nil {
				logger.Debugf("[Market] cache hit: market=%s cached_at=%s", address, time.Unix(snap.CachedAt, 0).Format(time.RFC3339))
				return m, nil
			}
			logger.Warnf("[Market] cached snapshot invalid, fallback to rpc: %v", err)
		}
	}

	snap, err := fetchMarketSnapshot(ctx, reader, programID, address)
	if err != nil {
		return nil, err
	}
	m, err := newMarket(programID, address, snap)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Save(ctx, programID, address, snap); err != nil {
			logger.Warnf("[Market] cache save failed: %v", err)
		}
	}
	return m, nil
}

func fetchMarketSnapshot(ctx context.Context, reader AccountReader, programID, address types.Pubkey) (*cache.MarketSnapshot, error) {
	info, err := reader.GetAccountInfo(ctx, address.String())
	if err != nil {
		return nil, fmt.Errorf("get market account %s: %w", address, err)
	}
	if len(info.Data) == 0 {
		return nil, fmt.Errorf("market account %s not found", address)
	}
	if owner := types.PubkeyFromPublicKey(info.Owner); owner != programID {
		return nil, fmt.Errorf("market %s is owned by %s, not by program %s", address, owner, programID)
	}

	state, _, err := DecodeMarket(info.Data)
	if err != nil {
		return nil, err
	}

	mints, err := reader.GetMultipleAccounts(ctx, []string{state.CoinMint.String(), state.PcMint.String()})
	if err != nil {
		return nil, fmt.Errorf("get mint accounts: %w", err)
	}
	if len(mints) != 2 {
		return nil, fmt.Errorf("get mint accounts: got %d accounts, want 2", len(mints))
	}
	coinDecimals, err := mintDecimals(state.CoinMint, mints[0].Data)
	if err != nil {
		return nil, err
	}
	pcDecimals, err := mintDecimals(state.PcMint, mints[1].Data)
	if err != nil {
		return nil, err
	}

	return &cache.MarketSnapshot{
		Data:         info.Data,
		CoinDecimals: coinDecimals,
		PcDecimals:   pcDecimals,
		CachedAt:     time.Now().Unix(),
	}, nil
}

func mintDecimals(mint types.Pubkey, data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("mint account %s not found", mint)
	}
	acc, err := token.MintAccountFromData(data)
	if err != nil {
		return 0, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	return acc.Decimals, nil
}

func newMarket(programID, address types.Pubkey, snap *cache.MarketSnapshot) (*Market, error) {
	state, auth, err := DecodeMarket(snap.Data)
	if err != nil {
		return nil, err
	}
	if state.OwnAddress != address {
		return nil, fmt.Errorf("market own address %s does not match %s", state.OwnAddress, address)
	}

	signer, err := VaultSigner(programID, address, state.VaultSignerNonce)
	if err != nil {
		return nil, err
	}
	return &Market{
		Address:     address,
		ProgramID:   programID,
		State:       *state,
		Authorities: auth,
		Lots: LotSizes{
			CoinLotSize:  state.CoinLotSize,
			PcLotSize:    state.PcLotSize,
			CoinDecimals: snap.CoinDecimals,
			PcDecimals:   snap.PcDecimals,
		},
		VaultSigner: signer,
	}, nil
}

// VaultSigner 由市场地址和 nonce 推导出的 vault 权限地址
func VaultSigner(programID, market types.Pubkey, nonce uint64) (types.Pubkey, error) {
	nonceBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(nonceBytes, nonce)
	pk, err := common.CreateProgramAddress([][]byte{market[:], nonceBytes}, programID.ToPublicKey())
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("derive vault signer for market %s nonce %d: %w", market, nonce, err)
	}
	return types.PubkeyFromPublicKey(pk), nil
}
