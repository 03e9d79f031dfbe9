package resolver

import (
	"context"
	"errors"
	"testing"

	"openbook-cli-sol/internal/consts"
	"openbook-cli-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	owners []types.Pubkey
	err    error
	calls  int
	limit  int
}

func (s *fakeScanner) CollectEventQueueOpenOrders(_ context.Context, limit int) ([]types.Pubkey, error) {
	s.calls++
	s.limit = limit
	return s.owners, s.err
}

var (
	keyA = consts.SerumV3Program
	keyB = consts.OpenBookV1Program
	keyC = consts.USDCMint
	self = consts.WSOLMint
)

func TestResolve_Explicit(t *testing.T) {
	scanner := &fakeScanner{owners: []types.Pubkey{keyC}}
	explicit := []string{keyA.String(), keyB.String(), keyC.String()}

	got, err := Resolve(context.Background(), scanner, explicit, 10, self)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{keyA, keyB, keyC}, got)
	assert.Equal(t, 0, scanner.calls)
}

func TestResolve_ExplicitInvalid(t *testing.T) {
	scanner := &fakeScanner{}

	_, err := Resolve(context.Background(), scanner, []string{keyA.String(), "not-a-key!", keyB.String()}, 10, self)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Contains(t, err.Error(), "not-a-key!")
	assert.Equal(t, 0, scanner.calls)

	// 合法 base58 但长度不对
	_, err = Resolve(context.Background(), scanner, []string{"abc"}, 10, self)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestResolve_Scan(t *testing.T) {
	scanner := &fakeScanner{owners: []types.Pubkey{keyB, keyA}}

	got, err := Resolve(context.Background(), scanner, nil, 7, self)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{keyB, keyA}, got)
	assert.Equal(t, 7, scanner.limit)
}

func TestResolve_FallbackSelf(t *testing.T) {
	scanner := &fakeScanner{}

	got, err := Resolve(context.Background(), scanner, []string{}, 10, self)
	require.NoError(t, err)
	assert.Equal(t, []types.Pubkey{self}, got)

	_, err = Resolve(context.Background(), scanner, nil, 10, types.Pubkey{})
	assert.ErrorIs(t, err, types.ErrNoOpenOrders)
}

func TestResolve_ScanError(t *testing.T) {
	scanErr := errors.New("rpc: event queue unavailable")
	scanner := &fakeScanner{err: scanErr}

	_, err := Resolve(context.Background(), scanner, nil, 10, self)
	assert.ErrorIs(t, err, scanErr)
}
