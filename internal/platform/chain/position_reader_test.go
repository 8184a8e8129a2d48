package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

const managerAddr = "0x8eF88E4c7CfbbaC1C163f7eddd4B578792201de6"

var (
	owner  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token1 = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// fakeManager serves balanceOf, tokenOfOwnerByIndex and positions from
// in-memory data.
type fakeManager struct {
	abi       abi.ABI
	ids       []int64
	liquidity map[int64]int64
	balance   *big.Int
	fail      bool
}

func newFakeManager(t *testing.T, ids []int64, liquidity map[int64]int64) *fakeManager {
	parsed, err := abi.JSON(strings.NewReader(positionManagerABI))
	require.NoError(t, err)
	return &fakeManager{abi: parsed, ids: ids, liquidity: liquidity}
}

func (f *fakeManager) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.fail {
		return nil, errors.New("rpc down")
	}
	sel := msg.Data[:4]
	switch {
	case bytes.Equal(sel, f.abi.Methods["balanceOf"].ID):
		if f.balance != nil {
			return f.abi.Methods["balanceOf"].Outputs.Pack(f.balance)
		}
		return f.abi.Methods["balanceOf"].Outputs.Pack(big.NewInt(int64(len(f.ids))))
	case bytes.Equal(sel, f.abi.Methods["tokenOfOwnerByIndex"].ID):
		args, err := f.abi.Methods["tokenOfOwnerByIndex"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		idx := args[1].(*big.Int).Int64()
		return f.abi.Methods["tokenOfOwnerByIndex"].Outputs.Pack(big.NewInt(f.ids[idx]))
	case bytes.Equal(sel, f.abi.Methods["positions"].ID):
		args, err := f.abi.Methods["positions"].Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		id := args[0].(*big.Int).Int64()
		return f.abi.Methods["positions"].Outputs.Pack(
			big.NewInt(0),
			common.Address{},
			token0,
			token1,
			big.NewInt(-120),
			big.NewInt(240),
			big.NewInt(f.liquidity[id]),
			big.NewInt(0),
			big.NewInt(0),
			big.NewInt(5),
			big.NewInt(6),
		)
	}
	return nil, fmt.Errorf("unexpected selector %x", sel)
}

func TestPositionReader_PositionsOf(t *testing.T) {
	fake := newFakeManager(t, []int64{11, 7, 30}, map[int64]int64{11: 100, 7: 0, 30: 5})
	r, err := NewPositionReader(fake, managerAddr, 2)
	require.NoError(t, err)

	ps, err := r.PositionsOf(context.Background(), owner)
	require.NoError(t, err)

	require.Len(t, ps, 3)
	assert.Equal(t, int64(11), ps[0].TokenID.Int64())
	assert.Equal(t, int64(7), ps[1].TokenID.Int64())
	assert.True(t, ps[1].IsClosed())
	assert.Equal(t, int64(100), ps[0].Liquidity.Int64())
	assert.Equal(t, owner, ps[2].Owner)
	assert.Equal(t, token0, ps[2].Token0)
	assert.Equal(t, int32(-120), ps[2].TickLower)
	assert.Equal(t, int32(240), ps[2].TickUpper)
	assert.Equal(t, int64(6), ps[2].TokensOwed1.Int64())
	assert.False(t, ps[0].OnFarming)
}

func TestPositionReader_EmptyWallet(t *testing.T) {
	r, err := NewPositionReader(newFakeManager(t, nil, nil), managerAddr, 0)
	require.NoError(t, err)

	ps, err := r.PositionsOf(context.Background(), owner)

	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestPositionReader_CallFailure(t *testing.T) {
	fake := newFakeManager(t, []int64{1}, nil)
	fake.fail = true
	r, err := NewPositionReader(fake, managerAddr, 1)
	require.NoError(t, err)

	_, err = r.PositionsOf(context.Background(), owner)

	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestPositionReader_ImplausibleBalance(t *testing.T) {
	huge := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	for _, balance := range []*big.Int{huge, big.NewInt(maxPositions + 1)} {
		fake := newFakeManager(t, nil, nil)
		fake.balance = balance
		r, err := NewPositionReader(fake, managerAddr, 1)
		require.NoError(t, err)

		ps, err := r.PositionsOf(context.Background(), owner)

		assert.True(t, errors.Is(err, domain.ErrUpstream), "balance %s", balance)
		assert.Nil(t, ps)
	}
}

func TestNewPositionReader_InvalidAddress(t *testing.T) {
	_, err := NewPositionReader(newFakeManager(t, nil, nil), "not-an-address", 1)

	assert.Error(t, err)
}
