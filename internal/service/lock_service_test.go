package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

var (
	lpToken = "0x1111111111111111111111111111111111111111"
	manager = common.HexToAddress("0x8eF88E4c7CfbbaC1C163f7eddd4B578792201de6")
)

func lockOn(chain, tokenAddr string, deposit int64, withdrawn bool) domain.Lock {
	return domain.Lock{
		Event: domain.LockEvent{
			ChainID:             chain,
			LockContractAddress: "0xLOCK",
			LockDepositID:       deposit,
			IsWithdrawn:         withdrawn,
		},
		LiquidityContract: &domain.LiquidityContract{TokenAddress: tokenAddr},
	}
}

func TestFilterV2(t *testing.T) {
	locks := []domain.Lock{
		lockOn("0x89", "0x1111111111111111111111111111111111111111", 1, false),
		lockOn("0x1", lpToken, 2, false),
		lockOn("0x89", "0x2222222222222222222222222222222222222222", 3, false),
		{Event: domain.LockEvent{ChainID: "0x89", LockDepositID: 4}},
	}

	got := FilterV2(locks, "0x89", []common.Address{common.HexToAddress(lpToken)})

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Event.LockDepositID)
}

func TestFilterV3(t *testing.T) {
	locks := []domain.Lock{
		lockOn("0x89", "0x8ef88e4c7cfbbac1c163f7eddd4b578792201de6", 1, false),
		lockOn("0x89", lpToken, 2, false),
	}

	got := FilterV3(locks, "0x89", manager)

	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Event.LockDepositID)
}

func TestLockService_V2WithoutLPTokensSkipsBackend(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewLockService(backend, fakeTokens{}, nil, nil, nil, nil, LockConfig{ChainID: "0x89"}, discardLogger())

	locks, err := svc.Locks(context.Background(), domain.SchemaV2, testAccount)
	require.NoError(t, err)
	assert.Empty(t, locks)
	assert.Equal(t, 0, backend.calls)

	locks, err = svc.Locks(context.Background(), domain.SchemaV3, "")
	require.NoError(t, err)
	assert.Empty(t, locks)
	assert.Equal(t, 0, backend.calls)
}

func TestLockService_ReportsWithdrawals(t *testing.T) {
	backend := &fakeBackend{locks: []domain.Lock{
		lockOn("0x89", manager.Hex(), 7, true),
		lockOn("0x89", manager.Hex(), 8, false),
	}}
	store := &fakeLockStore{withdrawn: []domain.LockKey{{LockContract: "0xlock", DepositID: 7}}}
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	bus := newFakeBus()
	svc := NewLockService(backend, fakeTokens{}, store, audit, notifier, bus,
		LockConfig{ChainID: "0x89", PositionManager: manager}, discardLogger())

	locks, err := svc.Locks(context.Background(), domain.SchemaV3, testAccount)
	require.NoError(t, err)
	assert.Len(t, locks, 2)
	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, []string{"lock_withdrawn"}, audit.events)
	require.Len(t, notifier.locks, 1)
	assert.Equal(t, int64(7), notifier.locks[0].Event.LockDepositID)
	assert.Equal(t, 1, bus.count(ChannelLocks))
}

func TestLockService_Refresh(t *testing.T) {
	backend := &fakeBackend{}
	audit := &fakeAudit{}
	svc := NewLockService(backend, fakeTokens{}, nil, audit, nil, nil, LockConfig{}, discardLogger())

	require.NoError(t, svc.Refresh(context.Background(), lpToken, 3))
	assert.Equal(t, []domain.LockKey{{LockContract: lpToken, DepositID: 3}}, backend.updated)
	assert.Equal(t, []string{"lock_refreshed"}, audit.events)

	err := svc.Refresh(context.Background(), "bad", 3)
	assert.True(t, errors.Is(err, domain.ErrInvalidAddress))
}

func TestLockService_ActivityFiltersByAccount(t *testing.T) {
	audit := &fakeAudit{}
	svc := NewLockService(&fakeBackend{}, fakeTokens{}, nil, audit, nil, nil, LockConfig{}, discardLogger())

	_, err := svc.Activity(context.Background(), "0xABCDEF0000000000000000000000000000000001", domain.ListOpts{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", audit.opts.Account)
	assert.Equal(t, 5, audit.opts.Limit)

	_, err = svc.Activity(context.Background(), "nope", domain.ListOpts{})
	assert.True(t, errors.Is(err, domain.ErrInvalidAccount))
}

func TestLockService_SyncCoversBothSchemas(t *testing.T) {
	backend := &fakeBackend{locks: []domain.Lock{
		lockOn("0x89", lpToken, 1, false),
		lockOn("0x89", manager.Hex(), 2, false),
	}}
	svc := NewLockService(backend, fakeTokens{ids: []string{lpToken}}, nil, nil, nil, nil,
		LockConfig{ChainID: "0x89", PositionManager: manager}, discardLogger())

	locks, err := svc.Sync(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Len(t, locks, 2)
	assert.Equal(t, 2, backend.calls)
}
