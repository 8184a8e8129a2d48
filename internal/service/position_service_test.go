package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

const testAccount = "0x00000000000000000000000000000000000000aa"

func ids(ps []domain.Position) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.TokenID.Int64())
	}
	return out
}

func TestPositionService_FetchMergesFarming(t *testing.T) {
	wallet := &fakeWallet{positions: []domain.Position{pos(1, 10, false), pos(2, 5, false)}}
	farming := &fakeFarming{positions: []domain.Position{pos(2, 5, true), pos(9, 1, true)}}
	svc := NewPositionService(wallet, farming, nil, discardLogger())

	res, err := svc.Fetch(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchReady, res.Status)
	assert.Equal(t, []int64{1, 2, 9}, ids(res.Positions))
	assert.True(t, res.Positions[1].OnFarming, "farming record replaces the wallet record")
}

func TestPositionService_FetchInvalidAccount(t *testing.T) {
	svc := NewPositionService(&fakeWallet{}, nil, nil, discardLogger())

	_, err := svc.Fetch(context.Background(), "not-an-address")
	assert.True(t, errors.Is(err, domain.ErrInvalidAccount))
}

func TestPositionService_ViewKeepsLastGoodListOnFailure(t *testing.T) {
	wallet := &fakeWallet{positions: []domain.Position{pos(3, 1, false), pos(1, 1, false)}}
	bus := newFakeBus()
	svc := NewPositionService(wallet, nil, bus, discardLogger())
	ctx := context.Background()
	prefs := domain.DefaultPreferences()

	session, view, err := svc.View(ctx, "", testAccount, prefs)
	require.NoError(t, err)
	require.NotEmpty(t, session)
	assert.Equal(t, []int64{1, 3}, ids(view.Positions))
	assert.Equal(t, big.NewInt(3), view.Newest)

	wallet.positions = nil
	wallet.err = errors.New("rpc down")
	same, view, err := svc.View(ctx, session, testAccount, prefs)
	require.NoError(t, err)
	assert.Equal(t, session, same)
	assert.Equal(t, domain.FetchFailed, view.Status)
	assert.True(t, view.Stabilized)
	assert.Equal(t, []int64{1, 3}, ids(view.Positions))

	assert.Equal(t, 2, bus.count(ChannelPositions))
}

func TestPositionService_SessionsAreIndependent(t *testing.T) {
	wallet := &fakeWallet{positions: []domain.Position{pos(1, 1, false)}}
	svc := NewPositionService(wallet, nil, nil, discardLogger())
	ctx := context.Background()
	prefs := domain.DefaultPreferences()

	a, _, err := svc.View(ctx, "", testAccount, prefs)
	require.NoError(t, err)

	wallet.positions = []domain.Position{}
	b, view, err := svc.View(ctx, "", testAccount, prefs)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Empty(t, view.Positions, "a new session has nothing cached")
	assert.Equal(t, 2, svc.Sessions())

	assert.True(t, svc.Drop(a))
	assert.False(t, svc.Drop(a))
	assert.Equal(t, 1, svc.Sessions())
}

func TestPositionService_Sweep(t *testing.T) {
	svc := NewPositionService(&fakeWallet{}, nil, nil, discardLogger())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, _, err := svc.View(context.Background(), "", testAccount, domain.DefaultPreferences())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	assert.Equal(t, 0, svc.Sweep(2*time.Hour))
	assert.Equal(t, 1, svc.Sweep(30*time.Minute))
	assert.Equal(t, 0, svc.Sessions())
}

func TestPositionService_NoAccount(t *testing.T) {
	wallet := &fakeWallet{}
	svc := NewPositionService(wallet, nil, nil, discardLogger())

	_, view, err := svc.View(context.Background(), "", "", domain.DefaultPreferences())
	require.NoError(t, err)
	assert.Empty(t, view.Positions)
	assert.Nil(t, view.Newest)
	assert.Equal(t, 0, wallet.calls)
}

func TestPositionService_ApplyLoadingShowsCache(t *testing.T) {
	wallet := &fakeWallet{positions: []domain.Position{pos(4, 1, false)}}
	svc := NewPositionService(wallet, nil, nil, discardLogger())
	ctx := context.Background()
	prefs := domain.DefaultPreferences()

	session, _, err := svc.View(ctx, "", testAccount, prefs)
	require.NoError(t, err)

	_, view := svc.Apply(ctx, session, domain.PositionsResult{Account: testAccount, Status: domain.FetchLoading}, prefs)
	assert.Equal(t, []int64{4}, ids(view.Positions))
	assert.Equal(t, domain.FetchLoading, view.Status)
}
