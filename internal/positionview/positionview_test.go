package positionview

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

func pos(id int64, liquidity int64, farming bool) domain.Position {
	return domain.Position{
		TokenID:   big.NewInt(id),
		Liquidity: big.NewInt(liquidity),
		OnFarming: farming,
	}
}

func ids(ps []domain.Position) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.TokenID.Int64())
	}
	return out
}

func TestClassify_PartitionIsStable(t *testing.T) {
	in := []domain.Position{pos(5, 10, false), pos(2, 0, false), pos(9, 1, true), pos(1, 0, false)}

	open, closed := Classify(in)

	assert.Equal(t, []int64{5, 9}, ids(open))
	assert.Equal(t, []int64{2, 1}, ids(closed))
	assert.ElementsMatch(t, in, append(open, closed...))
}

func TestClassify_Empty(t *testing.T) {
	open, closed := Classify(nil)

	assert.NotNil(t, open)
	assert.NotNil(t, closed)
	assert.Empty(t, open)
	assert.Empty(t, closed)
}

func TestClassify_NilLiquidityIsClosed(t *testing.T) {
	p := domain.Position{TokenID: big.NewInt(7)}

	open, closed := Classify([]domain.Position{p})

	assert.Empty(t, open)
	assert.Len(t, closed, 1)
}

func TestFilter_SegmentOrder(t *testing.T) {
	open, closed := Classify([]domain.Position{
		pos(1, 5, false), pos(2, 0, false), pos(3, 5, true), pos(4, 5, false),
	})

	out := Filter(open, closed, domain.Preferences{})

	assert.Equal(t, []int64{3, 1, 4, 2}, ids(out))
}

func TestFilter_FarmingNeverDuplicated(t *testing.T) {
	open, closed := Classify([]domain.Position{pos(1, 5, true), pos(2, 5, true), pos(3, 5, false)})

	out := Filter(open, closed, domain.Preferences{})

	seen := make(map[int64]int)
	for _, id := range ids(out) {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "position %d repeated", id)
	}
	assert.Len(t, out, 3)
}

func TestFilter_HideFarming(t *testing.T) {
	open, closed := Classify([]domain.Position{pos(1, 5, true), pos(2, 5, false)})

	out := Filter(open, closed, domain.Preferences{HideFarming: true})

	assert.Equal(t, []int64{2}, ids(out))
}

func TestFilter_HideClosedDropsZeroLiquidity(t *testing.T) {
	open, closed := Classify([]domain.Position{pos(1, 0, false), pos(2, 3, false), pos(3, 0, true)})

	out := Filter(open, closed, domain.Preferences{HideClosed: true})

	for _, p := range out {
		assert.False(t, p.IsClosed())
	}
	assert.Equal(t, []int64{2}, ids(out))
}

func TestStabilize_AccountSwitchNeverLeaksCache(t *testing.T) {
	s, shown, stabilized := Stabilize(State{}, alice, domain.FetchReady, []domain.Position{pos(1, 1, false)})
	require.False(t, stabilized)
	require.Len(t, shown, 1)

	s, shown, stabilized = Stabilize(s, bob, domain.FetchLoading, []domain.Position{})

	assert.False(t, stabilized)
	assert.Empty(t, shown)
	assert.Equal(t, bob, s.Account())
	assert.Empty(t, s.Cached())
}

func TestStabilize_SameAccountEmptyReturnsCache(t *testing.T) {
	prior := []domain.Position{pos(4, 1, false), pos(2, 1, false), pos(8, 1, false)}
	s, _, _ := Stabilize(State{}, alice, domain.FetchReady, prior)

	_, shown, stabilized := Stabilize(s, alice, domain.FetchLoading, nil)

	assert.True(t, stabilized)
	assert.Equal(t, prior, shown)
}

func TestStabilize_FreshOverwritesCache(t *testing.T) {
	s, _, _ := Stabilize(State{}, alice, domain.FetchReady, []domain.Position{pos(1, 1, false)})

	s, shown, stabilized := Stabilize(s, alice, domain.FetchReady, []domain.Position{pos(2, 1, false)})

	assert.False(t, stabilized)
	assert.Equal(t, []int64{2}, ids(shown))
	assert.Equal(t, []int64{2}, ids(s.Cached()))
}

func TestStabilize_ReadyEmptyMasksOneCycle(t *testing.T) {
	s, _, _ := Stabilize(State{}, alice, domain.FetchReady, []domain.Position{pos(1, 1, false)})

	s, shown, stabilized := Stabilize(s, alice, domain.FetchReady, nil)
	assert.True(t, stabilized)
	assert.Equal(t, []int64{1}, ids(shown))

	s, shown, stabilized = Stabilize(s, alice, domain.FetchReady, nil)
	assert.False(t, stabilized)
	assert.Empty(t, shown)
	assert.Empty(t, s.Cached())
}

func TestStabilize_LoadingDoesNotConsumeMask(t *testing.T) {
	s, _, _ := Stabilize(State{}, alice, domain.FetchReady, []domain.Position{pos(1, 1, false)})

	for i := 0; i < 3; i++ {
		var stabilized bool
		s, _, stabilized = Stabilize(s, alice, domain.FetchLoading, nil)
		require.True(t, stabilized)
	}

	_, shown, stabilized := Stabilize(s, alice, domain.FetchReady, nil)
	assert.True(t, stabilized)
	assert.Equal(t, []int64{1}, ids(shown))
}

func TestStabilize_CacheIsNotAliased(t *testing.T) {
	fresh := []domain.Position{pos(1, 1, false)}
	s, _, _ := Stabilize(State{}, alice, domain.FetchReady, fresh)

	fresh[0] = pos(99, 1, false)

	assert.Equal(t, []int64{1}, ids(s.Cached()))
}

func TestRank_AscendingWithNewest(t *testing.T) {
	in := []domain.Position{pos(3, 1, false), pos(1, 1, false), pos(2, 1, false)}

	out, newest := Rank(in)

	assert.Equal(t, []int64{1, 2, 3}, ids(out))
	require.NotNil(t, newest)
	assert.Equal(t, int64(3), newest.Int64())
	assert.Equal(t, []int64{3, 1, 2}, ids(in), "input must not be reordered")
}

func TestRank_Empty(t *testing.T) {
	out, newest := Rank(nil)

	assert.Empty(t, out)
	assert.Nil(t, newest)
}

func TestRank_LargeIDs(t *testing.T) {
	big1, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
	big2, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	in := []domain.Position{{TokenID: big1}, {TokenID: big2}}

	out, newest := Rank(in)

	assert.Equal(t, 0, out[0].TokenID.Cmp(big2))
	assert.Equal(t, 0, newest.Cmp(big1))
}

func TestDerive_NoAccount(t *testing.T) {
	s, view := Derive(State{}, "", domain.PositionsResult{
		Status:    domain.FetchReady,
		Positions: []domain.Position{pos(1, 1, false)},
	}, domain.DefaultPreferences())

	assert.Empty(t, view.Positions)
	assert.Nil(t, view.Newest)
	assert.Equal(t, State{}, s)
}

func TestDerive_FullPipeline(t *testing.T) {
	res := domain.PositionsResult{
		Account: alice,
		Status:  domain.FetchReady,
		Positions: []domain.Position{
			pos(7, 10, false), pos(3, 0, false), pos(5, 2, true), pos(4, 8, false),
		},
	}

	_, view := Derive(State{}, alice, res, domain.DefaultPreferences())

	assert.Equal(t, []int64{4, 5, 7}, ids(view.Positions))
	assert.Equal(t, int64(7), view.Newest.Int64())
	assert.False(t, view.Stabilized)
}

func TestDerive_IsIdempotent(t *testing.T) {
	res := domain.PositionsResult{
		Account:   alice,
		Status:    domain.FetchReady,
		Positions: []domain.Position{pos(2, 1, false), pos(1, 1, true)},
	}
	prefs := domain.DefaultPreferences()

	s1, v1 := Derive(State{}, alice, res, prefs)
	s2, v2 := Derive(State{}, alice, res, prefs)

	assert.Equal(t, v1, v2)
	assert.Equal(t, s1, s2)
}

func TestDerive_CachedListHonoursCurrentPreferences(t *testing.T) {
	res := domain.PositionsResult{
		Account:   alice,
		Status:    domain.FetchReady,
		Positions: []domain.Position{pos(1, 0, false), pos(2, 5, false)},
	}
	s, _ := Derive(State{}, alice, res, domain.Preferences{HideClosed: false})

	_, view := Derive(s, alice, domain.PositionsResult{Account: alice, Status: domain.FetchLoading},
		domain.Preferences{HideClosed: true})

	assert.True(t, view.Stabilized)
	assert.Equal(t, []int64{2}, ids(view.Positions))
}

func TestDerive_IgnoresResultForOtherAccount(t *testing.T) {
	res := domain.PositionsResult{
		Account:   bob,
		Status:    domain.FetchReady,
		Positions: []domain.Position{pos(1, 1, false)},
	}

	_, view := Derive(State{}, alice, res, domain.DefaultPreferences())

	assert.Empty(t, view.Positions)
	assert.Nil(t, view.Newest)
	assert.Equal(t, domain.FetchLoading, view.Status)
}

func TestDerive_LateResultForOtherAccountKeepsCache(t *testing.T) {
	prefs := domain.DefaultPreferences()
	s, _ := Derive(State{}, alice, domain.PositionsResult{
		Account:   alice,
		Status:    domain.FetchReady,
		Positions: []domain.Position{pos(1, 1, false)},
	}, prefs)

	stale := domain.PositionsResult{Account: bob, Status: domain.FetchReady}
	for i := 0; i < 2; i++ {
		var view domain.DerivedView
		s, view = Derive(s, alice, stale, prefs)
		require.Len(t, view.Positions, 1, "stale result %d", i)
		assert.True(t, view.Stabilized)
		assert.Equal(t, domain.FetchLoading, view.Status)
	}

	// The one-cycle mask is still available to alice's own refetch.
	s, view := Derive(s, alice, domain.PositionsResult{Account: alice, Status: domain.FetchReady}, prefs)
	require.Len(t, view.Positions, 1)
	assert.Equal(t, int64(1), view.Positions[0].TokenID.Int64())

	_, view = Derive(s, alice, domain.PositionsResult{Account: alice, Status: domain.FetchReady}, prefs)
	assert.Empty(t, view.Positions)
}
