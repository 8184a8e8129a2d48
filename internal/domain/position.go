package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FetchStatus reports where a background fetch is in its lifecycle. The view
// pipeline keys its stabilization off this value instead of guessing from an
// empty collection.
type FetchStatus string

const (
	FetchLoading FetchStatus = "loading"
	FetchReady   FetchStatus = "ready"
	FetchFailed  FetchStatus = "failed"
)

// Position is a concentrated-liquidity NFT position as read from the position
// manager contract. A position with zero liquidity is closed.
type Position struct {
	TokenID     *big.Int       `json:"token_id"`
	Owner       common.Address `json:"owner"`
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	TickLower   int32          `json:"tick_lower"`
	TickUpper   int32          `json:"tick_upper"`
	Liquidity   *big.Int       `json:"liquidity"`
	TokensOwed0 *big.Int       `json:"tokens_owed0,omitempty"`
	TokensOwed1 *big.Int       `json:"tokens_owed1,omitempty"`
	OnFarming   bool           `json:"on_farming"`
}

// IsClosed reports whether the position holds no liquidity. A missing
// liquidity value counts as zero.
func (p Position) IsClosed() bool {
	return p.Liquidity == nil || p.Liquidity.Sign() == 0
}

// PositionsResult is what the position-fetching collaborator hands to the view
// pipeline for one account.
type PositionsResult struct {
	Account   string
	Status    FetchStatus
	Positions []Position
}

// Preferences are the user-controlled view toggles.
type Preferences struct {
	HideClosed  bool `json:"hide_closed"`
	HideFarming bool `json:"hide_farming"`
}

// DefaultPreferences hides closed positions and shows farming ones.
func DefaultPreferences() Preferences {
	return Preferences{HideClosed: true, HideFarming: false}
}

// DerivedView is the display-ready projection of an account's positions.
// Newest is nil when there is nothing to highlight.
type DerivedView struct {
	Account    string      `json:"account"`
	Positions  []Position  `json:"positions"`
	Newest     *big.Int    `json:"newest,omitempty"`
	Status     FetchStatus `json:"status"`
	Stabilized bool        `json:"stabilized"`
}
