package domain

import "github.com/shopspring/decimal"

// PairToken is a token as embedded in subgraph pair data.
type PairToken struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// PairData is the subgraph view of a pair (v2) or pool (v3). Fields that only
// one schema populates are left as zero values by the other.
type PairData struct {
	ID                    string          `json:"id"`
	Token0                PairToken       `json:"token0"`
	Token1                PairToken       `json:"token1"`
	Reserve0              decimal.Decimal `json:"reserve0"`
	Reserve1              decimal.Decimal `json:"reserve1"`
	ReserveUSD            decimal.Decimal `json:"reserve_usd"`
	TrackedReserveUSD     decimal.Decimal `json:"tracked_reserve_usd"`
	Token0Price           decimal.Decimal `json:"token0_price"`
	Token1Price           decimal.Decimal `json:"token1_price"`
	OneDayVolumeUSD       decimal.Decimal `json:"one_day_volume_usd"`
	OneDayVolumeUntracked decimal.Decimal `json:"one_day_volume_untracked"`
	FeesUSDOneDay         decimal.Decimal `json:"fees_usd_one_day"`
	Fee                   int64           `json:"fee"`
}

// PairSummary is the display-ready header of a pair analytics page.
type PairSummary struct {
	Pair           PairData        `json:"pair"`
	Schema         SchemaVersion   `json:"schema"`
	Token0Rate     string          `json:"token0_rate"`
	Token1Rate     string          `json:"token1_rate"`
	DailyFees      string          `json:"daily_fees"`
	TotalLiquidity decimal.Decimal `json:"total_liquidity"`
	FeeTierPercent decimal.Decimal `json:"fee_tier_percent,omitempty"`
}

// FarmCategory groups farms the way the farm listing does.
type FarmCategory string

const (
	FarmLP    FarmCategory = "lp"
	FarmDual  FarmCategory = "dual"
	FarmOther FarmCategory = "other"
)
