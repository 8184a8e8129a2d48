package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// DefaultFeePercent is the swap fee charged by v2 pairs.
var DefaultFeePercent = decimal.RequireFromString("0.003")

var (
	minRate    = decimal.RequireFromString("0.0001")
	feeTierDiv = decimal.NewFromInt(10000)
)

// FormatRate renders an exchange rate for display. Zero renders as "-".
func FormatRate(v decimal.Decimal) string {
	switch {
	case v.IsZero():
		return "-"
	case v.LessThan(minRate):
		return "< 0.0001"
	case v.GreaterThan(decimal.NewFromInt(1)):
		return v.StringFixed(2)
	default:
		return v.StringFixed(4)
	}
}

// TokenRates returns how much of the other token one unit of token0 and token1
// buys. The subgraph's v3 prices are quoted the other way round, so they are
// swapped here.
func TokenRates(p domain.PairData, schema domain.SchemaVersion) (rate0, rate1 string) {
	if schema != domain.SchemaV2 {
		return FormatRate(p.Token1Price), FormatRate(p.Token0Price)
	}
	if p.Reserve0.IsZero() || p.Reserve1.IsZero() {
		return "-", "-"
	}
	return FormatRate(p.Reserve1.Div(p.Reserve0)), FormatRate(p.Reserve0.Div(p.Reserve1))
}

// DailyFees estimates the fees earned by the pair over the last day. For v2
// the untracked volume stands in when tracked volume is zero.
func DailyFees(p domain.PairData, schema domain.SchemaVersion, feePercent decimal.Decimal) string {
	if schema != domain.SchemaV2 {
		if p.FeesUSDOneDay.IsZero() {
			return "0"
		}
		return p.FeesUSDOneDay.StringFixed(2)
	}
	if p.ID == "" {
		return "-"
	}
	volume := p.OneDayVolumeUSD
	if volume.IsZero() && !p.OneDayVolumeUntracked.IsZero() {
		volume = p.OneDayVolumeUntracked
	}
	return volume.Mul(feePercent).StringFixed(2)
}

// FeeTierPercent converts a v3 pool fee, in hundredths of a basis point, to a
// percentage.
func FeeTierPercent(p domain.PairData) decimal.Decimal {
	return decimal.NewFromInt(p.Fee).Div(feeTierDiv)
}

// Summarize builds the header figures of a pair page.
func Summarize(p domain.PairData, schema domain.SchemaVersion, feePercent decimal.Decimal) domain.PairSummary {
	rate0, rate1 := TokenRates(p, schema)
	s := domain.PairSummary{
		Pair:       p,
		Schema:     schema,
		Token0Rate: rate0,
		Token1Rate: rate1,
		DailyFees:  DailyFees(p, schema, feePercent),
	}
	s.TotalLiquidity = p.ReserveUSD
	if s.TotalLiquidity.IsZero() {
		s.TotalLiquidity = p.TrackedReserveUSD
	}
	if schema == domain.SchemaV3 {
		s.FeeTierPercent = FeeTierPercent(p)
	}
	return s
}
