package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion selects which subgraph schema a raw record was read from.
type SchemaVersion string

const (
	// SchemaV2 is the constant-product schema; swaps carry in/out reserve deltas.
	SchemaV2 SchemaVersion = "v2"
	// SchemaV3 is the concentrated-liquidity schema; swaps carry signed deltas.
	SchemaV3 SchemaVersion = "v3"
)

// ParseSchemaVersion maps a route segment to a SchemaVersion. An empty string
// defaults to v3.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	switch s {
	case "", string(SchemaV3):
		return SchemaV3, nil
	case string(SchemaV2):
		return SchemaV2, nil
	default:
		return "", ErrUnsupportedSchema
	}
}

// TxnKind tags a normalized transaction.
type TxnKind string

const (
	TxnAdd    TxnKind = "add"
	TxnRemove TxnKind = "remove"
	TxnSwap   TxnKind = "swap"
)

// TokenRef identifies a token on a pair.
type TokenRef struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

// TokenPair is the ordered token pair of a pool as stored by the subgraph.
type TokenPair struct {
	Token0 TokenRef `json:"token0"`
	Token1 TokenRef `json:"token1"`
}

// V2SwapAmounts holds the reserve deltas of a legacy swap.
type V2SwapAmounts struct {
	Amount0In  decimal.Decimal
	Amount1In  decimal.Decimal
	Amount0Out decimal.Decimal
	Amount1Out decimal.Decimal
}

// V3SwapAmounts holds the signed pool deltas of a current-schema swap.
type V3SwapAmounts struct {
	Amount0 decimal.Decimal
	Amount1 decimal.Decimal
}

// RawSwap is a swap event in either schema. Schema decides which amount block
// is meaningful.
type RawSwap struct {
	Schema    SchemaVersion
	Hash      string
	Timestamp time.Time
	Origin    string
	AmountUSD decimal.Decimal
	Pair      TokenPair
	V2        V2SwapAmounts
	V3        V3SwapAmounts
}

// RawLiquidityEvent is a mint or burn event. Both schemas share this layout.
type RawLiquidityEvent struct {
	Hash      string
	Timestamp time.Time
	Origin    string
	Amount0   decimal.Decimal
	Amount1   decimal.Decimal
	AmountUSD decimal.Decimal
	Pair      TokenPair
}

// RawPairTransactions is the pair/transaction collaborator's output.
type RawPairTransactions struct {
	Schema SchemaVersion
	Mints  []RawLiquidityEvent
	Swaps  []RawSwap
	Burns  []RawLiquidityEvent
}

// TransactionRecord is a pair event reshaped into one attribute layout across
// schema versions.
type TransactionRecord struct {
	Kind      TxnKind         `json:"kind"`
	Hash      string          `json:"hash"`
	Timestamp time.Time       `json:"timestamp"`
	Account   string          `json:"account"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
	Token0    TokenRef        `json:"token0"`
	Token1    TokenRef        `json:"token1"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
}
