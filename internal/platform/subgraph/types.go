package subgraph

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// BigDecimal and BigInt values arrive as JSON strings.

type tokenResponse struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals string `json:"decimals"`
}

type pairTokensResponse struct {
	Token0 tokenResponse `json:"token0"`
	Token1 tokenResponse `json:"token1"`
}

type transactionRef struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

type liquidityEventResponse struct {
	Transaction transactionRef     `json:"transaction"`
	Timestamp   string             `json:"timestamp"`
	Origin      string             `json:"origin"`
	To          string             `json:"to"`
	Sender      string             `json:"sender"`
	Amount0     string             `json:"amount0"`
	Amount1     string             `json:"amount1"`
	AmountUSD   string             `json:"amountUSD"`
	Pair        pairTokensResponse `json:"pair"`
	Pool        pairTokensResponse `json:"pool"`
}

type swapResponse struct {
	Transaction transactionRef     `json:"transaction"`
	Timestamp   string             `json:"timestamp"`
	Origin      string             `json:"origin"`
	From        string             `json:"from"`
	Amount0In   string             `json:"amount0In"`
	Amount1In   string             `json:"amount1In"`
	Amount0Out  string             `json:"amount0Out"`
	Amount1Out  string             `json:"amount1Out"`
	Amount0     string             `json:"amount0"`
	Amount1     string             `json:"amount1"`
	AmountUSD   string             `json:"amountUSD"`
	Pair        pairTokensResponse `json:"pair"`
	Pool        pairTokensResponse `json:"pool"`
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func unixTime(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

func (t tokenResponse) ref() domain.TokenRef {
	return domain.TokenRef{ID: t.ID, Symbol: t.Symbol}
}

func (t tokenResponse) pairToken() domain.PairToken {
	d, _ := strconv.Atoi(t.Decimals)
	return domain.PairToken{ID: t.ID, Symbol: t.Symbol, Name: t.Name, Decimals: d}
}

// tokens picks the pair block for v2 and the pool block for v3.
func tokens(schema domain.SchemaVersion, pair, pool pairTokensResponse) domain.TokenPair {
	src := pool
	if schema == domain.SchemaV2 {
		src = pair
	}
	return domain.TokenPair{Token0: src.Token0.ref(), Token1: src.Token1.ref()}
}

func (e liquidityEventResponse) toDomain(schema domain.SchemaVersion) domain.RawLiquidityEvent {
	ts := e.Timestamp
	if ts == "" {
		ts = e.Transaction.Timestamp
	}
	origin := e.Origin
	if origin == "" {
		origin = e.To
	}
	if origin == "" {
		origin = e.Sender
	}
	return domain.RawLiquidityEvent{
		Hash:      e.Transaction.ID,
		Timestamp: unixTime(ts),
		Origin:    origin,
		Amount0:   dec(e.Amount0),
		Amount1:   dec(e.Amount1),
		AmountUSD: dec(e.AmountUSD),
		Pair:      tokens(schema, e.Pair, e.Pool),
	}
}

func (s swapResponse) toDomain(schema domain.SchemaVersion) domain.RawSwap {
	ts := s.Timestamp
	if ts == "" {
		ts = s.Transaction.Timestamp
	}
	origin := s.Origin
	if origin == "" {
		origin = s.From
	}
	out := domain.RawSwap{
		Schema:    schema,
		Hash:      s.Transaction.ID,
		Timestamp: unixTime(ts),
		Origin:    origin,
		AmountUSD: dec(s.AmountUSD),
		Pair:      tokens(schema, s.Pair, s.Pool),
	}
	if schema == domain.SchemaV2 {
		out.V2 = domain.V2SwapAmounts{
			Amount0In:  dec(s.Amount0In),
			Amount1In:  dec(s.Amount1In),
			Amount0Out: dec(s.Amount0Out),
			Amount1Out: dec(s.Amount1Out),
		}
	} else {
		out.V3 = domain.V3SwapAmounts{
			Amount0: dec(s.Amount0),
			Amount1: dec(s.Amount1),
		}
	}
	return out
}
