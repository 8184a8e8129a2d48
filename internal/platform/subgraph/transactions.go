package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lpdesk/lpdesk/internal/domain"
)

const v2TransactionsQuery = `
	query PairTransactions($pair: String!, $first: Int!) {
		mints(first: $first, orderBy: timestamp, orderDirection: desc, where: { pair: $pair }) {
			transaction { id timestamp }
			to
			amount0
			amount1
			amountUSD
			pair { token0 { id symbol } token1 { id symbol } }
		}
		burns(first: $first, orderBy: timestamp, orderDirection: desc, where: { pair: $pair }) {
			transaction { id timestamp }
			sender
			amount0
			amount1
			amountUSD
			pair { token0 { id symbol } token1 { id symbol } }
		}
		swaps(first: $first, orderBy: timestamp, orderDirection: desc, where: { pair: $pair }) {
			transaction { id timestamp }
			from
			amount0In
			amount1In
			amount0Out
			amount1Out
			amountUSD
			pair { token0 { id symbol } token1 { id symbol } }
		}
	}
`

const v3TransactionsQuery = `
	query PoolTransactions($pair: String!, $first: Int!) {
		mints(first: $first, orderBy: timestamp, orderDirection: desc, where: { pool: $pair }) {
			timestamp
			transaction { id }
			origin
			amount0
			amount1
			amountUSD
			pool { token0 { id symbol } token1 { id symbol } }
		}
		burns(first: $first, orderBy: timestamp, orderDirection: desc, where: { pool: $pair }) {
			timestamp
			transaction { id }
			origin
			amount0
			amount1
			amountUSD
			pool { token0 { id symbol } token1 { id symbol } }
		}
		swaps(first: $first, orderBy: timestamp, orderDirection: desc, where: { pool: $pair }) {
			timestamp
			transaction { id }
			origin
			amount0
			amount1
			amountUSD
			pool { token0 { id symbol } token1 { id symbol } }
		}
	}
`

// FetchPairTransactions returns the latest mints, swaps and burns of a pair
// (v2) or pool (v3), at most first of each.
func (c *Client) FetchPairTransactions(ctx context.Context, schema domain.SchemaVersion, pairID string, first int) (*domain.RawPairTransactions, error) {
	url, err := c.endpoint(schema)
	if err != nil {
		return nil, err
	}

	query := v3TransactionsQuery
	if schema == domain.SchemaV2 {
		query = v2TransactionsQuery
	}
	variables := map[string]any{
		"pair":  strings.ToLower(pairID),
		"first": first,
	}

	respData, err := c.doQuery(ctx, url, query, variables)
	if err != nil {
		return nil, fmt.Errorf("subgraph: fetch pair transactions: %w", err)
	}

	var result struct {
		Mints []liquidityEventResponse `json:"mints"`
		Burns []liquidityEventResponse `json:"burns"`
		Swaps []swapResponse           `json:"swaps"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("subgraph: decode pair transactions: %w", err)
	}

	out := &domain.RawPairTransactions{
		Schema: schema,
		Mints:  make([]domain.RawLiquidityEvent, 0, len(result.Mints)),
		Swaps:  make([]domain.RawSwap, 0, len(result.Swaps)),
		Burns:  make([]domain.RawLiquidityEvent, 0, len(result.Burns)),
	}
	for _, m := range result.Mints {
		out.Mints = append(out.Mints, m.toDomain(schema))
	}
	for _, s := range result.Swaps {
		out.Swaps = append(out.Swaps, s.toDomain(schema))
	}
	for _, b := range result.Burns {
		out.Burns = append(out.Burns, b.toDomain(schema))
	}
	return out, nil
}
