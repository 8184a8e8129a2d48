package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lpdesk/lpdesk/internal/domain"
)

type depositResponse struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	Liquidity       string `json:"liquidity"`
	TickLower       string `json:"tickLower"`
	TickUpper       string `json:"tickUpper"`
	OnFarmingCenter bool   `json:"onFarmingCenter"`
}

// FetchFarmingDeposits returns the position NFTs that owner has deposited in
// the farming center. The NFT is held by the farming center while staked, so
// these do not show up in the owner's wallet balance.
func (c *Client) FetchFarmingDeposits(ctx context.Context, owner string) ([]domain.Position, error) {
	if c.farmingURL == "" {
		return []domain.Position{}, nil
	}

	query := `
		query FarmingDeposits($owner: Bytes!) {
			deposits(first: 1000, orderBy: id, orderDirection: asc, where: { owner: $owner, onFarmingCenter: true }) {
				id
				owner
				liquidity
				tickLower
				tickUpper
				onFarmingCenter
			}
		}
	`

	respData, err := c.doQuery(ctx, c.farmingURL, query, map[string]any{"owner": strings.ToLower(owner)})
	if err != nil {
		return nil, fmt.Errorf("subgraph: fetch farming deposits: %w", err)
	}

	var result struct {
		Deposits []depositResponse `json:"deposits"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("subgraph: decode farming deposits: %w", err)
	}

	out := make([]domain.Position, 0, len(result.Deposits))
	for _, d := range result.Deposits {
		id, ok := new(big.Int).SetString(d.ID, 10)
		if !ok {
			continue
		}
		liquidity, ok := new(big.Int).SetString(d.Liquidity, 10)
		if !ok {
			liquidity = new(big.Int)
		}
		lower, _ := strconv.ParseInt(d.TickLower, 10, 32)
		upper, _ := strconv.ParseInt(d.TickUpper, 10, 32)
		out = append(out, domain.Position{
			TokenID:   id,
			Owner:     common.HexToAddress(d.Owner),
			TickLower: int32(lower),
			TickUpper: int32(upper),
			Liquidity: liquidity,
			OnFarming: d.OnFarmingCenter,
		})
	}
	return out, nil
}

// FetchLiquidityTokens returns the v2 pair addresses in which account holds a
// non-zero LP token balance.
func (c *Client) FetchLiquidityTokens(ctx context.Context, account string) ([]string, error) {
	query := `
		query LiquidityPositions($user: String!) {
			liquidityPositions(first: 1000, where: { user: $user, liquidityTokenBalance_gt: 0 }) {
				pair { id }
			}
		}
	`

	url, err := c.endpoint(domain.SchemaV2)
	if err != nil {
		return nil, err
	}
	respData, err := c.doQuery(ctx, url, query, map[string]any{"user": strings.ToLower(account)})
	if err != nil {
		return nil, fmt.Errorf("subgraph: fetch liquidity positions: %w", err)
	}

	var result struct {
		LiquidityPositions []struct {
			Pair struct {
				ID string `json:"id"`
			} `json:"pair"`
		} `json:"liquidityPositions"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("subgraph: decode liquidity positions: %w", err)
	}

	out := make([]string, 0, len(result.LiquidityPositions))
	for _, lp := range result.LiquidityPositions {
		out = append(out, lp.Pair.ID)
	}
	return out, nil
}
