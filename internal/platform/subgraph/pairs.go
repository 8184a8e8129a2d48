package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lpdesk/lpdesk/internal/domain"
)

type v2PairResponse struct {
	ID          string        `json:"id"`
	Token0      tokenResponse `json:"token0"`
	Token1      tokenResponse `json:"token1"`
	Reserve0    string        `json:"reserve0"`
	Reserve1    string        `json:"reserve1"`
	ReserveUSD  string        `json:"reserveUSD"`
	Token0Price string        `json:"token0Price"`
	Token1Price string        `json:"token1Price"`
}

type v2DayDataResponse struct {
	PairAddress    string `json:"pairAddress"`
	DailyVolumeUSD string `json:"dailyVolumeUSD"`
	ReserveUSD     string `json:"reserveUSD"`
}

type v3PoolResponse struct {
	ID                     string        `json:"id"`
	Token0                 tokenResponse `json:"token0"`
	Token1                 tokenResponse `json:"token1"`
	Token0Price            string        `json:"token0Price"`
	Token1Price            string        `json:"token1Price"`
	TotalValueLockedToken0 string        `json:"totalValueLockedToken0"`
	TotalValueLockedToken1 string        `json:"totalValueLockedToken1"`
	TotalValueLockedUSD    string        `json:"totalValueLockedUSD"`
	Fee                    string        `json:"fee"`
	PoolDayData            []struct {
		VolumeUSD string `json:"volumeUSD"`
		FeesUSD   string `json:"feesUSD"`
	} `json:"poolDayData"`
}

const pairTokenFields = `
	token0 { id symbol name decimals }
	token1 { id symbol name decimals }
`

const v2PairFields = `
	id
` + pairTokenFields + `
	reserve0
	reserve1
	reserveUSD
	token0Price
	token1Price
`

func (p v2PairResponse) toDomain() domain.PairData {
	return domain.PairData{
		ID:          p.ID,
		Token0:      p.Token0.pairToken(),
		Token1:      p.Token1.pairToken(),
		Reserve0:    dec(p.Reserve0),
		Reserve1:    dec(p.Reserve1),
		ReserveUSD:  dec(p.ReserveUSD),
		Token0Price: dec(p.Token0Price),
		Token1Price: dec(p.Token1Price),
	}
}

// FetchPair returns the pair (v2) or pool (v3) with the given id, including
// its last day of volume and fees. Returns domain.ErrNotFound if the subgraph
// has no such entity.
func (c *Client) FetchPair(ctx context.Context, schema domain.SchemaVersion, id string) (domain.PairData, error) {
	if schema == domain.SchemaV2 {
		return c.fetchV2Pair(ctx, strings.ToLower(id))
	}
	return c.fetchV3Pool(ctx, strings.ToLower(id))
}

func (c *Client) fetchV2Pair(ctx context.Context, id string) (domain.PairData, error) {
	query := `
		query Pair($id: String!) {
			pair(id: $id) {` + v2PairFields + `}
			pairDayDatas(first: 1, orderBy: date, orderDirection: desc, where: { pairAddress: $id }) {
				pairAddress
				dailyVolumeUSD
				reserveUSD
			}
		}
	`

	url, err := c.endpoint(domain.SchemaV2)
	if err != nil {
		return domain.PairData{}, err
	}
	respData, err := c.doQuery(ctx, url, query, map[string]any{"id": id})
	if err != nil {
		return domain.PairData{}, fmt.Errorf("subgraph: fetch v2 pair: %w", err)
	}

	var result struct {
		Pair         *v2PairResponse     `json:"pair"`
		PairDayDatas []v2DayDataResponse `json:"pairDayDatas"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return domain.PairData{}, fmt.Errorf("subgraph: decode v2 pair: %w", err)
	}
	if result.Pair == nil {
		return domain.PairData{}, fmt.Errorf("subgraph: v2 pair %s: %w", id, domain.ErrNotFound)
	}

	pair := result.Pair.toDomain()
	if len(result.PairDayDatas) > 0 {
		pair.OneDayVolumeUSD = dec(result.PairDayDatas[0].DailyVolumeUSD)
		pair.TrackedReserveUSD = dec(result.PairDayDatas[0].ReserveUSD)
	}
	return pair, nil
}

func (c *Client) fetchV3Pool(ctx context.Context, id string) (domain.PairData, error) {
	query := `
		query Pool($id: String!) {
			pool(id: $id) {
				id` + pairTokenFields + `
				token0Price
				token1Price
				totalValueLockedToken0
				totalValueLockedToken1
				totalValueLockedUSD
				fee
				poolDayData(first: 1, orderBy: date, orderDirection: desc) {
					volumeUSD
					feesUSD
				}
			}
		}
	`

	url, err := c.endpoint(domain.SchemaV3)
	if err != nil {
		return domain.PairData{}, err
	}
	respData, err := c.doQuery(ctx, url, query, map[string]any{"id": id})
	if err != nil {
		return domain.PairData{}, fmt.Errorf("subgraph: fetch v3 pool: %w", err)
	}

	var result struct {
		Pool *v3PoolResponse `json:"pool"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return domain.PairData{}, fmt.Errorf("subgraph: decode v3 pool: %w", err)
	}
	if result.Pool == nil {
		return domain.PairData{}, fmt.Errorf("subgraph: v3 pool %s: %w", id, domain.ErrNotFound)
	}

	p := result.Pool
	fee, _ := strconv.ParseInt(p.Fee, 10, 64)
	pair := domain.PairData{
		ID:          p.ID,
		Token0:      p.Token0.pairToken(),
		Token1:      p.Token1.pairToken(),
		Reserve0:    dec(p.TotalValueLockedToken0),
		Reserve1:    dec(p.TotalValueLockedToken1),
		ReserveUSD:  dec(p.TotalValueLockedUSD),
		Token0Price: dec(p.Token0Price),
		Token1Price: dec(p.Token1Price),
		Fee:         fee,
	}
	if len(p.PoolDayData) > 0 {
		pair.OneDayVolumeUSD = dec(p.PoolDayData[0].VolumeUSD)
		pair.FeesUSDOneDay = dec(p.PoolDayData[0].FeesUSD)
	}
	return pair, nil
}

// FetchBulkPairs returns v2 pair data for every id the subgraph knows about.
// Unknown ids are skipped. The result follows the order of ids.
func (c *Client) FetchBulkPairs(ctx context.Context, ids []string) ([]domain.PairData, error) {
	if len(ids) == 0 {
		return []domain.PairData{}, nil
	}

	query := `
		query BulkPairs($ids: [String!]!) {
			pairs(first: 1000, where: { id_in: $ids }) {` + v2PairFields + `}
		}
	`

	lower := make([]string, len(ids))
	for i, id := range ids {
		lower[i] = strings.ToLower(id)
	}

	url, err := c.endpoint(domain.SchemaV2)
	if err != nil {
		return nil, err
	}
	respData, err := c.doQuery(ctx, url, query, map[string]any{"ids": lower})
	if err != nil {
		return nil, fmt.Errorf("subgraph: fetch bulk pairs: %w", err)
	}

	var result struct {
		Pairs []v2PairResponse `json:"pairs"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return nil, fmt.Errorf("subgraph: decode bulk pairs: %w", err)
	}

	byID := make(map[string]domain.PairData, len(result.Pairs))
	for _, p := range result.Pairs {
		byID[strings.ToLower(p.ID)] = p.toDomain()
	}
	out := make([]domain.PairData, 0, len(byID))
	for _, id := range lower {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
