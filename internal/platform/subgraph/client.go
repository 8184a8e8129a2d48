package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// Client is a GraphQL client for the DEX subgraphs. The v2 and v3 schemas are
// served from different endpoints; farming deposits come from a third one.
type Client struct {
	endpoints  map[domain.SchemaVersion]string
	farmingURL string
	apiKey     string
	httpClient *http.Client
}

// Endpoints lists the subgraph URLs the client talks to.
type Endpoints struct {
	V2      string
	V3      string
	Farming string
}

// NewClient creates a new subgraph client.
func NewClient(ep Endpoints, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoints: map[domain.SchemaVersion]string{
			domain.SchemaV2: ep.V2,
			domain.SchemaV3: ep.V3,
		},
		farmingURL: ep.Farming,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchLatestBlock returns the latest block indexed by the subgraph of the
// given schema. Used by the health check to report indexing lag.
func (c *Client) FetchLatestBlock(ctx context.Context, schema domain.SchemaVersion) (int64, error) {
	query := `
		query LatestBlock {
			_meta {
				block {
					number
				}
			}
		}
	`

	url, err := c.endpoint(schema)
	if err != nil {
		return 0, err
	}
	respData, err := c.doQuery(ctx, url, query, nil)
	if err != nil {
		return 0, fmt.Errorf("subgraph: fetch latest block: %w", err)
	}

	var result struct {
		Meta struct {
			Block struct {
				Number int64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return 0, fmt.Errorf("subgraph: decode latest block: %w", err)
	}
	return result.Meta.Block.Number, nil
}

func (c *Client) endpoint(schema domain.SchemaVersion) (string, error) {
	url, ok := c.endpoints[schema]
	if !ok || url == "" {
		return "", fmt.Errorf("subgraph: no endpoint for %q: %w", schema, domain.ErrUnsupportedSchema)
	}
	return url, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doQuery executes a GraphQL query against url and returns the raw "data"
// field from the response.
func (c *Client) doQuery(ctx context.Context, url, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s: %w", resp.StatusCode, string(body), domain.ErrUpstream)
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s: %w", gqlResp.Errors[0].Message, domain.ErrUpstream)
	}

	return gqlResp.Data, nil
}
