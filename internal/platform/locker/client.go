// Package locker is a REST client for the third-party liquidity lock
// backend.
package locker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// Client talks to the lock backend. The backend expects the raw API key in
// the Authorization header, without a scheme.
type Client struct {
	baseURL    string
	apiKey     string
	network    string
	chainID    string
	httpClient *http.Client
}

// Options configure a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Network string
	ChainID string
	Timeout time.Duration
}

// NewClient creates a new lock backend client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		network: opts.Network,
		chainID: opts.ChainID,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

type locksEnvelope struct {
	Data []domain.Lock `json:"data"`
}

// ListUserLocks returns every lock the backend knows for account, across all
// chains and contracts.
func (c *Client) ListUserLocks(ctx context.Context, account string) ([]domain.Lock, error) {
	path := "/app/allMylocks/" + url.PathEscape(account)

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("locker: list locks: %w", err)
	}

	var env locksEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("locker: decode locks: %w", err)
	}
	if env.Data == nil {
		env.Data = []domain.Lock{}
	}
	return env.Data, nil
}

// UpdateLock asks the backend to re-read a lock deposit from chain.
func (c *Client) UpdateLock(ctx context.Context, lockContract string, depositID int64) error {
	q := url.Values{}
	q.Set("network", c.network)
	q.Set("chainId", c.chainID)
	path := "/app/locks/" + url.PathEscape(lockContract) + "/" + strconv.FormatInt(depositID, 10) + "?" + q.Encode()

	if _, err := c.do(ctx, http.MethodPut, path, []byte("{}")); err != nil {
		return fmt.Errorf("locker: update lock %s/%d: %w", lockContract, depositID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
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

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("HTTP %d: %s: %w", resp.StatusCode, string(body), domain.ErrUpstream)
	}
	return body, nil
}
