// Package arweave implements the remote indexer client: GraphQL
// transaction queries, raw message body retrieval, and node info.
package arweave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds indexer endpoint configuration.
type Config struct {
	GatewayURL string        `yaml:"gateway_url"`
	GraphQLURL string        `yaml:"graphql_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Client talks to an Arweave-compatible gateway and its GraphQL indexer.
type Client struct {
	gatewayURL string
	graphqlURL string
	httpClient *http.Client
}

// NewClient creates a new gateway client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	graphqlURL := cfg.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = strings.TrimRight(cfg.GatewayURL, "/") + "/graphql"
	}
	return &Client{
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		graphqlURL: graphqlURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Tag is a transaction tag as returned by the indexer.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TagFilter restricts a query to transactions carrying one of the values.
type TagFilter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// TransactionNode is one matched transaction.
type TransactionNode struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Tags      []Tag  `json:"tags"`
	Block     struct {
		Height uint64 `json:"height"`
	} `json:"block"`
}

// TransactionEdge pairs a node with its opaque pagination cursor.
type TransactionEdge struct {
	Cursor string          `json:"cursor"`
	Node   TransactionNode `json:"node"`
}

// TransactionPage is one page of query results.
type TransactionPage struct {
	Edges       []TransactionEdge
	HasNextPage bool
}

// Query describes one paginated transaction query.
type Query struct {
	Owners   []string
	Tags     []TagFilter
	MinBlock uint64
	First    int
	After    string
}

const transactionsQuery = `
query ($owners: [String!], $tags: [TagFilter!], $min: Int, $first: Int!, $after: String) {
  transactions(owners: $owners, tags: $tags, block: {min: $min}, sort: HEIGHT_ASC, first: $first, after: $after) {
    pageInfo { hasNextPage }
    edges {
      cursor
      node {
        id
        recipient
        tags { name value }
        block { height }
      }
    }
  }
}`

// QueryTransactions fetches one page of matching transactions, sorted
// ascending by block height. Intra-block order is not guaranteed by the
// indexer; callers re-sort by reference tag.
func (c *Client) QueryTransactions(ctx context.Context, q Query) (*TransactionPage, error) {
	variables := map[string]any{
		"first": q.First,
		"min":   q.MinBlock,
	}
	if len(q.Owners) > 0 {
		variables["owners"] = q.Owners
	}
	if len(q.Tags) > 0 {
		variables["tags"] = q.Tags
	}
	if q.After != "" {
		variables["after"] = q.After
	}

	reqBody := map[string]any{
		"query":     transactionsQuery,
		"variables": variables,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp struct {
		Data struct {
			Transactions struct {
				PageInfo struct {
					HasNextPage bool `json:"hasNextPage"`
				} `json:"pageInfo"`
				Edges []TransactionEdge `json:"edges"`
			} `json:"transactions"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return &TransactionPage{
		Edges:       gqlResp.Data.Transactions.Edges,
		HasNextPage: gqlResp.Data.Transactions.PageInfo.HasNextPage,
	}, nil
}

// FetchData retrieves the raw message body referenced by a transaction.
func (c *Client) FetchData(ctx context.Context, txID string) (string, error) {
	url := c.gatewayURL + "/" + txID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, txID)
	}

	// Message bodies are small JSON payloads; reads are capped at 4 MiB.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	return string(body), nil
}

// ChainHeight returns the gateway's current chain height.
func (c *Client) ChainHeight(ctx context.Context) (uint64, error) {
	url := c.gatewayURL + "/info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("http %d fetching info", resp.StatusCode)
	}

	var info struct {
		Height uint64 `json:"height"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, fmt.Errorf("parse info: %w", err)
	}
	return info.Height, nil
}
