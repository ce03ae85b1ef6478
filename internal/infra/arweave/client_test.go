package arweave

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueryTransactions(t *testing.T) {
	var gotVars map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.Unmarshal(body, &req)
		gotVars = req.Variables

		_, _ = w.Write([]byte(`{
			"data": {
				"transactions": {
					"pageInfo": {"hasNextPage": true},
					"edges": [
						{
							"cursor": "c1",
							"node": {
								"id": "tx-1",
								"recipient": "wallet-1",
								"tags": [{"name": "Action", "value": "Transfer"}],
								"block": {"height": 1500000}
							}
						}
					]
				}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	page, err := c.QueryTransactions(context.Background(), Query{
		Owners:   []string{"owner-1"},
		Tags:     []TagFilter{{Name: "Action", Values: []string{"Transfer"}}},
		MinBlock: 1400000,
		First:    100,
		After:    "prev-cursor",
	})
	if err != nil {
		t.Fatalf("QueryTransactions failed: %v", err)
	}

	if !page.HasNextPage {
		t.Error("Expected hasNextPage true")
	}
	if len(page.Edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(page.Edges))
	}
	e := page.Edges[0]
	if e.Cursor != "c1" || e.Node.ID != "tx-1" || e.Node.Block.Height != 1500000 {
		t.Errorf("Unexpected edge: %+v", e)
	}

	if gotVars["min"] != float64(1400000) {
		t.Errorf("Expected min block forwarded, got %v", gotVars["min"])
	}
	if gotVars["after"] != "prev-cursor" {
		t.Errorf("Expected cursor forwarded, got %v", gotVars["after"])
	}
}

func TestQueryTransactions_GraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "rate limited"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	if _, err := c.QueryTransactions(context.Background(), Query{First: 10}); err == nil {
		t.Error("Expected error from graphql errors field")
	}
}

func TestFetchData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tx-abc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"balance": 100}`))
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})

	data, err := c.FetchData(context.Background(), "tx-abc")
	if err != nil {
		t.Fatalf("FetchData failed: %v", err)
	}
	if data != `{"balance": 100}` {
		t.Errorf("Unexpected data: %s", data)
	}

	if _, err := c.FetchData(context.Background(), "tx-missing"); err == nil {
		t.Error("Expected error on 404")
	}
}

func TestChainHeight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"network": "arweave.N.1", "height": 1600042}`))
	}))
	defer srv.Close()

	c := NewClient(Config{GatewayURL: srv.URL})
	height, err := c.ChainHeight(context.Background())
	if err != nil {
		t.Fatalf("ChainHeight failed: %v", err)
	}
	if height != 1600042 {
		t.Errorf("Expected height 1600042, got %d", height)
	}
}
