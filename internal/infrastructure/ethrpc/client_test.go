package ethrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNormalizeAddress(t *testing.T) {
	checksummed, err := NormalizeAddress(" 0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed ")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if checksummed != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Errorf("expected checksummed form, got %s", checksummed)
	}

	for _, raw := range []string{"", "0x123", "not-an-address", "0xzzaeb6053f3e94c9b9a09f33669435e7ef1beaed"} {
		if _, err := NormalizeAddress(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := NewClient(Config{URL: "http://localhost", Address: "bogus"}); err == nil {
		t.Error("expected error for invalid address")
	}
	if _, err := NewClient(Config{URL: "http://localhost", Topic0: "0x1234"}); err == nil {
		t.Error("expected error for short topic0")
	}
	if _, err := NewClient(Config{
		URL:    "http://localhost",
		Topic0: "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
	}); err != nil {
		t.Errorf("valid topic0 rejected: %v", err)
	}
}

func rpcServer(t *testing.T, handler func(method string, params []json.RawMessage) any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req.Method, req.Params),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestClientBlockNumberAndChainID(t *testing.T) {
	server := rpcServer(t, func(method string, params []json.RawMessage) any {
		switch method {
		case "eth_blockNumber":
			return "0x10f2c"
		case "eth_chainId":
			return "0x1"
		default:
			t.Errorf("unexpected method %s", method)
			return nil
		}
	})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}

	tip, err := client.LatestBlockNumber(context.Background())
	if err != nil {
		t.Fatalf("block number failed: %v", err)
	}
	if tip != 69420 {
		t.Errorf("expected tip 69420, got %d", tip)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id failed: %v", err)
	}
	if chainID != 1 {
		t.Errorf("expected chain id 1, got %d", chainID)
	}
}

func TestClientFetchLogs(t *testing.T) {
	var capturedFilter map[string]any
	server := rpcServer(t, func(method string, params []json.RawMessage) any {
		if method != "eth_getLogs" {
			t.Errorf("unexpected method %s", method)
			return nil
		}
		if len(params) != 1 {
			t.Fatalf("expected 1 param, got %d", len(params))
		}
		if err := json.Unmarshal(params[0], &capturedFilter); err != nil {
			t.Fatalf("bad filter: %v", err)
		}
		return []map[string]any{
			{
				"blockNumber":     "0x64",
				"transactionHash": "0x" + strings.Repeat("ab", 32),
				"logIndex":        "0x2",
				"data":            "0xdeadbeef",
				"topics":          []string{"0x" + strings.Repeat("cd", 32)},
			},
		}
	})
	defer server.Close()

	client, err := NewClient(Config{
		URL:     server.URL,
		Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Topic0:  "0x" + strings.Repeat("cd", 32),
	})
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}

	records, err := client.FetchLogs(context.Background(), 90, 110)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	record := records[0]
	if record.BlockNumber != 100 || record.LogIndex != 2 {
		t.Errorf("unexpected record positions: %+v", record)
	}
	if record.TxHash != common.HexToHash("0x"+strings.Repeat("ab", 32)) {
		t.Errorf("unexpected tx hash: %s", record.TxHash.Hex())
	}
	if len(record.Data) != 4 || record.Data[0] != 0xde {
		t.Errorf("unexpected data: %x", record.Data)
	}
	if len(record.Topics) != 1 {
		t.Errorf("unexpected topics: %v", record.Topics)
	}

	if capturedFilter["fromBlock"] != "0x5a" || capturedFilter["toBlock"] != "0x6e" {
		t.Errorf("unexpected block range in filter: %v", capturedFilter)
	}
	if capturedFilter["address"] != "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed" {
		t.Errorf("expected lowercased address in filter, got %v", capturedFilter["address"])
	}
	topics, ok := capturedFilter["topics"].([]any)
	if !ok || len(topics) != 1 {
		t.Errorf("expected single topic filter, got %v", capturedFilter["topics"])
	}
}

func TestClientSurfacesRPCErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"query returned more than 10000 results"}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	if _, err := client.LatestBlockNumber(context.Background()); err == nil || !strings.Contains(err.Error(), "-32602") {
		t.Errorf("expected rpc error with code, got %v", err)
	}
}

func TestClientRejectsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	if _, err := client.LatestBlockNumber(context.Background()); err == nil {
		t.Error("expected error for non-2xx status")
	}
}
