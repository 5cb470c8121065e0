package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"bridgesnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Client struct {
	url        string
	httpClient *http.Client
	idCounter  uint64
	address    string
	topic0     string
}

type Config struct {
	URL     string
	Address string
	Topic0  string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	address := ""
	if cfg.Address != "" {
		normalized, err := NormalizeAddress(cfg.Address)
		if err != nil {
			return nil, err
		}
		address = strings.ToLower(normalized)
	}
	topic0 := strings.ToLower(strings.TrimSpace(cfg.Topic0))
	if topic0 != "" && !looksLikeTopic(topic0) {
		return nil, fmt.Errorf("topic0 is not a 32-byte hex value: %s", cfg.Topic0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		address:    address,
		topic0:     topic0,
	}, nil
}

// NormalizeAddress validates address syntax and returns the EIP-55
// checksummed form, or an error for anything that is not a 20-byte hex
// address.
func NormalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return "", fmt.Errorf("invalid address: %q", raw)
	}
	return common.HexToAddress(trimmed).Hex(), nil
}

func looksLikeTopic(value string) bool {
	if !strings.HasPrefix(value, "0x") || len(value) != 66 {
		return false
	}
	_, err := hexutil.Decode(value)
	return err == nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

func (c *Client) FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RawLogRecord, error) {
	filter := map[string]any{
		"fromBlock": formatHexUint(fromBlock),
		"toBlock":   formatHexUint(toBlock),
	}
	if c.address != "" {
		filter["address"] = c.address
	}
	if c.topic0 != "" {
		filter["topics"] = []any{c.topic0}
	}

	var result []rpcLog
	if err := c.call(ctx, "eth_getLogs", []any{filter}, &result); err != nil {
		return nil, err
	}

	records := make([]domain.RawLogRecord, 0, len(result))
	for _, log := range result {
		blockNumber, err := parseHexUint(log.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("bad blockNumber in log: %w", err)
		}
		logIndex, err := parseHexUint(log.LogIndex)
		if err != nil {
			return nil, fmt.Errorf("bad logIndex in log: %w", err)
		}
		data, err := hexutil.Decode(log.Data)
		if err != nil {
			return nil, fmt.Errorf("bad data in log: %w", err)
		}
		topics := make([]common.Hash, len(log.Topics))
		for i, topic := range log.Topics {
			topics[i] = common.HexToHash(topic)
		}
		records = append(records, domain.RawLogRecord{
			BlockNumber: blockNumber,
			TxHash:      common.HexToHash(log.TxHash),
			LogIndex:    logIndex,
			Data:        data,
			Topics:      topics,
		})
	}

	return records, nil
}

type rpcLog struct {
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.New("rpc result is empty")
	}
	return json.Unmarshal(decoded.Result, result)
}

func parseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, errors.New("empty hex value")
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func formatHexUint(value uint64) string {
	return fmt.Sprintf("0x%x", value)
}
