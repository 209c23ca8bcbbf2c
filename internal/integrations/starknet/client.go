package starknet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"

	"github.com/spherre/multisig-service/internal/config"
)

// Client speaks the Starknet JSON-RPC API, read-only
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new Starknet RPC client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url: cfg.RPCURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Event is one decoded chain event. FromAddress is the emitting contract,
// Keys[0] the event selector.
type Event struct {
	FromAddress     string   `json:"from_address"`
	Keys            []string `json:"keys"`
	Data            []string `json:"data"`
	BlockNumber     uint64   `json:"block_number"`
	TransactionHash string   `json:"transaction_hash"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.log.Debugf("RPC %s response: %s", method, string(raw))

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return json.Unmarshal(rpcResp.Result, result)
}

// BlockNumber returns the current head block
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var block uint64
	if err := c.call(ctx, "starknet_blockNumber", []any{}, &block); err != nil {
		return 0, err
	}
	return block, nil
}

type eventsPage struct {
	Events            []Event `json:"events"`
	ContinuationToken string  `json:"continuation_token"`
}

// GetEvents retrieves every event matching the selector keys in the block
// range, following continuation tokens across pages
func (c *Client) GetEvents(ctx context.Context, fromBlock, toBlock uint64, selectors []string) ([]Event, error) {
	var events []Event
	token := ""
	for {
		filter := map[string]any{
			"from_block": map[string]uint64{"block_number": fromBlock},
			"to_block":   map[string]uint64{"block_number": toBlock},
			"keys":       [][]string{selectors},
			"chunk_size": 100,
		}
		if token != "" {
			filter["continuation_token"] = token
		}

		var page eventsPage
		if err := c.call(ctx, "starknet_getEvents", map[string]any{"filter": filter}, &page); err != nil {
			return nil, err
		}
		events = append(events, page.Events...)
		if page.ContinuationToken == "" {
			return events, nil
		}
		token = page.ContinuationToken
	}
}

// selectorMask keeps the low 250 bits, per the Starknet keccak definition
var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// EventSelector computes the Starknet keccak of the event name: Keccak-256
// truncated to 250 bits
func EventSelector(name string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	v := new(big.Int).SetBytes(h.Sum(nil))
	v.And(v, selectorMask)
	return "0x" + v.Text(16)
}

// FeltToInt converts a felt hex string to an int64
func FeltToInt(felt string) (int64, error) {
	s := strings.TrimPrefix(felt, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty felt")
	}
	return strconv.ParseInt(s, 16, 64)
}

// FeltToText decodes a short-string felt into ASCII text; felts holding
// non-printable bytes come back as the original hex
func FeltToText(felt string) string {
	s := strings.TrimPrefix(felt, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	buf := make([]byte, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		b, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil || b < 0x20 || b > 0x7e {
			return felt
		}
		buf = append(buf, byte(b))
	}
	return string(buf)
}
