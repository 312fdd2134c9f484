// Package rpcclient is a thin JSON-RPC 2.0 client for the node's RPC
// server, used by the CLI.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coreledger/coreledger/internal/rpc"
)

const defaultTimeout = 30 * time.Second

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   int
}

// New creates a client with the default timeout.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, defaultTimeout)
}

// NewWithTimeout creates a client with an explicit request timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// RPCError is a server-side JSON-RPC error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes method with params, decoding the result into result
// (which may be nil to discard it).
func (c *Client) Call(method string, params, result interface{}) error {
	c.nextID++
	req := rpc.Request{JSONRPC: "2.0", Method: method, ID: c.nextID}

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %s", httpResp.Status)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpc.Error      `json:"error"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// ChainInfo fetches chain.getInfo.
func (c *Client) ChainInfo() (*rpc.ChainInfoResult, error) {
	var out rpc.ChainInfoResult
	if err := c.Call("chain.getInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BlockByHeight fetches one block.
func (c *Client) BlockByHeight(height uint64) (*rpc.BlockResult, error) {
	var out rpc.BlockResult
	if err := c.Call("chain.getBlockByHeight", rpc.BlockByHeightParams{Height: height}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance fetches an address's confirmed balance.
func (c *Client) Balance(address string) (*rpc.BalanceResult, error) {
	var out rpc.BalanceResult
	if err := c.Call("chain.getBalance", rpc.BalanceParams{Address: address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MempoolInfo fetches mempool.getInfo.
func (c *Client) MempoolInfo() (*rpc.MempoolInfoResult, error) {
	var out rpc.MempoolInfoResult
	if err := c.Call("mempool.getInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PeerInfo fetches net.getPeerInfo.
func (c *Client) PeerInfo() (*rpc.PeerInfoResult, error) {
	var out rpc.PeerInfoResult
	if err := c.Call("net.getPeerInfo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
