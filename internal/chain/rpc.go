package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// transport is one JSON-RPC endpoint. The resilient Client layers timeout,
// retry, breaker, and failover on top of it.
type transport interface {
	getSignaturesForAddress(ctx context.Context, address string, opts SignaturesOpts) ([]SignatureInfo, error)
	getTransaction(ctx context.Context, signature string) (*ParsedTransaction, error)
}

type SignaturesOpts struct {
	Limit int
	Until string
}

type rpcConn struct {
	baseURL string
	client  *http.Client
}

// newRPCConn builds a connection without a transport-level timeout; the
// caller bounds every call with a context deadline instead.
func newRPCConn(baseURL string) *rpcConn {
	return &rpcConn{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *rpcConn) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		trimmed := strings.TrimSpace(string(msg))
		if trimmed != "" {
			return fmt.Errorf("rpc http status %d: %s", resp.StatusCode, trimmed)
		}
		return fmt.Errorf("rpc http status %d", resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func (c *rpcConn) getSignaturesForAddress(ctx context.Context, address string, opts SignaturesOpts) ([]SignatureInfo, error) {
	cfg := map[string]any{"commitment": "confirmed"}
	if opts.Limit > 0 {
		cfg["limit"] = opts.Limit
	}
	if opts.Until != "" {
		cfg["until"] = opts.Until
	}
	var out []SignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []any{address, cfg}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rpcConn) getTransaction(ctx context.Context, signature string) (*ParsedTransaction, error) {
	cfg := map[string]any{
		"encoding":                       "jsonParsed",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	}
	var raw json.RawMessage
	if err := c.call(ctx, "getTransaction", []any{signature, cfg}, &raw); err != nil {
		return nil, err
	}
	// A null result means the ledger does not know the signature. Not an error.
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var tx ParsedTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
